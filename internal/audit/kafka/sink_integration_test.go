//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"nfcattend/internal/audit"
	"nfcattend/internal/audit/kafka"
	"nfcattend/pkg/testutil/containers"
)

type SinkSuite struct {
	suite.Suite
	brokers []string
}

func TestSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *SinkSuite) TestAppendProducesJSONKeyedByUser() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "attendance.audit.test"

	sink, err := kafka.NewSink(s.brokers, topic)
	s.Require().NoError(err)
	defer sink.Close()
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1), "second call tolerates an existing topic")

	event := audit.Event{
		Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Action:    audit.ActionCheckedIn,
		UserID:    "U1",
		TagID:     "A1",
		Day:       "2024-05-01",
	}
	s.Require().NoError(sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	s.Equal("U1", string(records[0].Key))
	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(audit.ActionCheckedIn, got.Action)
	s.Equal("A1", got.TagID)
}
