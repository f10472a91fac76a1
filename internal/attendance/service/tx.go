package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "nfcattend/pkg/domain-errors"
)

// LedgerTx provides a transactional boundary for ledger mutations.
// Implementations may wrap a database transaction or, in-memory, a lock.
type LedgerTx interface {
	RunInTx(ctx context.Context, fn func(ledger LedgerStore) error) error
}

// numLedgerShards spreads same-user serialization over independent mutexes.
const numLedgerShards = 128

// defaultLedgerTxTimeout is the maximum duration for a ledger transaction.
const defaultLedgerTxTimeout = 5 * time.Second

// ShardedTx serializes transactions of the same user using a mutex chosen
// by hashing the user id found in the context (see WithTxUser). The ledger
// store itself must make each operation atomic.
type ShardedTx struct {
	shards  [numLedgerShards]sync.Mutex
	store   LedgerStore
	timeout time.Duration
}

func NewShardedTx(store LedgerStore) *ShardedTx {
	return &ShardedTx{store: store, timeout: defaultLedgerTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ledger LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

// selectShard picks a shard based on user ID from context, or defaults to shard 0.
func (t *ShardedTx) selectShard(ctx context.Context) int {
	if userID := TxUser(ctx); userID != "" {
		return int(hashUserID(userID) % numLedgerShards)
	}
	return 0
}

// hashUserID is 32-bit FNV-1a.
func hashUserID(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

type txUserKey struct{}

// WithTxUser tags ctx with the user a transaction is about.
func WithTxUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, txUserKey{}, userID)
}

// TxUser returns the user set by WithTxUser, or "".
func TxUser(ctx context.Context) string {
	userID, _ := ctx.Value(txUserKey{}).(string)
	return userID
}
