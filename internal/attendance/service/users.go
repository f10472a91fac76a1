package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/audit"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/sentinel"
	"nfcattend/pkg/requestcontext"
)

// Register enrolls a new badge holder as active.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "attendance.Register")
	defer span.End()

	req.Normalize()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		TagID:        req.UID,
		Name:         req.Name,
		Department:   req.Department,
		Status:       models.UserStatusActive,
		RegisteredAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "A user with this NFC UID already exists")
		}
		err = s.storageError(ctx, err, "failed to register user")
		recordSpanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"tag_id", user.TagID,
		"department", user.Department,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Timestamp: user.RegisteredAt,
		Action:    audit.ActionUserCreated,
		UserID:    user.ID,
		TagID:     user.TagID,
		RequestID: requestcontext.RequestID(ctx),
	})
	return user, nil
}

// ListUsers returns every registered user ordered by name.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to list users")
	}
	return users, nil
}

// SetUserStatus switches a user between active and inactive.
func (s *Service) SetUserStatus(ctx context.Context, userID string, req models.SetStatusRequest) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	if err := s.users.SetStatus(ctx, userID, req.Status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, MsgUserNotFound)
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unsupported status")
		}
		return nil, s.storageError(ctx, err, "failed to update user status")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to load user")
	}

	s.logger.InfoContext(ctx, "user status changed", "user_id", userID, "status", string(req.Status))
	s.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx).UTC(),
		Action:    audit.ActionStatusChanged,
		UserID:    userID,
		RequestID: requestcontext.RequestID(ctx),
		Detail:    map[string]string{"status": string(req.Status)},
	})
	return user, nil
}

// validateRequest runs struct validation and reports offending fields by
// their JSON names.
func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}

	var missing, invalid []string
	for _, fe := range ve {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}
	return dErrors.New(dErrors.CodeBadRequest, "Invalid fields: "+strings.Join(invalid, ", "))
}
