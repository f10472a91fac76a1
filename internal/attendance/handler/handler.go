package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/platform/metrics"
	"nfcattend/internal/platform/middleware"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/httputil"
	"nfcattend/pkg/requestcontext"
)

const defaultRequestTimeout = 30 * time.Second

// Service defines the attendance operations exposed over HTTP.
type Service interface {
	CheckIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	SetUserStatus(ctx context.Context, userID string, req models.SetStatusRequest) (*models.User, error)
	DailyReport(ctx context.Context, date string) (*models.DailyReport, error)
	RangeReport(ctx context.Context, startDate, endDate string) (*models.RangeReport, error)
	MigrateLegacy(ctx context.Context) (*models.MigrationSummary, error)
}

// Handler handles attendance, user and dashboard endpoints.
type Handler struct {
	logger         *slog.Logger
	attendance     Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

type Option func(*Handler)

// WithRequestTimeout bounds every request handled by the attendance router.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// New creates a new attendance Handler. metrics may be nil.
func New(attendance Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		attendance:     attendance,
		metrics:        metrics,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	attendanceRouter := chi.NewRouter()
	attendanceRouter.Use(middleware.Recovery(h.logger))
	attendanceRouter.Use(middleware.RequestID)
	attendanceRouter.Use(middleware.Logger(h.logger))
	attendanceRouter.Use(middleware.Timeout(h.requestTimeout))
	attendanceRouter.Use(middleware.ContentTypeJSON)
	attendanceRouter.Use(middleware.LatencyMiddleware(h.metrics))

	attendanceRouter.Post("/api/attendance", h.handleCheckIn)
	attendanceRouter.Get("/api/attendance/daily", h.handleDailyReport)
	attendanceRouter.Post("/api/attendance/migrate", h.handleMigrate)
	attendanceRouter.Get("/api/users", h.handleListUsers)
	attendanceRouter.Patch("/api/users/{id}/status", h.handleSetUserStatus)
	attendanceRouter.Post("/api/register", h.handleRegister)
	attendanceRouter.Get("/dashboard/attendance", h.handleRangeReport)

	r.Mount("/", attendanceRouter)
}

// handleCheckIn records a tag scan.
func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.CheckInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid check-in request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.attendance.CheckIn(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			req.Normalize()
			envelope := httputil.NewErrorResponse(err)
			httputil.WriteJSON(w, http.StatusNotFound, models.UnknownTagResponse{
				Status:           envelope.Status,
				Error:            envelope.Error,
				ErrorDescription: envelope.ErrorDescription,
				UID:              req.UID,
				Timestamp:        requestcontext.Now(ctx).UTC(),
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.CheckInResponse{
		Status:    httputil.StatusSuccess,
		Message:   "Attendance recorded successfully",
		User:      result.UserName,
		Timestamp: result.Event.Timestamp,
		Record:    models.ToRecordResponse(result.Event),
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.attendance.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := models.UsersResponse{
		Status: httputil.StatusSuccess,
		Users:  make([]models.UserResponse, 0, len(users)),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, models.ToUserResponse(u))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	user, err := h.attendance.Register(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.RegisterResponse{
		Status:  httputil.StatusSuccess,
		Message: "User registered successfully",
		User:    models.ToUserResponse(user),
	})
}

func (h *Handler) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SetStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.attendance.SetUserStatus(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.SetStatusResponse{
		Status:     httputil.StatusSuccess,
		UserID:     user.ID,
		UserStatus: user.Status,
	})
}

// handleDailyReport defaults to today when no date is given.
func (h *Handler) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.attendance.DailyReport(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToDailyReportResponse(report))
}

func (h *Handler) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.attendance.RangeReport(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToRangeReportResponse(report))
}

func (h *Handler) handleMigrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.attendance.MigrateLegacy(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "legacy migration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.MigrationResponse{
		Status:   httputil.StatusSuccess,
		Migrated: summary.Migrated,
		Failed:   summary.Failed,
		Skipped:  summary.Skipped,
	})
}
