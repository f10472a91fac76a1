package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/platform/middleware"
	"nfcattend/pkg/platform/httputil"
	"nfcattend/pkg/requestcontext"
)

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Logger      *slog.Logger
	Health      HealthChecker
	CORSOrigins []string
	// TrustProxy enables X-Forwarded-For/X-Real-IP rewriting of RemoteAddr.
	TrustProxy bool
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Handlers []RouteRegistrar
}

// NewRouter builds the public HTTP surface: liveness, metrics and every
// registered feature router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", healthHandler(cfg.Logger, cfg.Health))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

// healthHandler always answers 200. Storage reachability is reported in the
// database field.
func healthHandler(logger *slog.Logger, checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		database := "connected"
		if checker != nil {
			if err := checker.Health(ctx); err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "health check failed", "error", err)
				}
				database = "disconnected"
			}
		}
		httputil.WriteJSON(w, http.StatusOK, models.HealthResponse{
			Status:    "online",
			Message:   "NFC Attendance API is operational",
			Database:  database,
			Timestamp: requestcontext.Now(ctx).UTC(),
		})
	}
}
