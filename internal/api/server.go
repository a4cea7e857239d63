// Package api exposes the lifecycle operations over JSON HTTP. The session
// layer lives in front of this service; requests arrive with the
// authenticated caller id in the X-User-ID header.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/logger"
	"mistrihub/internal/common/metrics"
	"mistrihub/internal/common/observability"
	"mistrihub/internal/lifecycle"
	"mistrihub/internal/store"
)

type Server struct {
	engine         *lifecycle.Engine
	db             *sql.DB
	notifications  *store.NotificationStore
	obs            *observability.Observability
	logger         logger.Logger
	requestTimeout time.Duration
}

func NewServer(engine *lifecycle.Engine, db *sql.DB, obs *observability.Observability, requestTimeout time.Duration, log logger.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Server{
		engine:         engine,
		db:             db,
		notifications:  store.NewNotificationStore(),
		obs:            obs,
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
		requestTimeout: requestTimeout,
	}
}

// Routes builds the full handler, metrics and health included.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/jobs", s.handle("createJob", s.createJob))
	mux.HandleFunc("GET /api/jobs/{id}", s.handle("getJob", s.getJob))
	mux.HandleFunc("POST /api/jobs/{id}/applications", s.handle("applyToJob", s.applyToJob))
	mux.HandleFunc("GET /api/jobs/{id}/applications", s.handle("listApplications", s.listApplications))
	mux.HandleFunc("POST /api/jobs/{id}/applications/{appId}/accept", s.handle("acceptApplication", s.acceptApplication))
	mux.HandleFunc("POST /api/jobs/{id}/schedule", s.handle("scheduleJob", s.scheduleJob))
	mux.HandleFunc("POST /api/jobs/{id}/start", s.handle("startJob", s.startJob))
	mux.HandleFunc("POST /api/jobs/{id}/complete", s.handle("completeJob", s.completeJob))
	mux.HandleFunc("POST /api/jobs/{id}/confirm", s.handle("confirmJob", s.confirmJob))
	mux.HandleFunc("GET /api/notifications", s.handle("listNotifications", s.listNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handle("markNotificationRead", s.markNotificationRead))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.healthz)

	return mux
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle wraps a handler with the request timeout, duration metrics and
// uniform error rendering.
func (s *Server) handle(operation string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()

		err := fn(w, r.WithContext(ctx))

		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
		status := "ok"
		if err != nil {
			status = string(apperrors.KindOf(err))
			s.writeError(w, r, operation, err)
		}
		if s.obs != nil {
			s.obs.RecordRequest(r.Context(), operation, status)
			s.obs.RecordDuration(r.Context(), operation, elapsed)
		}
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// callerID extracts the pre-authenticated user id.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForKind maps the error taxonomy onto HTTP. InvalidState and
// Conflict both render 409 but keep distinct codes so the UI can tell
// "not right now" from "already taken".
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindInvalidState, apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)

	message := "internal error"
	var de *apperrors.Error
	if errors.As(err, &de) && kind != apperrors.KindInternal {
		message = de.Message
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"operation": operation,
			"path":      r.URL.Path,
			"error":     err.Error(),
		})
	} else {
		s.logger.Debug("request rejected", map[string]interface{}{
			"operation": operation,
			"path":      r.URL.Path,
			"kind":      string(kind),
		})
	}

	writeJSON(w, status, errorResponse{Code: string(kind), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func unauthenticated(w http.ResponseWriter) error {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Code:    "UNAUTHENTICATED",
		Message: "missing caller identity",
	})
	return nil
}
