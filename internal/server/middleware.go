package server

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/authz"
)

// schedulerHeader carries the cron scheduler's shared token.
const schedulerHeader = "X-Scheduler-Token"

// requireOperation authenticates the bearer token and checks that its role
// may invoke op. When allowScheduler is set, a valid scheduler token header
// bypasses the JWT entirely.
func (s *Server) requireOperation(op authz.Operation, allowScheduler bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowScheduler && s.deps.Policy.AllowScheduler(r.Header.Get(schedulerHeader)) {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
				return
			}

			claims, err := s.deps.Policy.Validate(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
				return
			}
			if !authz.Allowed(claims.Role, op) {
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "operation not permitted"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
