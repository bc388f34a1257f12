package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swiftmart-be/internal/logger"
	"swiftmart-be/internal/metrics"
	"swiftmart-be/internal/utils"
)

// responseRecorder lets us capture HTTP status codes
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags every request with an id and logs it structured.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.StartTimer()

		ctx := logger.WithRequestID(r.Context(), uuid.NewString())
		r = r.WithContext(ctx)

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		userID, _ := utils.GetUserIDFromContext(r.Context())
		logger.FromCtx(ctx).Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", timer.Duration()),
			zap.String("remote_ip", r.RemoteAddr),
			zap.Uint("user_id", userID),
		)
	})
}
