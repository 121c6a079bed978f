package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/baharkarakas/charity-faceoff/internal/logger"
)

const requestIDHeader = "X-Request-Id"

func RequestIDFrom(ctx context.Context) string {
	return logger.RequestID(ctx)
}

// RequestID reuses a caller-supplied id when it is short enough to be sane.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
