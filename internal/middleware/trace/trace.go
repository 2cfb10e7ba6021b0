// Package trace logs the start and end of each request.
package trace

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	applog "abbonamenti/internal/log"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
	}
}

// Middleware must run after chi's RequestID so the id is in the context.
// Handlers find a logger carrying the request id via log.FromContext.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		reqLogger := m.logger.With(applog.FieldRequestID, chimw.GetReqID(r.Context()))
		ctx := applog.NewContext(r.Context(), reqLogger)
		r = r.WithContext(ctx)
		sl := applog.NewStructuredLogger(reqLogger)

		sl.LogHTTPStart(ctx, r, clientIP)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		sl.LogHTTPEnd(ctx, r, status, time.Since(start).Milliseconds(), clientIP)
	})
}
