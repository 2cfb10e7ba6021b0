package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	applog "abbonamenti/internal/log"
)

func TestMiddlewareLogsWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	m := NewMiddleware(logger, func(*http.Request) string { return "192.0.2.1" })

	var seenID string
	h := chimw.RequestID(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = chimw.GetReqID(r.Context())
		if applog.FromContext(r.Context()).Component() != "test" {
			t.Error("request logger missing from context")
		}
		http.NotFound(w, r)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if seenID == "" {
		t.Fatal("request id not propagated")
	}
	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "status_code=404", "client_ip=192.0.2.1", "request_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("4xx should log at warn:\n%s", out)
	}
}
