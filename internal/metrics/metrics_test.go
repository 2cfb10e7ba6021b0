package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abbonamenti/internal/core"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/delete/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusFound) })

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/delete/"+id, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/delete/{id}", "302")))
}

func TestObserveOverviewAndMutations(t *testing.T) {
	m := New()
	m.ObserveOverview(core.Overview{
		Items:    make([]core.Listing, 3),
		Total:    decimal.RequireFromString("48.49"),
		Upcoming: 2,
	})
	m.RecordMutation("create", ResultSaved)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.Subscriptions))
	assert.InDelta(t, 48.49, testutil.ToFloat64(m.MonthlyCost), 1e-9)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.UpcomingRenewals))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MutationsTotal.WithLabelValues("create", ResultSaved)))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecordMutation("delete", ResultIgnored)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `abbonamenti_mutations_total{operation="delete",result="ignored"} 1`))
}
