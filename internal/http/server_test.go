package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abbonamenti/internal/core"
	applog "abbonamenti/internal/log"
	"abbonamenti/internal/services"
	"abbonamenti/internal/store"
	"abbonamenti/internal/store/memory"
)

var testNow = time.Date(2024, time.April, 10, 12, 0, 0, 0, time.UTC)

func sub(id, name, cost string, day int) core.Subscription {
	return core.Subscription{ID: id, Name: name, Cost: decimal.RequireFromString(cost), Day: day}
}

func newTestServer(t *testing.T, perMinute int, seed ...core.Subscription) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New(seed...)
	svc := services.NewSubscriptionService(st, services.WithClock(func() time.Time { return testNow }))
	srv, err := NewServer(Config{
		Addr:               ":0",
		Service:            svc,
		Store:              st,
		Logger:             applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)}),
		RateLimitPerMinute: perMinute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv, st
}

func do(srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func stored(t *testing.T, st *memory.Store) []core.Subscription {
	t.Helper()
	subs, err := st.Load(context.Background())
	require.NoError(t, err)
	return subs
}

func assertRedirectHome(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestIndexEmpty(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(srv, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No subscriptions yet.")
	assert.Contains(t, rec.Body.String(), "0.00")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestIndexSortsAndHighlights(t *testing.T) {
	srv, _ := newTestServer(t, 0,
		sub("a", "Netflix", "15.99", 5),
		sub("b", "Spotify", "9.99", 20),
		sub("c", "Gym", "30", 12),
	)

	rec := do(srv, http.MethodGet, "/?sort=cost&direction=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	gym, netflix, spotify := strings.Index(body, "Gym"), strings.Index(body, "Netflix"), strings.Index(body, "Spotify")
	assert.Less(t, gym, netflix)
	assert.Less(t, netflix, spotify)
	assert.Contains(t, body, "55.98")
	assert.Contains(t, body, "2024-04-12")
	assert.Equal(t, 1, strings.Count(body, `<tr class="alert">`))
	assert.Contains(t, body, "1 renewing within 7 days")
}

func TestIndexEditFormKeepsExactCost(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Tiny", "0.125", 5))

	body := do(srv, http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, body, `name="cost" value="0.125"`)
	assert.Contains(t, body, "0.13")

	rec := do(srv, http.MethodPost, "/", url.Values{"edit": {"1"}, "id": {"a"}, "name": {"Tinier"}, "cost": {"0.125"}, "day": {"5"}})
	assertRedirectHome(t, rec)
	assert.True(t, stored(t, st)[0].Cost.Equal(decimal.RequireFromString("0.125")))
}

func TestAddKeepsLongName(t *testing.T) {
	srv, st := newTestServer(t, 0)
	name := strings.Repeat("é", 250)

	rec := do(srv, http.MethodPost, "/", url.Values{"add": {"1"}, "name": {name}, "cost": {"1"}, "day": {"5"}})

	assertRedirectHome(t, rec)
	require.Len(t, stored(t, st), 1)
	assert.Equal(t, name, stored(t, st)[0].Name)
}

func TestIndexDefaultsToNextRenewal(t *testing.T) {
	srv, _ := newTestServer(t, 0,
		sub("a", "Netflix", "15.99", 5),
		sub("b", "Spotify", "9.99", 20),
	)

	body := do(srv, http.MethodGet, "/?sort=bogus&direction=sideways", nil).Body.String()

	assert.Less(t, strings.Index(body, "Spotify"), strings.Index(body, "Netflix"))
}

func TestAddViaIndexForm(t *testing.T) {
	srv, st := newTestServer(t, 0)

	rec := do(srv, http.MethodPost, "/", url.Values{"add": {"1"}, "name": {"Netflix"}, "cost": {"15.99"}, "day": {"5"}})

	assertRedirectHome(t, rec)
	subs := stored(t, st)
	require.Len(t, subs, 1)
	assert.NotEmpty(t, subs[0].ID)
	assert.Equal(t, "Netflix", subs[0].Name)
	assert.True(t, subs[0].Cost.Equal(decimal.RequireFromString("15.99")))
	assert.Equal(t, 5, subs[0].Day)
}

func TestAddIgnoresEmptyFields(t *testing.T) {
	for _, missing := range []string{"name", "cost", "day"} {
		t.Run(missing, func(t *testing.T) {
			srv, st := newTestServer(t, 0)
			form := url.Values{"add": {"1"}, "name": {"Netflix"}, "cost": {"15.99"}, "day": {"5"}}
			form.Set(missing, "")

			rec := do(srv, http.MethodPost, "/", form)

			assertRedirectHome(t, rec)
			assert.Empty(t, stored(t, st))
			assert.Zero(t, st.Saves())
		})
	}
}

func TestAddRejectsNonNumeric(t *testing.T) {
	tests := []struct {
		name string
		cost string
		day  string
	}{
		{"bad cost", "abc", "5"},
		{"bad day", "15.99", "fifth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t, 0)

			rec := do(srv, http.MethodPost, "/subscriptions", url.Values{"name": {"Netflix"}, "cost": {tt.cost}, "day": {tt.day}})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, st.Saves())
		})
	}
}

func TestEditViaIndexForm(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5), sub("b", "Spotify", "9.99", 20))

	rec := do(srv, http.MethodPost, "/", url.Values{
		"edit": {"1"}, "id": {"a"}, "name": {"Netflix 4K"}, "cost": {"19,99"}, "day": {"31"},
	})

	assertRedirectHome(t, rec)
	subs := stored(t, st)
	require.Len(t, subs, 2)
	assert.Equal(t, "a", subs[0].ID)
	assert.Equal(t, "Netflix 4K", subs[0].Name)
	assert.True(t, subs[0].Cost.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 31, subs[0].Day)
	assert.Equal(t, "Spotify", subs[1].Name)
}

func TestEditViaPath(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5))

	rec := do(srv, http.MethodPost, "/subscriptions/a", url.Values{"name": {"Netflix"}, "cost": {"17.99"}, "day": {"5"}})

	assertRedirectHome(t, rec)
	assert.True(t, stored(t, st)[0].Cost.Equal(decimal.RequireFromString("17.99")))
}

func TestEditRejectsIncompleteForm(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing id", url.Values{"edit": {"1"}, "name": {"X"}, "cost": {"1"}, "day": {"1"}}},
		{"missing name", url.Values{"edit": {"1"}, "id": {"a"}, "cost": {"1"}, "day": {"1"}}},
		{"missing cost", url.Values{"edit": {"1"}, "id": {"a"}, "name": {"X"}, "day": {"1"}}},
		{"empty day", url.Values{"edit": {"1"}, "id": {"a"}, "name": {"X"}, "cost": {"1"}, "day": {""}}},
		{"bad cost", url.Values{"edit": {"1"}, "id": {"a"}, "name": {"X"}, "cost": {"x"}, "day": {"1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5))

			rec := do(srv, http.MethodPost, "/", tt.form)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, st.Saves())
		})
	}
}

func TestEditUnknownIDIsNoop(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5))

	rec := do(srv, http.MethodPost, "/", url.Values{"edit": {"1"}, "id": {"zzz"}, "name": {"X"}, "cost": {"1"}, "day": {"1"}})

	assertRedirectHome(t, rec)
	assert.Zero(t, st.Saves())
	assert.Equal(t, "Netflix", stored(t, st)[0].Name)
}

func TestPostWithoutActionRendersList(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5))

	rec := do(srv, http.MethodPost, "/", url.Values{"name": {"X"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Netflix")
	assert.Zero(t, st.Saves())
}

func TestDelete(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5), sub("b", "Spotify", "9.99", 20))

			rec := do(srv, method, "/delete/a", nil)

			assertRedirectHome(t, rec)
			subs := stored(t, st)
			require.Len(t, subs, 1)
			assert.Equal(t, "b", subs[0].ID)
		})
	}
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	srv, st := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5))

	rec := do(srv, http.MethodGet, "/delete/nope", nil)

	assertRedirectHome(t, rec)
	assert.Zero(t, st.Saves())
	assert.Len(t, stored(t, st), 1)
}

func TestStoreErrorsAnswer500(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"io", errors.New("disk on fire")},
		{"corrupt row", &store.ParseError{Row: 2, Field: store.ColumnCost, Value: "abc", Err: core.ErrInvalidCost}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t, 0)
			st.LoadErr = tt.err

			assert.Equal(t, http.StatusInternalServerError, do(srv, http.MethodGet, "/", nil).Code)
			rec := do(srv, http.MethodPost, "/", url.Values{"add": {"1"}, "name": {"X"}, "cost": {"1"}, "day": {"1"}})
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestAPIList(t *testing.T) {
	srv, _ := newTestServer(t, 0, sub("a", "Netflix", "15.99", 5), sub("b", "gym", "30", 12))

	rec := do(srv, http.MethodGet, "/api/subscriptions?sort=alphabetical", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got struct {
		Subscriptions []struct {
			ID          string `json:"id"`
			Cost        string `json:"cost"`
			NextRenewal string `json:"next_renewal"`
			Alert       bool   `json:"alert"`
		} `json:"subscriptions"`
		Total     string `json:"total"`
		Sort      string `json:"sort"`
		Direction string `json:"direction"`
		Upcoming  int    `json:"upcoming"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Subscriptions, 2)
	assert.Equal(t, "b", got.Subscriptions[0].ID)
	assert.Equal(t, "2024-04-12", got.Subscriptions[0].NextRenewal)
	assert.True(t, got.Subscriptions[0].Alert)
	assert.Equal(t, "15.99", got.Subscriptions[1].Cost)
	assert.Equal(t, "45.99", got.Total)
	assert.Equal(t, "alphabetical", got.Sort)
	assert.Equal(t, "asc", got.Direction)
	assert.Equal(t, 1, got.Upcoming)
}

func TestHealthAndReadiness(t *testing.T) {
	srv, st := newTestServer(t, 0)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", nil).Code)

	st.LoadErr = errors.New("unreachable")
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	do(srv, http.MethodPost, "/", url.Values{"add": {"1"}, "name": {"Netflix"}, "cost": {"15.99"}, "day": {"5"}})
	do(srv, http.MethodGet, "/delete/nope", nil)
	do(srv, http.MethodGet, "/", nil)

	rec := do(srv, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `abbonamenti_mutations_total{operation="create",result="saved"} 1`)
	assert.Contains(t, body, `abbonamenti_mutations_total{operation="delete",result="ignored"} 1`)
	assert.Contains(t, body, `abbonamenti_subscriptions 1`)
	assert.Contains(t, body, `route="/delete/{id}"`)
	assert.Contains(t, body, "abbonamenti_rate_limit_rejections_total 0")
}

func TestRateLimitAppliesToPostsOnly(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	form := url.Values{"add": {"1"}, "name": {"Netflix"}, "cost": {"15.99"}, "day": {"5"}}

	assert.Equal(t, http.StatusFound, do(srv, http.MethodPost, "/", form).Code)
	rec := do(srv, http.MethodPost, "/", form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/", nil).Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(srv, http.MethodGet, "/static/style.css", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Contains(t, rec.Body.String(), "tr.alert")
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
