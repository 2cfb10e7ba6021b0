package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"abbonamenti/internal/core"
)

var templateFuncs = template.FuncMap{
	"cost": core.FormatCost,
	"date": func(t time.Time) string { return t.Format(time.DateOnly) },
}

// sortLink is a column header link. Clicking the active column flips the
// direction; any other column starts ascending.
type sortLink struct {
	Label  string
	Href   string
	Active bool
	Arrow  string
}

type indexView struct {
	core.Overview
	SortLinks []sortLink
}

func buildIndexView(ov core.Overview) indexView {
	columns := []struct {
		label string
		field core.SortField
	}{
		{"Name", core.SortByAlphabetical},
		{"Cost", core.SortByCost},
		{"Next renewal", core.SortByNextRenewal},
	}

	links := make([]sortLink, 0, len(columns))
	for _, c := range columns {
		link := sortLink{Label: c.label, Href: sortHref(c.field, core.Ascending)}
		if c.field == ov.SortBy {
			link.Active = true
			if ov.Direction == core.Descending {
				link.Arrow = "↓"
			} else {
				link.Arrow = "↑"
				link.Href = sortHref(c.field, core.Descending)
			}
		}
		links = append(links, link)
	}
	return indexView{Overview: ov, SortLinks: links}
}

func sortHref(field core.SortField, dir core.Direction) string {
	q := url.Values{}
	q.Set("sort", string(field))
	q.Set("direction", string(dir))
	return "/?" + q.Encode()
}

type apiSubscription struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	Day         int             `json:"day"`
	NextRenewal string          `json:"next_renewal"`
	Alert       bool            `json:"alert"`
}

type apiOverview struct {
	Subscriptions []apiSubscription `json:"subscriptions"`
	Total         decimal.Decimal   `json:"total"`
	Sort          core.SortField    `json:"sort"`
	Direction     core.Direction    `json:"direction"`
	Upcoming      int               `json:"upcoming"`
}

func buildAPIOverview(ov core.Overview) apiOverview {
	subs := make([]apiSubscription, len(ov.Items))
	for i, it := range ov.Items {
		subs[i] = apiSubscription{
			ID:          it.ID,
			Name:        it.Name,
			Cost:        it.Cost,
			Day:         it.Day,
			NextRenewal: it.NextRenewal.Format(time.DateOnly),
			Alert:       it.Alert,
		}
	}
	return apiOverview{
		Subscriptions: subs,
		Total:         ov.Total,
		Sort:          ov.SortBy,
		Direction:     ov.Direction,
		Upcoming:      ov.Upcoming,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}
