package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"abbonamenti/internal/core"
)

// Form keys of the list page.
const (
	formAdd  = "add"
	formEdit = "edit"
	formID   = "id"
	formName = "name"
	formCost = "cost"
	formDay  = "day"
)

var errMissingField = errors.New("missing field")

// SubscriptionForm holds the parsed fields of an add or edit form.
type SubscriptionForm struct {
	Name string
	Cost decimal.Decimal
	Day  int
}

// ParseAddForm parses an add form. It reports ok=false, with no error, when
// any of name, cost or day is empty: such submissions are ignored.
func ParseAddForm(form url.Values) (f SubscriptionForm, ok bool, err error) {
	name, cost, day := form.Get(formName), form.Get(formCost), form.Get(formDay)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(cost) == "" || strings.TrimSpace(day) == "" {
		return SubscriptionForm{}, false, nil
	}
	f, err = parseFields(name, cost, day)
	if err != nil {
		return SubscriptionForm{}, false, err
	}
	return f, true, nil
}

// ParseEditForm parses an edit form, where every field is required.
func ParseEditForm(form url.Values) (SubscriptionForm, error) {
	for _, k := range []string{formName, formCost, formDay} {
		if strings.TrimSpace(form.Get(k)) == "" {
			return SubscriptionForm{}, fmt.Errorf("%w: %s", errMissingField, k)
		}
	}
	return parseFields(form.Get(formName), form.Get(formCost), form.Get(formDay))
}

func parseFields(name, cost, day string) (SubscriptionForm, error) {
	c, err := core.ParseCost(cost)
	if err != nil {
		return SubscriptionForm{}, fmt.Errorf("cost %q: %w", cost, err)
	}
	d, err := core.ParseDay(day)
	if err != nil {
		return SubscriptionForm{}, fmt.Errorf("day %q: %w", day, err)
	}
	return SubscriptionForm{Name: name, Cost: c, Day: d}, nil
}

// ParseListQuery reads sort and direction, falling back to next renewal
// ascending for missing or unknown values.
func ParseListQuery(q url.Values) (core.SortField, core.Direction) {
	return core.ParseSortField(q.Get("sort")), core.ParseDirection(q.Get("direction"))
}
