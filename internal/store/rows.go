package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"abbonamenti/internal/core"
)

const (
	ColumnID   = "id"
	ColumnName = "name"
	ColumnCost = "cost"
	ColumnDay  = "day"
)

// Header is the persisted column layout. Derived fields never appear here.
var Header = []string{ColumnID, ColumnName, ColumnCost, ColumnDay}

var ErrMissingColumn = errors.New("missing column")

// ParseError reports a stored value that is not numeric where it must be.
type ParseError struct {
	Row   int // 1-based data row, header excluded
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: parse %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeRows turns a header plus data rows into subscriptions.
// Columns are matched by header name, so order and extra columns don't matter.
// A missing id column is tolerated; ids are then left empty for backfill.
func DecodeRows(header []string, rows [][]string) ([]core.Subscription, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, col := range []string{ColumnName, ColumnCost, ColumnDay} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	subs := make([]core.Subscription, 0, len(rows))
	for n, row := range rows {
		if isBlank(row) {
			continue
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		day, err := core.ParseDay(get(ColumnDay))
		if err != nil {
			return nil, &ParseError{Row: n + 1, Field: ColumnDay, Value: get(ColumnDay), Err: err}
		}
		cost, err := core.ParseStoredCost(get(ColumnCost))
		if err != nil {
			return nil, &ParseError{Row: n + 1, Field: ColumnCost, Value: get(ColumnCost), Err: err}
		}
		subs = append(subs, core.Subscription{
			ID:   strings.TrimSpace(get(ColumnID)),
			Name: get(ColumnName),
			Cost: cost,
			Day:  day,
		})
	}
	return subs, nil
}

// EncodeRows renders subscriptions as text rows in Header order.
func EncodeRows(subs []core.Subscription) [][]string {
	rows := make([][]string, len(subs))
	for i, s := range subs {
		rows[i] = []string{s.ID, s.Name, s.Cost.String(), strconv.Itoa(s.Day)}
	}
	return rows
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
