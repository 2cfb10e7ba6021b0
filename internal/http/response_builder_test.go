package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abbonamenti/internal/core"
)

func TestBuildIndexViewSortLinks(t *testing.T) {
	tests := []struct {
		name       string
		field      core.SortField
		dir        core.Direction
		activeIdx  int
		activeHref string
		arrow      string
	}{
		{"cost ascending flips to desc", core.SortByCost, core.Ascending, 1, "/?direction=desc&sort=cost", "↑"},
		{"cost descending flips to asc", core.SortByCost, core.Descending, 1, "/?direction=asc&sort=cost", "↓"},
		{"default column", core.SortByNextRenewal, core.Ascending, 2, "/?direction=desc&sort=next_renewal", "↑"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := buildIndexView(core.Overview{SortBy: tt.field, Direction: tt.dir})

			require.Len(t, v.SortLinks, 3)
			for i, l := range v.SortLinks {
				if i == tt.activeIdx {
					assert.True(t, l.Active)
					assert.Equal(t, tt.activeHref, l.Href)
					assert.Equal(t, tt.arrow, l.Arrow)
					continue
				}
				assert.False(t, l.Active)
				assert.Contains(t, l.Href, "direction=asc")
				assert.Empty(t, l.Arrow)
			}
		})
	}
}
