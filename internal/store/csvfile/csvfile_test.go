package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "subscriptions.csv")
	s := New(path)

	subs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name,cost,day\n", string(data))
}

func TestSaveLoadRoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "subscriptions.csv"))

	in := []core.Subscription{
		{ID: "z", Name: "Zeta", Cost: decimal.RequireFromString("100"), Day: 1},
		{ID: "a", Name: "Alpha, \"quoted\"", Cost: decimal.RequireFromString("9.99"), Day: 31},
		{ID: "m", Name: "Mid", Cost: decimal.RequireFromString("2.5"), Day: 15},
	}
	require.NoError(t, s.Save(ctx, in))

	first, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first))
	second, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(in))
	for i := range in {
		assert.True(t, in[i].Equal(second[i]), "row %d: got %+v want %+v", i, second[i], in[i])
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "subscriptions.csv"))
	require.NoError(t, s.Save(context.Background(), []core.Subscription{
		{ID: "a", Name: "A", Cost: decimal.NewFromInt(1), Day: 1},
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "subscriptions.csv", entries[0].Name())
}

func TestLoadLegacyFileWithoutIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,cost,day\nNetflix,15.99,5\n"), 0o644))

	subs, err := New(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].ID)
	assert.Equal(t, 5, subs[0].Day)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	subs, err := New(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestLoadMalformedNumberPropagates(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"word cost", "a,Netflix,cheap,5", "cost"},
		{"comma decimal cost", `a,Netflix,"15,99",5`, "cost"},
		{"word day", "a,Netflix,15.99,fifth", "day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "subscriptions.csv")
			require.NoError(t, os.WriteFile(path, []byte("id,name,cost,day\n"+tt.row+"\n"), 0o644))

			subs, err := New(path).Load(context.Background())
			var perr *store.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
			assert.Nil(t, subs)
		})
	}
}
