package symbol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

const registryYAML = `
watchlist:
  - symbol: RELIANCE
    class: equity
    exchange: NSE
    strike_interval: 25
    lot_size: 250
  - symbol: NIFTY
    class: index
    exchange: NSE
    algomojo_symbol: NIFTY-I
    strike_interval: 50
    lot_size: 75
rules:
  - from: tv
    to: algomojo
    apply_to: [equity]
    use_regex: true
    pattern: "^([A-Z0-9&]+)$"
    replacement: "$1-EQ"
  - from: algomojo
    to: tv
    apply_to: [equity]
    use_regex: true
    pattern: "^([A-Z0-9&]+)-EQ$"
    replacement: "$1"
  - from: tv
    to: algomojo
    apply_to: [index]
    use_regex: true
    pattern: "^([A-Z]+)$"
    replacement: "$1-I"
  - from: algomojo
    to: tv
    apply_to: [index]
    use_regex: true
    pattern: "^([A-Z]+)-I$"
    replacement: "$1"
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistry_LoadsWatchlistAndRules(t *testing.T) {
	r, err := NewRegistry(writeRegistry(t, registryYAML))
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.Watchlist, 2)
	assert.Equal(t, int64(1), snap.Version)

	rel, ok := r.Instrument("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, types.ClassEquity, rel.Class)
	assert.Equal(t, 250, rel.LotSize)

	_, ok = r.Instrument("TCS")
	assert.False(t, ok)
}

func TestRegistry_Convert(t *testing.T) {
	r, err := NewRegistry(writeRegistry(t, registryYAML))
	require.NoError(t, err)

	t.Run("rule based", func(t *testing.T) {
		got, err := r.Convert("RELIANCE", SchemeTV, SchemeAlgomojo)
		require.NoError(t, err)
		assert.Equal(t, "RELIANCE-EQ", got)

		back, err := r.Convert("RELIANCE-EQ", SchemeAlgomojo, SchemeTV)
		require.NoError(t, err)
		assert.Equal(t, "RELIANCE", back)
	})

	t.Run("explicit override beats rules", func(t *testing.T) {
		got, err := r.Convert("NIFTY", SchemeTV, SchemeAlgomojo)
		require.NoError(t, err)
		assert.Equal(t, "NIFTY-I", got)
	})

	t.Run("unknown symbol falls back to equity rules", func(t *testing.T) {
		got, err := r.Convert("TCS", SchemeTV, SchemeAlgomojo)
		require.NoError(t, err)
		assert.Equal(t, "TCS-EQ", got)
	})

	t.Run("nothing applies", func(t *testing.T) {
		_, err := r.Convert("tcs", SchemeTV, SchemeAlgomojo)
		assert.ErrorIs(t, err, ErrNoMatchingRule)
	})
}

func TestRegistry_ReloadReplacesWatchlistOnly(t *testing.T) {
	path := writeRegistry(t, registryYAML)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	updated := `
watchlist:
  - symbol: TCS
    class: equity
    exchange: NSE
rules:
  - from: tv
    to: algomojo
    apply_to: [commodity]
    pattern: "CRUDEOIL"
    replacement: "CRUDEOILM"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, r.reload())

	snap := r.Snapshot()
	assert.Equal(t, int64(2), snap.Version)
	require.Len(t, snap.Watchlist, 1)
	assert.Equal(t, "TCS", snap.Watchlist[0].Symbol)

	// rule edits do not take effect until restart
	_, err = r.Convert("CRUDEOIL", SchemeTV, SchemeAlgomojo)
	assert.ErrorIs(t, err, ErrNoMatchingRule)
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry("")
	assert.Error(t, err)

	_, err = NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewRegistry(writeRegistry(t, "watchlist:\n  - class: equity\n"))
	assert.Error(t, err)
}
