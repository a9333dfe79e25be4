package snapshot

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-tracker/store"
)

func TestCompressRoundTrip(t *testing.T) {
	input := []byte(`{"ticker":"AD.AS","greeks":[]}`)
	packed, err := compress(input)
	require.NoError(t, err)

	out, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestArchiveAppendRead(t *testing.T) {
	a := NewArchive(t.TempDir())
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch1 := []store.OptionGreeks{
		{ContractID: 1, Ticker: "AD.AS", Strike: 37, Type: "Call", IV: 0.21, Delta: 0.48},
		{ContractID: 2, Ticker: "AD.AS", Strike: 37, Type: "Put", IV: 0.21, Delta: -0.52},
	}
	batch2 := []store.OptionGreeks{
		{ContractID: 1, Ticker: "AD.AS", Strike: 37, Type: "Call", IV: 0.22, Delta: 0.50},
	}

	path, err := a.Append("AD.AS", asOf, batch1)
	require.NoError(t, err)
	_, err = a.Append("AD.AS", asOf, batch2)
	require.NoError(t, err)

	frames, err := a.Read(asOf)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, "AD.AS", frames[0].Ticker)
	assert.Equal(t, "2026-03-02", frames[0].AsOfDate)
	require.Len(t, frames[0].Greeks, 2)
	assert.InDelta(t, 0.21, frames[0].Greeks[0].IV, 1e-9)
	require.Len(t, frames[1].Greeks, 1)
	assert.InDelta(t, 0.22, frames[1].Greeks[0].IV, 1e-9)

	// One file per day, frames appended in order.
	assert.Contains(t, path, "greeks_20260302.json.zstd")
}

func TestArchiveReadTruncated(t *testing.T) {
	a := NewArchive(t.TempDir())
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := a.Append("AD.AS", asOf, nil)
	require.NoError(t, err)

	// Chop the tail off the last frame.
	b, err := os.ReadFile(a.pathFor(asOf))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a.pathFor(asOf), b[:len(b)-3], 0644))

	_, err = a.Read(asOf)
	assert.Error(t, err)
}

func TestArchiveReadMissingDay(t *testing.T) {
	a := NewArchive(t.TempDir())
	_, err := a.Read(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	assert.True(t, os.IsNotExist(err))
}
