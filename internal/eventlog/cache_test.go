package eventlog

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(n int) []IssueHistory {
	rows := make([]IssueHistory, n)
	for i := range rows {
		rows[i] = IssueHistory{
			Key:         "PROJ-" + strconv.Itoa(i+1),
			Summary:     "Repeated summary text compresses well",
			CurrentSize: Float(float64(i % 5)),
			Fields:      map[string]string{"Team": "Blue"},
			StatusChanges: []StatusChange{
				{Status: "Open", Date: time.Date(2024, 1, 1, 9, 30, 0, 123, time.UTC)},
				{Status: "Done", Date: time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC)},
			},
			SizeChanges: []SizeChange{{Date: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)}},
			Links:       []IssueLink{{Source: "PROJ-1", OutwardLink: "blocks", Target: "PROJ-2", InwardLink: "is blocked by", LinkType: "Blocks"}},
		}
	}
	return rows
}

func TestFileCache_StoreAndLoad(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			cache, err := NewFileCache(filepath.Join(t.TempDir(), "cache"), compression)
			require.NoError(t, err)

			_, ok, err := cache.LoadCachedRows("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			rows := sampleRows(50)
			require.NoError(t, cache.StoreCachedRows("k", rows))

			got, ok, err := cache.LoadCachedRows("k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, rows, got)
		})
	}
}

func TestFileCache_Corrupt(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, CompressionZstd)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.rows"), []byte("not a cache"), 0o644))
	_, _, err = cache.LoadCachedRows("bad")
	assert.ErrorIs(t, err, ErrCorruptCache)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionZstd, "LZ4": CompressionLZ4, "none": CompressionNone} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("a", "b"), CacheKey("a", "b"))
	assert.NotEqual(t, CacheKey("ab"), CacheKey("a", "b"))
	assert.Len(t, CacheKey("x"), 32)
}
