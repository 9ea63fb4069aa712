package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuoteCache(t *testing.T, ttl time.Duration) *QuoteCache {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewQuoteCache(setupMarketDB(t), ttl, log)
}

func TestQuoteCache_PutAndGet(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)

	q := Quote{
		Symbol:        "AAPL",
		Name:          "Apple Inc.",
		Price:         185.5,
		PreviousClose: 184.0,
		ChangePct:     0.815,
		FetchedAt:     time.Now().Unix(),
	}
	require.NoError(t, cache.Put(&q))

	got := cache.Get("AAPL")
	require.NotNil(t, got)
	assert.Equal(t, q.Symbol, got.Symbol)
	assert.Equal(t, q.Name, got.Name)
	assert.InDelta(t, q.Price, got.Price, 1e-12)
	assert.InDelta(t, q.ChangePct, got.ChangePct, 1e-12)
}

func TestQuoteCache_MissReturnsNil(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)
	assert.Nil(t, cache.Get("MISSING"))
}

func TestQuoteCache_StaleEntryIsAMiss(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)

	require.NoError(t, cache.Put(&Quote{Symbol: "AAPL", Price: 185.5}))

	// Age the row past the TTL.
	_, err := cache.db.Exec(`UPDATE quote_cache SET cached_at = ? WHERE symbol = ?`,
		time.Now().Add(-2*time.Minute).Unix(), "AAPL")
	require.NoError(t, err)

	assert.Nil(t, cache.Get("AAPL"))
}

func TestQuoteCache_CorruptPayloadIsEvicted(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)

	_, err := cache.db.Exec(`INSERT INTO quote_cache (symbol, payload, cached_at) VALUES (?, ?, ?)`,
		"AAPL", []byte("not msgpack"), time.Now().Unix())
	require.NoError(t, err)

	assert.Nil(t, cache.Get("AAPL"))

	var count int
	require.NoError(t, cache.db.QueryRow(`SELECT COUNT(*) FROM quote_cache`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestQuoteCache_PutReplaces(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)

	require.NoError(t, cache.Put(&Quote{Symbol: "AAPL", Price: 180.0}))
	require.NoError(t, cache.Put(&Quote{Symbol: "AAPL", Price: 186.0}))

	got := cache.Get("AAPL")
	require.NotNil(t, got)
	assert.InDelta(t, 186.0, got.Price, 1e-12)
}

func TestQuoteCache_PurgeExpired(t *testing.T) {
	cache := newQuoteCache(t, time.Minute)

	require.NoError(t, cache.Put(&Quote{Symbol: "AAPL", Price: 185.5}))
	require.NoError(t, cache.Put(&Quote{Symbol: "MSFT", Price: 410.0}))

	_, err := cache.db.Exec(`UPDATE quote_cache SET cached_at = ? WHERE symbol = ?`,
		time.Now().Add(-time.Hour).Unix(), "AAPL")
	require.NoError(t, err)

	purged, err := cache.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	assert.Nil(t, cache.Get("AAPL"))
	assert.NotNil(t, cache.Get("MSFT"))
}
