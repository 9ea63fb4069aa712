package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// QuoteCache is a time-boxed quote store in cache.db. Entries are encoded
// with msgpack; a stale or undecodable entry reads as a miss.
type QuoteCache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewQuoteCache creates a quote cache with the given entry lifetime
func NewQuoteCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *QuoteCache {
	return &QuoteCache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("cache", "quotes").Logger(),
	}
}

// Get returns the cached quote for the symbol, or nil on a miss
func (c *QuoteCache) Get(symbol string) *Quote {
	var payload []byte
	var cachedAt int64
	err := c.db.QueryRow(`SELECT payload, cached_at FROM quote_cache WHERE symbol = ?`, symbol).
		Scan(&payload, &cachedAt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		return nil
	}

	if time.Since(time.Unix(cachedAt, 0)) > c.ttl {
		return nil
	}

	var q Quote
	if err := msgpack.Unmarshal(payload, &q); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache entry undecodable, dropping")
		_ = c.Delete(symbol)
		return nil
	}

	return &q
}

// Put stores the quote, replacing any previous entry for the symbol
func (c *QuoteCache) Put(q *Quote) error {
	payload, err := msgpack.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode quote for %s: %w", q.Symbol, err)
	}

	_, err = c.db.Exec(`INSERT OR REPLACE INTO quote_cache (symbol, payload, cached_at)
		VALUES (?, ?, ?)`, q.Symbol, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store quote for %s: %w", q.Symbol, err)
	}
	return nil
}

// Delete removes the entry for the symbol
func (c *QuoteCache) Delete(symbol string) error {
	if _, err := c.db.Exec(`DELETE FROM quote_cache WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to delete cache entry for %s: %w", symbol, err)
	}
	return nil
}

// PurgeExpired removes every entry older than the TTL
func (c *QuoteCache) PurgeExpired() (int64, error) {
	cutoff := time.Now().Add(-c.ttl).Unix()

	result, err := c.db.Exec(`DELETE FROM quote_cache WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge quote cache: %w", err)
	}

	purged, _ := result.RowsAffected()
	if purged > 0 {
		c.log.Debug().Int64("purged", purged).Msg("Expired quotes purged")
	}
	return purged, nil
}
