package portfolio

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE holdings (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			shares REAL NOT NULL CHECK (shares > 0),
			buy_price REAL NOT NULL CHECK (buy_price > 0),
			invested_value REAL NOT NULL,
			position INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE portfolio_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			total_value REAL NOT NULL,
			holdings_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) *HoldingRepository {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewHoldingRepository(setupTestDB(t), log)
}

func mustHolding(t *testing.T, symbol string, shares, buyPrice float64) Holding {
	t.Helper()
	h, err := NewHolding(symbol, shares, buyPrice)
	require.NoError(t, err)
	return h
}

func TestHoldingRepository_AddAndGetAll(t *testing.T) {
	repo := newTestRepo(t)

	first, err := repo.Add(mustHolding(t, "AAPL", 10, 150.0))
	require.NoError(t, err)
	second, err := repo.Add(mustHolding(t, "MSFT", 5, 300.0))
	require.NoError(t, err)

	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)

	holdings, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, "MSFT", holdings[1].Symbol)
	assert.Equal(t, 1500.0, holdings[0].InvestedValue)
}

func TestHoldingRepository_SameSymbolMultipleLots(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Add(mustHolding(t, "AAPL", 10, 150.0))
	require.NoError(t, err)
	_, err = repo.Add(mustHolding(t, "AAPL", 5, 170.0))
	require.NoError(t, err)

	holdings, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, 150.0, holdings[0].BuyPrice)
	assert.Equal(t, 170.0, holdings[1].BuyPrice)

	symbols, err := repo.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)
}

func TestHoldingRepository_RemoveByIndex(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Add(mustHolding(t, "AAPL", 10, 150.0))
	require.NoError(t, err)
	_, err = repo.Add(mustHolding(t, "MSFT", 5, 300.0))
	require.NoError(t, err)
	_, err = repo.Add(mustHolding(t, "GOOG", 2, 2800.0))
	require.NoError(t, err)

	removed, err := repo.RemoveByIndex(1)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, "MSFT", removed.Symbol)

	holdings, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, "GOOG", holdings[1].Symbol)
}

func TestHoldingRepository_RemoveByIndex_OutOfRange(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Add(mustHolding(t, "AAPL", 10, 150.0))
	require.NoError(t, err)

	removed, err := repo.RemoveByIndex(5)
	require.NoError(t, err)
	assert.Nil(t, removed)

	removed, err = repo.RemoveByIndex(-1)
	require.NoError(t, err)
	assert.Nil(t, removed)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHoldingRepository_InsertionOrderSurvivesRemoval(t *testing.T) {
	repo := newTestRepo(t)

	for _, sym := range []string{"A", "B", "C", "D"} {
		_, err := repo.Add(mustHolding(t, sym, 1, 100.0))
		require.NoError(t, err)
	}

	// Removing index 0 shifts everything down by one.
	removed, err := repo.RemoveByIndex(0)
	require.NoError(t, err)
	assert.Equal(t, "A", removed.Symbol)

	removed, err = repo.RemoveByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, "C", removed.Symbol)

	holdings, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "B", holdings[0].Symbol)
	assert.Equal(t, "D", holdings[1].Symbol)
}

func TestHoldingRepository_ReplaceAll(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Add(mustHolding(t, "OLD", 1, 50.0))
	require.NoError(t, err)

	replacement := []Holding{
		mustHolding(t, "AAPL", 10, 150.0),
		mustHolding(t, "MSFT", 5, 300.0),
	}
	require.NoError(t, repo.ReplaceAll(replacement))

	holdings, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, 0, holdings[0].Position)
	assert.Equal(t, "MSFT", holdings[1].Symbol)
	assert.Equal(t, 1, holdings[1].Position)
}

func TestSnapshotRepository_SaveAndHistory(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewSnapshotRepository(setupTestDB(t), log)

	require.NoError(t, repo.Save(10000.0, 3))
	require.NoError(t, repo.Save(10500.0, 3))

	history, err := repo.History(7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 10000.0, history[0].TotalValue)
	assert.Equal(t, 10500.0, history[1].TotalValue)

	latest, err := repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 10500.0, latest.TotalValue)
	assert.Equal(t, 3, latest.HoldingsCount)
}

func TestSnapshotRepository_LatestEmpty(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewSnapshotRepository(setupTestDB(t), log)

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSnapshotRepository_Prune(t *testing.T) {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewSnapshotRepository(db, log)

	// One recent snapshot and one well past the retention window.
	require.NoError(t, repo.Save(10000.0, 2))
	_, err := db.Exec(`INSERT INTO portfolio_snapshots (total_value, holdings_count, created_at)
		VALUES (9000.0, 2, 1)`)
	require.NoError(t, err)

	deleted, err := repo.Prune(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := repo.History(36500)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 10000.0, history[0].TotalValue)
}
