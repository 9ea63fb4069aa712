package portfolio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportJSON_RoundTrip(t *testing.T) {
	original := []Holding{
		mustHolding(t, "AAPL", 10, 150.0),
		mustHolding(t, "MSFT", 5, 300.0),
	}

	data, err := ExportJSON(original)
	require.NoError(t, err)

	imported, err := ImportJSON(data)
	require.NoError(t, err)
	require.Len(t, imported, 2)

	assert.Equal(t, "AAPL", imported[0].Symbol)
	assert.Equal(t, 10.0, imported[0].Shares)
	assert.Equal(t, 150.0, imported[0].BuyPrice)
	assert.Equal(t, 1500.0, imported[0].InvestedValue)

	// Fresh identity on import.
	assert.NotEqual(t, original[0].ID, imported[0].ID)
}

func TestImportJSON_RejectsBadEntry(t *testing.T) {
	data := []byte(`{"holdings": [
		{"symbol": "AAPL", "shares": 10, "buy_price": 150.0},
		{"symbol": "MSFT", "shares": -5, "buy_price": 300.0}
	]}`)

	_, err := ImportJSON(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holding 1")
}

func TestImportJSON_Malformed(t *testing.T) {
	_, err := ImportJSON([]byte(`{"holdings": [`))
	assert.Error(t, err)
}

func TestExportImportCSV_RoundTrip(t *testing.T) {
	original := []Holding{
		mustHolding(t, "AAPL", 10, 150.0),
		mustHolding(t, "MSFT", 5.5, 300.0),
	}

	data, err := ExportCSV(original)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "symbol,shares,buy_price"))

	imported, err := ImportCSV(data)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, "MSFT", imported[1].Symbol)
	assert.Equal(t, 5.5, imported[1].Shares)
}

func TestImportCSV_RejectsBadRow(t *testing.T) {
	data := []byte("symbol,shares,buy_price\nAAPL,10,150\nMSFT,0,300\n")

	_, err := ImportCSV(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestService_ImportReplacesPortfolio(t *testing.T) {
	svc := newTestService(t, &stubQuotes{})

	_, err := svc.Add("OLD", 1, 10.0)
	require.NoError(t, err)

	count, err := svc.ImportJSON([]byte(`{"holdings": [
		{"symbol": "AAPL", "shares": 10, "buy_price": 150.0},
		{"symbol": "MSFT", "shares": 5, "buy_price": 300.0}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	holdings, err := svc.Holdings()
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, "MSFT", holdings[1].Symbol)
}

func TestService_ImportInvalidLeavesPortfolioUntouched(t *testing.T) {
	svc := newTestService(t, &stubQuotes{})

	_, err := svc.Add("KEEP", 1, 10.0)
	require.NoError(t, err)

	_, err = svc.ImportJSON([]byte(`{"holdings": [{"symbol": "", "shares": 1, "buy_price": 1}]}`))
	require.Error(t, err)

	holdings, err := svc.Holdings()
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "KEEP", holdings[0].Symbol)
}
