package billing

import (
	"testing"
	"time"

	"jewelshop-backend/internal/models"
	"jewelshop-backend/internal/testutil"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, db *gorm.DB, day time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.Sale{CustomerName: "A", Date: day, Amount: dec("1500.25"), TotalGrams: dec("10"), ProfitGrams: dec("0.450")}).Error)
	require.NoError(t, db.Create(&models.Sale{CustomerName: "B", Date: day, Amount: dec("499.75"), TotalGrams: dec("4"), ProfitGrams: dec("0.125")}).Error)
	require.NoError(t, db.Create(&models.Expense{Name: "tea", Type: models.ExpenseDaily, Amount: dec("200.10"), Date: day}).Error)

	cp := models.Counterparty{Type: models.CounterpartyDealer, Name: "Ravi", LookupName: "ravi"}
	require.NoError(t, db.Create(&cp).Error)
	for _, r := range []struct {
		src    models.LedgerSource
		amount string
	}{
		{models.SourceStockIn, "12.500"},
		{models.SourceStockIn, "-2.250"},
		{models.SourceManualAdjustment, "1.000"},
	} {
		require.NoError(t, db.Create(&models.LedgerTransaction{
			Ref: ulid.Make().String(), CounterpartyID: cp.ID, Type: cp.Type,
			Source: r.src, Date: day, Amount: dec(r.amount), BalanceAfter: decimal.Zero,
		}).Error)
	}
}

func TestBuild_Daily(t *testing.T) {
	db := testutil.NewDB(t)
	day := time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)
	seed(t, db, day)
	seed(t, db, day.AddDate(0, 0, 1))

	rep, err := Build(db, day, day)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.SalesCount)
	assert.Equal(t, "2000.00", rep.SalesAmount)
	assert.Equal(t, "0.575", rep.ProfitGrams)
	assert.Equal(t, "200.10", rep.Expenses)
	assert.Equal(t, "1799.90", rep.NetCash)

	require.Len(t, rep.LedgerFlows, 5)
	assert.Equal(t, SourceFlow{Source: models.SourceStockIn, Count: 2, Grams: "10.250"}, rep.LedgerFlows[0])
	assert.Equal(t, SourceFlow{Source: models.SourceLineStockIssue, Count: 0, Grams: "0.000"}, rep.LedgerFlows[1])
	assert.Equal(t, SourceFlow{Source: models.SourceManualAdjustment, Count: 1, Grams: "1.000"}, rep.LedgerFlows[4])
}

func TestBuild_EmptyMonth(t *testing.T) {
	db := testutil.NewDB(t)
	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rep, err := Build(db, first, first.AddDate(0, 1, -1))
	require.NoError(t, err)
	assert.Zero(t, rep.SalesCount)
	assert.Equal(t, "0.00", rep.NetCash)
	assert.Equal(t, "2026-02-28", rep.To)
}
