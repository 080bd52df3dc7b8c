package dashboard

import (
	"testing"
	"time"

	"jewelshop-backend/internal/models"
	"jewelshop-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBucketStart(t *testing.T) {
	wed := day(2026, 5, 13)
	assert.Equal(t, day(2026, 5, 11), bucketStart(Weekly, wed))
	assert.Equal(t, day(2026, 5, 11), bucketStart(Weekly, day(2026, 5, 11)))
	assert.Equal(t, day(2026, 5, 11), bucketStart(Weekly, day(2026, 5, 17)))
	assert.Equal(t, day(2026, 5, 1), bucketStart(Monthly, wed))
	assert.Equal(t, wed, bucketStart(Daily, wed))
}

func TestBuild_Daily(t *testing.T) {
	db := testutil.NewDB(t)
	today := day(2026, 5, 13)

	require.NoError(t, db.Create(&models.Sale{CustomerName: "A", Date: today, Amount: decimal.RequireFromString("100.50"), ProfitGrams: decimal.RequireFromString("0.250")}).Error)
	require.NoError(t, db.Create(&models.Sale{CustomerName: "B", Date: today.AddDate(0, 0, -2), Amount: decimal.NewFromInt(40), ProfitGrams: decimal.RequireFromString("0.100")}).Error)
	require.NoError(t, db.Create(&models.Sale{CustomerName: "old", Date: today.AddDate(0, 0, -9), Amount: decimal.NewFromInt(999)}).Error)
	require.NoError(t, db.Create(&models.Expense{Name: "tea", Type: models.ExpenseDaily, Date: today, Amount: decimal.RequireFromString("10.25")}).Error)

	chart, err := Build(db, Daily, 7, today)
	require.NoError(t, err)

	require.Len(t, chart.Points, 7)
	assert.Equal(t, "2026-05-07", chart.From)
	assert.Equal(t, "2026-05-13", chart.To)
	assert.Equal(t, ChartPoint{Label: "2026-05-13", Sales: 1, Amount: "100.50", ProfitGrams: "0.250", Expenses: "10.25"}, chart.Points[6])
	assert.Equal(t, 1, chart.Points[4].Sales)
	assert.Equal(t, "140.50", chart.TotalAmount)
	assert.Equal(t, "0.350", chart.TotalProfit)
}

func TestBuild_Monthly(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.Sale{CustomerName: "A", Date: day(2026, 3, 31), Amount: decimal.NewFromInt(5)}).Error)
	require.NoError(t, db.Create(&models.Sale{CustomerName: "B", Date: day(2026, 5, 2), Amount: decimal.NewFromInt(7)}).Error)

	chart, err := Build(db, Monthly, 3, day(2026, 5, 13))
	require.NoError(t, err)

	require.Len(t, chart.Points, 3)
	assert.Equal(t, "2026-03-01", chart.Points[0].Label)
	assert.Equal(t, "5.00", chart.Points[0].Amount)
	assert.Equal(t, "0.00", chart.Points[1].Amount)
	assert.Equal(t, "7.00", chart.Points[2].Amount)
	assert.Equal(t, "2026-05-31", chart.To)
}
