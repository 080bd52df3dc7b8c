// Package dashboard serves the bucketed sales chart shown on the front page.
package dashboard

import (
	"strconv"
	"time"

	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

type ChartPoint struct {
	Label       string `json:"label"` // first day of the bucket
	Sales       int    `json:"sales"`
	Amount      string `json:"amount"`
	ProfitGrams string `json:"profit_grams"`
	Expenses    string `json:"expenses"`
}

type Chart struct {
	Period Period       `json:"period"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Points []ChartPoint `json:"points"`

	TotalAmount   string `json:"total_amount"`
	TotalProfit   string `json:"total_profit_grams"`
	TotalExpenses string `json:"total_expenses"`
}

func defaultCount(p Period) int {
	switch p {
	case Weekly:
		return 8
	case Monthly:
		return 12
	}
	return 7
}

// bucketStart returns the first calendar day of the bucket holding day.
// Weeks start on Monday.
func bucketStart(p Period, day time.Time) time.Time {
	switch p {
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

func next(p Period, start time.Time) time.Time {
	switch p {
	case Weekly:
		return start.AddDate(0, 0, 7)
	case Monthly:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

type bucket struct {
	sales    int
	amount   decimal.Decimal
	profit   decimal.Decimal
	expenses decimal.Decimal
}

// Build returns count buckets of the given period ending with the one that
// holds today. today must be a calendar date (UTC midnight).
func Build(db *gorm.DB, p Period, count int, today time.Time) (*Chart, error) {
	last := bucketStart(p, today)
	first := last
	for i := 1; i < count; i++ {
		switch p {
		case Weekly:
			first = first.AddDate(0, 0, -7)
		case Monthly:
			first = first.AddDate(0, -1, 0)
		default:
			first = first.AddDate(0, 0, -1)
		}
	}
	end := next(p, last).AddDate(0, 0, -1)

	var sales []models.Sale
	if err := db.Select("id", "date", "amount", "profit_grams").
		Where("date >= ? AND date <= ?", first, end).Find(&sales).Error; err != nil {
		return nil, err
	}
	var expenses []models.Expense
	if err := db.Select("id", "date", "amount").
		Where("date >= ? AND date <= ?", first, end).Find(&expenses).Error; err != nil {
		return nil, err
	}

	buckets := map[time.Time]*bucket{}
	get := func(d time.Time) *bucket {
		k := bucketStart(p, d.UTC())
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		return b
	}
	for _, s := range sales {
		b := get(s.Date)
		b.sales++
		b.amount = b.amount.Add(s.Amount)
		b.profit = b.profit.Add(s.ProfitGrams)
	}
	for _, e := range expenses {
		b := get(e.Date)
		b.expenses = b.expenses.Add(e.Amount)
	}

	chart := &Chart{
		Period: p,
		From:   first.Format("2006-01-02"),
		To:     end.Format("2006-01-02"),
		Points: make([]ChartPoint, 0, count),
	}
	var total bucket
	for k := first; !k.After(last); k = next(p, k) {
		b := buckets[k]
		if b == nil {
			b = &bucket{}
		}
		total.amount = total.amount.Add(b.amount)
		total.profit = total.profit.Add(b.profit)
		total.expenses = total.expenses.Add(b.expenses)
		chart.Points = append(chart.Points, ChartPoint{
			Label:       k.Format("2006-01-02"),
			Sales:       b.sales,
			Amount:      ledger.FormatMoney(b.amount),
			ProfitGrams: ledger.FormatGrams(b.profit),
			Expenses:    ledger.FormatMoney(b.expenses),
		})
	}
	chart.TotalAmount = ledger.FormatMoney(total.amount)
	chart.TotalProfit = ledger.FormatGrams(total.profit)
	chart.TotalExpenses = ledger.FormatMoney(total.expenses)
	return chart, nil
}

// GET /api/dashboard/sales-chart?period=daily&count=7
func SalesChartHandler(l *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := Period(c.Query("period", string(Daily)))
		if p != Daily && p != Weekly && p != Monthly {
			return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
		}

		count := defaultCount(p)
		if s := c.Query("count"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 366 {
				return fiber.NewError(fiber.StatusBadRequest, "count must be between 1 and 366")
			}
			count = n
		}

		chart, err := Build(database.DB, p, count, ledger.CalendarDate(l.Now(), l.Location()))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not build chart")
		}
		return c.JSON(chart)
	}
}
