package expense

import (
	"time"

	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TypeTotal struct {
	Type  models.ExpenseType `json:"type"`
	Count int                `json:"count"`
	Total string             `json:"total"`
}

type Summary struct {
	From       string      `json:"from"`
	To         string      `json:"to"`
	Count      int         `json:"count"`
	ByType     []TypeTotal `json:"by_type"`
	GrandTotal string      `json:"grand_total"`

	total decimal.Decimal
}

// Total returns the unrounded sum.
func (s *Summary) Total() decimal.Decimal {
	return s.total
}

// Summarize adds up the expenses dated within [from, to]. Amounts are
// summed exactly and rounded to 2 decimals once, so entry order does not
// matter.
func Summarize(db *gorm.DB, from, to time.Time) (*Summary, error) {
	var list []models.Expense
	if err := db.Where("date >= ? AND date <= ?", from, to).Find(&list).Error; err != nil {
		return nil, err
	}

	byType := map[models.ExpenseType]decimal.Decimal{}
	counts := map[models.ExpenseType]int{}
	total := decimal.Zero
	for _, e := range list {
		byType[e.Type] = byType[e.Type].Add(e.Amount)
		counts[e.Type]++
		total = total.Add(e.Amount)
	}

	s := &Summary{
		From:       from.Format("2006-01-02"),
		To:         to.Format("2006-01-02"),
		Count:      len(list),
		GrandTotal: ledger.FormatMoney(total),
		ByType:     []TypeTotal{},
		total:      total,
	}
	for _, t := range []models.ExpenseType{models.ExpenseDaily, models.ExpenseMonthly} {
		if counts[t] == 0 {
			continue
		}
		s.ByType = append(s.ByType, TypeTotal{Type: t, Count: counts[t], Total: ledger.FormatMoney(byType[t])})
	}
	return s, nil
}
