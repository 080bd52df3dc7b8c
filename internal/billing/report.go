// Package billing builds the daily and monthly shop reports.
package billing

import (
	"time"

	"jewelshop-backend/internal/expense"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SourceFlow struct {
	Source models.LedgerSource `json:"source"`
	Count  int                 `json:"count"`
	Grams  string              `json:"grams"`
}

type Report struct {
	From string `json:"from"`
	To   string `json:"to"`

	SalesCount  int    `json:"sales_count"`
	SalesAmount string `json:"sales_amount"`
	ProfitGrams string `json:"profit_grams"`
	Expenses    string `json:"expenses"`
	NetCash     string `json:"net_cash"` // sales amount minus expenses

	LedgerFlows []SourceFlow `json:"ledger_flows"`
}

var sourceOrder = []models.LedgerSource{
	models.SourceStockIn,
	models.SourceLineStockIssue,
	models.SourceLineStockManual,
	models.SourceLineStockSettle,
	models.SourceManualAdjustment,
}

// Build reports on the calendar days in [from, to].
func Build(db *gorm.DB, from, to time.Time) (*Report, error) {
	var sales []models.Sale
	if err := db.Select("id", "amount", "profit_grams").
		Where("date >= ? AND date <= ?", from, to).Find(&sales).Error; err != nil {
		return nil, err
	}
	amount, profit := decimal.Zero, decimal.Zero
	for _, s := range sales {
		amount = amount.Add(s.Amount)
		profit = profit.Add(s.ProfitGrams)
	}

	exp, err := expense.Summarize(db, from, to)
	if err != nil {
		return nil, err
	}

	var records []models.LedgerTransaction
	if err := db.Select("id", "source", "amount").
		Where("date >= ? AND date <= ?", from, to).Find(&records).Error; err != nil {
		return nil, err
	}
	grams := map[models.LedgerSource]decimal.Decimal{}
	counts := map[models.LedgerSource]int{}
	for _, r := range records {
		grams[r.Source] = grams[r.Source].Add(r.Amount)
		counts[r.Source]++
	}

	rep := &Report{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		SalesCount:  len(sales),
		SalesAmount: ledger.FormatMoney(amount),
		ProfitGrams: ledger.FormatGrams(profit),
		Expenses:    exp.GrandTotal,
		NetCash:     ledger.FormatMoney(amount.Sub(exp.Total())),
		LedgerFlows: make([]SourceFlow, 0, len(sourceOrder)),
	}
	for _, src := range sourceOrder {
		rep.LedgerFlows = append(rep.LedgerFlows, SourceFlow{
			Source: src,
			Count:  counts[src],
			Grams:  ledger.FormatGrams(grams[src]),
		})
	}
	return rep, nil
}
