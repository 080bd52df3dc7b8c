// Package sales records customer bills and their gram profit.
package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/inventory"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemInput struct {
	SerialNo    string
	Quantity    int
	GrossWeight decimal.Decimal // per unit; zero means the product's weight
	SriCost     decimal.Decimal
	SriBill     decimal.Decimal
	Plus        decimal.Decimal
}

type SaleInput struct {
	CustomerName  string
	CustomerPhone string
	Date          time.Time
	Time          string
	Amount        decimal.Decimal
	Notes         string
	Items         []ItemInput
}

// Line holds the gram figures of one sold line.
type Line struct {
	TotalWeight decimal.Decimal
	CostGrams   decimal.Decimal
	BillGrams   decimal.Decimal
	ProfitGrams decimal.Decimal
}

// ComputeLine prices qty units of weight w:
// cost = PurchaseCost(w*qty, sriCost), bill = PurchaseCost(w*qty, sriBill),
// profit = round3(bill + plus - cost).
func ComputeLine(w decimal.Decimal, qty int, sriCost, sriBill, plus decimal.Decimal) Line {
	total := ledger.ItemValue(w, qty)
	cost := ledger.PurchaseCost(total, sriCost)
	bill := ledger.PurchaseCost(total, sriBill)
	return Line{
		TotalWeight: total,
		CostGrams:   cost,
		BillGrams:   bill,
		ProfitGrams: ledger.Round3(bill.Add(plus).Sub(cost)),
	}
}

func (in *SaleInput) validate() error {
	in.CustomerName = ledger.NormalizeName(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.CustomerName == "" {
		return ledger.Validationf("customer_name is required")
	}
	if len(in.Items) == 0 {
		return ledger.Validationf("at least one item is required")
	}
	if in.Amount.IsNegative() {
		return ledger.Validationf("amount must not be negative")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.SerialNo) == "" {
			return ledger.Validationf("item %d: serial_no is required", i+1)
		}
		if it.Quantity <= 0 {
			return ledger.Validationf("item %d: quantity must be positive", i+1)
		}
		if it.GrossWeight.IsNegative() || it.SriCost.IsNegative() || it.SriBill.IsNegative() || it.Plus.IsNegative() {
			return ledger.Validationf("item %d: figures must not be negative", i+1)
		}
	}
	return nil
}

// Create stores a sale and takes its items out of stock.
func Create(db *gorm.DB, actor audit.Actor, in SaleInput) (*models.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	sale := &models.Sale{
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Date:          in.Date,
		Time:          in.Time,
		Amount:        ledger.Round2(in.Amount),
		TotalGrams:    decimal.Zero,
		ProfitGrams:   decimal.Zero,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedByID:   actor.UserID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, it := range in.Items {
			p, err := inventory.FindBySerial(tx, it.SerialNo)
			if err != nil {
				return err
			}
			if err := inventory.Take(tx, p.ID, it.Quantity); err != nil {
				return err
			}
			w := it.GrossWeight
			if w.IsZero() {
				w = p.GrossWeight
			}
			line := ComputeLine(w, it.Quantity, it.SriCost, it.SriBill, it.Plus)
			sale.Items = append(sale.Items, models.SaleItem{
				ProductID:   p.ID,
				SerialNo:    p.SerialNo,
				Name:        p.Name,
				Quantity:    it.Quantity,
				GrossWeight: line.TotalWeight,
				SriCost:     it.SriCost,
				SriBill:     it.SriBill,
				Plus:        ledger.Round3(it.Plus),
				CostGrams:   line.CostGrams,
				BillGrams:   line.BillGrams,
				ProfitGrams: line.ProfitGrams,
			})
			sale.TotalGrams = sale.TotalGrams.Add(line.TotalWeight)
			sale.ProfitGrams = sale.ProfitGrams.Add(line.ProfitGrams)
		}
		sale.TotalGrams = ledger.Round3(sale.TotalGrams)
		sale.ProfitGrams = ledger.Round3(sale.ProfitGrams)

		if err := tx.Create(sale).Error; err != nil {
			return err
		}
		return actor.Log(tx, audit.EntitySale, sale.ID, models.AuditActionCreate,
			fmt.Sprintf("sale to %s, %s g", sale.CustomerName, ledger.FormatGrams(sale.TotalGrams)), nil, sale)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func Get(db *gorm.DB, id uint) (*models.Sale, error) {
	var sale models.Sale
	if err := db.Preload("Items").First(&sale, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %d", ledger.ErrNotFound, id)
		}
		return nil, err
	}
	return &sale, nil
}

// Delete removes a sale and puts its items back in stock.
func Delete(db *gorm.DB, actor audit.Actor, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		sale, err := Get(tx, id)
		if err != nil {
			return err
		}
		for _, it := range sale.Items {
			if err := inventory.Restock(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Sale{}, sale.ID).Error; err != nil {
			return err
		}
		return actor.Log(tx, audit.EntitySale, sale.ID, models.AuditActionDelete,
			fmt.Sprintf("sale to %s deleted", sale.CustomerName), sale, nil)
	})
}
