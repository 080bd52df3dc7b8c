package inventory

import (
	"errors"
	"fmt"
	"strings"

	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductInput is a product line arriving from a stock-in or an import.
type ProductInput struct {
	SerialNo    string
	Name        string
	Category    string
	Purity      string
	GrossWeight decimal.Decimal
	Quantity    int
}

func (in *ProductInput) normalize() error {
	in.SerialNo = strings.TrimSpace(in.SerialNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Purity = strings.TrimSpace(in.Purity)
	if in.SerialNo == "" {
		return ledger.Validationf("serial_no is required")
	}
	if in.GrossWeight.IsNegative() {
		return ledger.Validationf("gross_weight for %s must not be negative", in.SerialNo)
	}
	if in.Quantity < 0 {
		return ledger.Validationf("quantity for %s must not be negative", in.SerialNo)
	}
	in.GrossWeight = ledger.Round3(in.GrossWeight)
	return nil
}

// FindBySerial loads a product by serial number.
func FindBySerial(db *gorm.DB, serial string) (*models.Product, error) {
	var p models.Product
	if err := db.Where("serial_no = ?", strings.TrimSpace(serial)).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %q", ledger.ErrNotFound, serial)
		}
		return nil, err
	}
	return &p, nil
}

// Receive adds stock for a serial, creating the product when it is new.
// Descriptive fields are refreshed only when given.
func Receive(tx *gorm.DB, in ProductInput) (*models.Product, bool, error) {
	return upsert(tx, in, false)
}

// Set stores the product with its stock set to the given quantity.
func Set(tx *gorm.DB, in ProductInput) (*models.Product, bool, error) {
	return upsert(tx, in, true)
}

func upsert(tx *gorm.DB, in ProductInput, setQty bool) (*models.Product, bool, error) {
	if err := in.normalize(); err != nil {
		return nil, false, err
	}

	p, err := FindBySerial(tx, in.SerialNo)
	if errors.Is(err, ledger.ErrNotFound) {
		if in.Name == "" {
			return nil, false, ledger.Validationf("name is required for new product %s", in.SerialNo)
		}
		p = &models.Product{
			SerialNo:    in.SerialNo,
			Name:        in.Name,
			Category:    in.Category,
			Purity:      in.Purity,
			GrossWeight: in.GrossWeight,
			StockQty:    in.Quantity,
		}
		if err := tx.Create(p).Error; err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Category != "" {
		p.Category = in.Category
	}
	if in.Purity != "" {
		p.Purity = in.Purity
	}
	if in.GrossWeight.IsPositive() {
		p.GrossWeight = in.GrossWeight
	}
	updates := map[string]any{
		"name":         p.Name,
		"category":     p.Category,
		"purity":       p.Purity,
		"gross_weight": p.GrossWeight,
	}
	if setQty {
		updates["stock_qty"] = in.Quantity
	} else {
		updates["stock_qty"] = gorm.Expr("stock_qty + ?", in.Quantity)
	}
	if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	if err := tx.First(p, p.ID).Error; err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// Take removes qty units from stock, failing with a validation error when
// fewer are on hand.
func Take(tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock_qty >= ?", productID, qty).
		Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var p models.Product
		if err := tx.First(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", ledger.ErrNotFound, productID)
			}
			return err
		}
		return ledger.Validationf("insufficient stock for %s: %d on hand, %d requested", p.SerialNo, p.StockQty, qty)
	}
	return nil
}

// Restock puts qty units back.
func Restock(tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return nil
	}
	return tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty)).Error
}

// References counts the rows that point at a product: ledger item
// snapshots, line-stock items and sale items. A referenced product must
// stay, since reversing those records puts stock back on it.
func References(db *gorm.DB, productID uint) (int64, error) {
	var total int64
	for _, model := range []any{&models.LedgerTransactionItem{}, &models.LineStockItem{}, &models.SaleItem{}} {
		var n int64
		if err := db.Model(model).Where("product_id = ?", productID).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
