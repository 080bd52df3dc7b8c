package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stocked jewelry design, identified by its serial number.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SerialNo    string          `gorm:"size:64;uniqueIndex;not null" json:"serial_no"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Category    string          `gorm:"size:80" json:"category"`
	Purity      string          `gorm:"size:20" json:"purity"`                           // 22K, 916, ...
	GrossWeight decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"gross_weight"` // grams per unit
	StockQty    int             `gorm:"not null;default:0" json:"stock_qty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
