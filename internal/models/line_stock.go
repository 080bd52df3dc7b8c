package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineStockStatus string

const (
	LineStockIssued  LineStockStatus = "ISSUED"
	LineStockOverdue LineStockStatus = "OVERDUE"
	LineStockSettled LineStockStatus = "SETTLED"
	LineStockClosed  LineStockStatus = "CLOSED"
)

// LineStock is one consignment episode issued to a sales-person.
type LineStock struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	CounterpartyID     uint            `gorm:"index;not null" json:"counterparty_id"`
	PersonName         string          `gorm:"size:150;not null" json:"person_name"`
	PhoneNumber        string          `gorm:"size:30;not null" json:"phone_number"`
	IssuedDate         time.Time       `gorm:"index;not null" json:"issued_date"`
	ExpectedReturnDate time.Time       `gorm:"index;not null" json:"expected_return_date"`
	Status             LineStockStatus `gorm:"size:10;not null;index" json:"status"`
	SettledAt          *time.Time      `json:"settled_at"`
	Notes              string          `gorm:"size:500" json:"notes"`

	// totals, grams
	IssuedValue   decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"issued_value"`
	ReturnedValue decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"returned_value"`
	ManualValue   decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"manual_value"`

	Items     []LineStockItem `gorm:"foreignKey:LineStockID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type LineStockItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	LineStockID uint            `gorm:"index;not null" json:"line_stock_id"`
	ProductID   *uint           `gorm:"index" json:"product_id"`
	SerialNo    string          `gorm:"size:64" json:"serial_no"`
	Name        string          `gorm:"size:150" json:"name"`
	GrossWeight decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"gross_weight"` // per unit
	IssuedQty   int             `gorm:"not null" json:"issued_qty"`
	SoldQty     int             `gorm:"not null;default:0" json:"sold_qty"`
	ReturnedQty int             `gorm:"not null;default:0" json:"returned_qty"`

	IssuedValue   decimal.Decimal     `gorm:"type:decimal(20,3);not null;default:0" json:"issued_value"`
	ReturnedValue decimal.Decimal     `gorm:"type:decimal(20,3);not null;default:0" json:"returned_value"`
	ManualValue   decimal.NullDecimal `gorm:"type:decimal(20,3)" json:"manual_value"`
	IsManual      bool                `gorm:"not null;default:false" json:"is_manual"`
}
