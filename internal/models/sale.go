package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a customer bill. Gram fields are 3dp, Amount is currency (2dp).
type Sale struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CustomerName  string          `gorm:"size:150;not null" json:"customer_name"`
	CustomerPhone string          `gorm:"size:30" json:"customer_phone"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	Time          string          `gorm:"size:8" json:"time"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	TotalGrams    decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"total_grams"`
	ProfitGrams   decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"profit_grams"`
	Notes         string          `gorm:"size:500" json:"notes"`
	CreatedByID   uint            `json:"created_by_id"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type SaleItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SaleID      uint            `gorm:"index;not null" json:"sale_id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	SerialNo    string          `gorm:"size:64" json:"serial_no"`
	Name        string          `gorm:"size:150" json:"name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	GrossWeight decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"gross_weight"` // total for the line
	SriCost     decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"sri_cost"`     // percent
	SriBill     decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"sri_bill"`     // percent
	Plus        decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"plus"`         // grams
	CostGrams   decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"cost_grams"`
	BillGrams   decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"bill_grams"`
	ProfitGrams decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"profit_grams"`
}
