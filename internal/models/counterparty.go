package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CounterpartyType string

const (
	CounterpartyDealer      CounterpartyType = "Dealer"
	CounterpartyLineStocker CounterpartyType = "Line Stocker"
)

// Counterparty is a dealer or line-stock sales-person carrying a running
// gram balance. Positive balance: the counterparty owes the shop.
// RunningBalance is written only by the ledger accumulator.
type Counterparty struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Type           CounterpartyType `gorm:"size:20;not null;uniqueIndex:idx_counterparty_key" json:"type"`
	Name           string           `gorm:"size:150;not null" json:"name"`
	LookupName     string           `gorm:"size:150;not null;uniqueIndex:idx_counterparty_key" json:"-"`
	Phone          string           `gorm:"size:30;not null;uniqueIndex:idx_counterparty_key" json:"phone"`
	RunningBalance decimal.Decimal  `gorm:"type:decimal(20,3);not null;default:0" json:"running_balance"`
	Version        int64            `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
