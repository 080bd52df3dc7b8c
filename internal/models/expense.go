package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseType string

const (
	ExpenseDaily   ExpenseType = "Daily"
	ExpenseMonthly ExpenseType = "Monthly"
)

type Expense struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:150;not null" json:"name"`
	Type      ExpenseType     `gorm:"size:20;not null;index" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Date      time.Time       `gorm:"index;not null" json:"date"`
	Time      string          `gorm:"size:8" json:"time"` // HH:MM:SS
	Notes     string          `gorm:"size:500" json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
