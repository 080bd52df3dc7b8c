package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerSource string

const (
	SourceStockIn          LedgerSource = "stock_in"
	SourceLineStockIssue   LedgerSource = "line_stock_issue"
	SourceLineStockManual  LedgerSource = "line_stock_manual"
	SourceLineStockSettle  LedgerSource = "line_stock_settle"
	SourceManualAdjustment LedgerSource = "manual_adjustment"
)

// LedgerTransaction is an append-only balance change. For one counterparty,
// ordered by ID: BalanceAfter[n] == BalanceAfter[n-1] + Amount[n].
type LedgerTransaction struct {
	ID              uint                    `gorm:"primaryKey" json:"id"`
	Ref             string                  `gorm:"size:26;uniqueIndex;not null" json:"ref"` // ULID
	CounterpartyID  uint                    `gorm:"not null;index;uniqueIndex:idx_ledger_client_ref" json:"counterparty_id"`
	Type            CounterpartyType        `gorm:"size:20;not null" json:"type"`
	Source          LedgerSource            `gorm:"size:30;not null;index" json:"source"`
	Date            time.Time               `gorm:"index;not null" json:"date"`
	Time            string                  `gorm:"size:8" json:"time"`
	Amount          decimal.Decimal         `gorm:"type:decimal(20,3);not null" json:"amount"`
	BalanceAfter    decimal.Decimal         `gorm:"type:decimal(20,3);not null" json:"balance_after"`
	ClientReference *string                 `gorm:"size:64;uniqueIndex:idx_ledger_client_ref" json:"client_reference,omitempty"`
	LineStockID     *uint                   `gorm:"index" json:"line_stock_id,omitempty"`
	Note            string                  `gorm:"size:500" json:"note"`
	CreatedByID     uint                    `json:"created_by_id"`
	Items           []LedgerTransactionItem `gorm:"foreignKey:LedgerTransactionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time               `json:"created_at"`

	// set when a repeated client reference returned an existing record
	Replayed bool `gorm:"-" json:"replayed,omitempty"`
}

// LedgerTransactionItem is the item snapshot attached to a ledger record.
type LedgerTransactionItem struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	LedgerTransactionID uint            `gorm:"index;not null" json:"-"`
	ProductID           *uint           `json:"product_id,omitempty"`
	SerialNo            string          `gorm:"size:64" json:"serial_no"`
	Name                string          `gorm:"size:150" json:"name"`
	GrossWeight         decimal.Decimal `gorm:"type:decimal(20,3)" json:"gross_weight"`
	Quantity            int             `json:"quantity"`
	Value               decimal.Decimal `gorm:"type:decimal(20,3)" json:"value"`
}
