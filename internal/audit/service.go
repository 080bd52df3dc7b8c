package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/models"

	"gorm.io/gorm"
)

const (
	EntityExpense       = "expense"
	EntityProduct       = "product"
	EntityProductImport = "product_import"
	EntityLedger        = "ledger_transaction"
	EntityLineStock     = "line_stock"
	EntitySale          = "sale"
	EntityUser          = "user"
	EntityCounterparty  = "counterparty"
)

var (
	ErrLogNotFound   = errors.New("audit log not found")
	ErrAlreadyUndone = errors.New("this change was already undone")
	ErrNotUndoable   = errors.New("this change cannot be undone here")
)

type LogOptions struct {
	UserID      uint
	UserName    string
	RequestID   string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// WriteLog stores an audit row. Pass the open transaction as db so the
// row commits with the change it describes; nil means database.DB.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	if db == nil {
		db = database.DB
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		RequestID:   opts.RequestID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func undoable(entityType string) bool {
	return entityType == EntityExpense || entityType == EntityProduct
}

// UndoLog reverts the change recorded by an audit row. Only expenses and
// products can be undone; ledger data is corrected through the ledger.
func UndoLog(logID, userID uint, userName string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		if err := tx.First(&entry, logID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLogNotFound
			}
			return err
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}
		if !undoable(entry.EntityType) {
			return ErrNotUndoable
		}

		var err error
		switch entry.Action {
		case models.AuditActionCreate:
			err = deleteEntity(tx, entry.EntityType, entry.EntityID)
		case models.AuditActionUpdate:
			err = restoreEntity(tx, entry.EntityType, entry.EntityID, entry.BeforeData)
		case models.AuditActionDelete:
			err = recreateEntity(tx, entry.EntityType, entry.BeforeData)
		default:
			return ErrNotUndoable
		}
		if err != nil {
			return err
		}

		now := time.Now()
		entry.IsUndone = true
		entry.UndoneBy = &userID
		entry.UndoneAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return err
		}

		return tx.Create(&models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: "undo: " + entry.Description,
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}).Error
	})
}

func deleteEntity(tx *gorm.DB, entityType string, id uint) error {
	switch entityType {
	case EntityExpense:
		return tx.Delete(&models.Expense{}, id).Error
	case EntityProduct:
		for _, model := range []any{&models.LedgerTransactionItem{}, &models.LineStockItem{}, &models.SaleItem{}} {
			var used int64
			if err := tx.Model(model).Where("product_id = ?", id).Count(&used).Error; err != nil {
				return err
			}
			if used > 0 {
				return fmt.Errorf("%w: product %d is referenced by stock records", ErrNotUndoable, id)
			}
		}
		return tx.Delete(&models.Product{}, id).Error
	}
	return ErrNotUndoable
}

func recreateEntity(tx *gorm.DB, entityType, data string) error {
	switch entityType {
	case EntityExpense:
		var e models.Expense
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		return tx.Create(&e).Error
	case EntityProduct:
		var p models.Product
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return err
		}
		return tx.Create(&p).Error
	}
	return ErrNotUndoable
}

func restoreEntity(tx *gorm.DB, entityType string, id uint, data string) error {
	switch entityType {
	case EntityExpense:
		var e models.Expense
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		return tx.Model(&models.Expense{}).Where("id = ?", id).Updates(map[string]any{
			"name":   e.Name,
			"type":   e.Type,
			"amount": e.Amount,
			"date":   e.Date,
			"time":   e.Time,
			"notes":  e.Notes,
		}).Error
	case EntityProduct:
		var p models.Product
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return err
		}
		return tx.Model(&models.Product{}).Where("id = ?", id).Updates(map[string]any{
			"serial_no":    p.SerialNo,
			"name":         p.Name,
			"category":     p.Category,
			"purity":       p.Purity,
			"gross_weight": p.GrossWeight,
			"stock_qty":    p.StockQty,
		}).Error
	}
	return ErrNotUndoable
}

// Actor identifies who made a change.
type Actor struct {
	UserID    uint
	UserName  string
	Role      models.UserRole
	RequestID string
}

// Log writes an audit row attributed to the actor.
func (a Actor) Log(db *gorm.DB, entityType string, entityID uint, action models.AuditAction, description string, before, after any) error {
	return WriteLog(db, LogOptions{
		UserID:      a.UserID,
		UserName:    a.UserName,
		RequestID:   a.RequestID,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	})
}
