package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Adjustment is an admin correction posted as a manual_adjustment record.
type Adjustment struct {
	CounterpartyID  uint
	Delta           decimal.Decimal
	AsOf            time.Time
	Note            string
	ClientReference string
	UserID          uint
}

func (s *Service) ManualAdjustment(ctx context.Context, a Adjustment) (*models.LedgerTransaction, error) {
	if a.Delta.IsZero() {
		return nil, Validationf("adjustment must not be zero")
	}
	var rec *models.LedgerTransaction
	err := s.Run(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Post(Entry{
			CounterpartyID:  a.CounterpartyID,
			Source:          models.SourceManualAdjustment,
			AsOf:            a.AsOf,
			ClientReference: a.ClientReference,
			Note:            a.Note,
			CreatedByID:     a.UserID,
		}, Fixed(a.Delta))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// History returns the counterparty's records in creation order, optionally
// limited to [from, to] by calendar date.
func (s *Service) History(ctx context.Context, counterpartyID uint, from, to *time.Time) ([]models.LedgerTransaction, error) {
	db := s.db.WithContext(ctx)
	if _, err := findCounterparty(db, counterpartyID, ""); err != nil {
		return nil, err
	}

	q := db.Preload("Items").Where("counterparty_id = ?", counterpartyID)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}
	var list []models.LedgerTransaction
	if err := q.Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) Transaction(ctx context.Context, id uint) (*models.LedgerTransaction, error) {
	var rec models.LedgerTransaction
	if err := s.db.WithContext(ctx).Preload("Items").First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteHook runs inside the delete transaction after the balance has been
// reversed, so callers can undo side effects such as inventory.
type DeleteHook func(tx *Tx, rec *models.LedgerTransaction) error

// DeleteTransaction removes the latest record of a counterparty and
// reverses its amount. Records followed by later ones are refused with
// ErrHasDependents. Line-stock records belong to their episode and are
// refused with ErrInvalidState.
func (s *Service) DeleteTransaction(ctx context.Context, id uint, hook DeleteHook) (*models.LedgerTransaction, error) {
	var deleted *models.LedgerTransaction
	err := s.Run(ctx, func(tx *Tx) error {
		var rec models.LedgerTransaction
		if err := tx.db.Preload("Items").First(&rec, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
			}
			return err
		}
		switch rec.Source {
		case models.SourceStockIn, models.SourceManualAdjustment:
		default:
			return fmt.Errorf("%w: %s records are reversed through their line stock", ErrInvalidState, rec.Source)
		}

		cp, err := tx.lockCounterparty(rec.CounterpartyID)
		if err != nil {
			return err
		}

		var later int64
		if err := tx.db.Model(&models.LedgerTransaction{}).
			Where("counterparty_id = ? AND id > ?", rec.CounterpartyID, rec.ID).
			Count(&later).Error; err != nil {
			return err
		}
		if later > 0 {
			slog.Warn("refused to delete ledger record with later dependents",
				"transaction_id", rec.ID, "counterparty_id", rec.CounterpartyID, "later", later)
			return fmt.Errorf("%w: %d later record(s) for this counterparty", ErrHasDependents, later)
		}

		if err := tx.writeBalance(cp, Round3(cp.RunningBalance.Sub(rec.Amount))); err != nil {
			return err
		}
		if err := tx.db.Where("ledger_transaction_id = ?", rec.ID).Delete(&models.LedgerTransactionItem{}).Error; err != nil {
			return err
		}
		if err := tx.db.Delete(&models.LedgerTransaction{}, rec.ID).Error; err != nil {
			return err
		}
		if hook != nil {
			if err := hook(tx, &rec); err != nil {
				return err
			}
		}
		deleted = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ChainReport is the outcome of replaying a counterparty's records.
type ChainReport struct {
	CounterpartyID  uint            `json:"counterparty_id"`
	Records         int             `json:"records"`
	FirstMismatchID *uint           `json:"first_mismatch_id,omitempty"`
	Expected        decimal.Decimal `json:"expected_balance_after"`
	Found           decimal.Decimal `json:"found_balance_after"`
	Replayed        decimal.Decimal `json:"replayed_balance"`
	Stored          decimal.Decimal `json:"stored_balance"`
	BalanceMatches  bool            `json:"balance_matches"`
	OK              bool            `json:"ok"`
}

// VerifyChain replays amounts from zero and checks every balanceAfter and
// the stored running balance.
func (s *Service) VerifyChain(ctx context.Context, counterpartyID uint) (*ChainReport, error) {
	db := s.db.WithContext(ctx)
	cp, err := findCounterparty(db, counterpartyID, "")
	if err != nil {
		return nil, err
	}

	var list []models.LedgerTransaction
	if err := db.Where("counterparty_id = ?", cp.ID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}

	rep := &ChainReport{CounterpartyID: cp.ID, Records: len(list), Stored: cp.RunningBalance}
	running := decimal.Zero
	for _, rec := range list {
		running = Round3(running.Add(rec.Amount))
		if rep.FirstMismatchID == nil && !running.Equal(rec.BalanceAfter) {
			id := rec.ID
			rep.FirstMismatchID = &id
			rep.Expected = running
			rep.Found = rec.BalanceAfter
		}
	}
	rep.Replayed = running
	rep.BalanceMatches = running.Equal(cp.RunningBalance)
	rep.OK = rep.BalanceMatches && rep.FirstMismatchID == nil
	return rep, nil
}

// VerifyAll runs VerifyChain for every counterparty.
func (s *Service) VerifyAll(ctx context.Context) ([]ChainReport, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Counterparty{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	reports := make([]ChainReport, 0, len(ids))
	for _, id := range ids {
		rep, err := s.VerifyChain(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	return reports, nil
}
