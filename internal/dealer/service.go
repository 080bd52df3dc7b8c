// Package dealer records purchases from dealers. Each stock-in moves the
// dealer's gram balance and adds the delivered items to inventory.
package dealer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/inventory"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/shopspring/decimal"
)

type Service struct {
	ledger *ledger.Service
}

func NewService(l *ledger.Service) *Service {
	return &Service{ledger: l}
}

type StockInItem struct {
	SerialNo    string
	Name        string
	Category    string
	Purity      string
	GrossWeight decimal.Decimal // per unit
	Quantity    int
}

type StockInInput struct {
	DealerID           uint
	DealerName         string
	Phone              string
	TotalGramPurchase  decimal.Decimal
	SriBill            decimal.Decimal
	DealerPurchaseCost decimal.Decimal
	Date               time.Time
	Note               string
	ClientReference    string
	Items              []StockInItem
}

type StockInResult struct {
	Transaction      *models.LedgerTransaction
	Counterparty     *models.Counterparty
	UserPurchaseCost decimal.Decimal
	PreviousBalance  decimal.Decimal
}

func (in *StockInInput) validate() error {
	if in.DealerID == 0 && (strings.TrimSpace(in.DealerName) == "" || strings.TrimSpace(in.Phone) == "") {
		return ledger.Validationf("dealer_id or dealer name and phone are required")
	}
	if in.TotalGramPurchase.IsNegative() || in.SriBill.IsNegative() || in.DealerPurchaseCost.IsNegative() {
		return ledger.Validationf("purchase figures must not be negative")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.SerialNo) == "" {
			return ledger.Validationf("item %d: serial_no is required", i+1)
		}
		if it.Quantity <= 0 {
			return ledger.Validationf("item %d: quantity must be positive", i+1)
		}
		if it.GrossWeight.IsNegative() {
			return ledger.Validationf("item %d: gross_weight must not be negative", i+1)
		}
	}
	return nil
}

// StockIn posts a dealer purchase. The new balance is
// GrossBalanceDelta(current, PurchaseCost(total, sriBill), dealerCost),
// evaluated against the locked current balance.
func (s *Service) StockIn(ctx context.Context, actor audit.Actor, in StockInInput) (*StockInResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	userCost := ledger.PurchaseCost(in.TotalGramPurchase, in.SriBill)

	var res *StockInResult
	err := s.ledger.Run(ctx, func(tx *ledger.Tx) error {
		var cp *models.Counterparty
		var err error
		if in.DealerID != 0 {
			cp, err = tx.Counterparty(in.DealerID, models.CounterpartyDealer)
		} else {
			cp, err = tx.ResolveCounterparty(models.CounterpartyDealer, in.DealerName, in.Phone)
		}
		if err != nil {
			return err
		}
		res = &StockInResult{Counterparty: cp, UserPurchaseCost: userCost}

		if rec, err := tx.Replay(cp.ID, in.ClientReference); err != nil || rec != nil {
			res.Transaction = rec
			return err
		}

		var snapshot []models.LedgerTransactionItem
		for _, it := range in.Items {
			p, _, err := inventory.Receive(tx.DB(), inventory.ProductInput{
				SerialNo:    it.SerialNo,
				Name:        it.Name,
				Category:    it.Category,
				Purity:      it.Purity,
				GrossWeight: it.GrossWeight,
				Quantity:    it.Quantity,
			})
			if err != nil {
				return err
			}
			pid := p.ID
			snapshot = append(snapshot, models.LedgerTransactionItem{
				ProductID:   &pid,
				SerialNo:    p.SerialNo,
				Name:        p.Name,
				GrossWeight: p.GrossWeight,
				Quantity:    it.Quantity,
				Value:       ledger.ItemValue(p.GrossWeight, it.Quantity),
			})
		}

		note := strings.TrimSpace(in.Note)
		if note == "" {
			note = fmt.Sprintf("stock-in %s g @ %s%%", ledger.FormatGrams(in.TotalGramPurchase), in.SriBill.String())
		}
		rec, err := tx.Post(ledger.Entry{
			CounterpartyID:  cp.ID,
			Source:          models.SourceStockIn,
			AsOf:            stockInTime(in.Date, tx.Now()),
			ClientReference: in.ClientReference,
			Note:            note,
			CreatedByID:     actor.UserID,
			Items:           snapshot,
		}, func(current decimal.Decimal) (decimal.Decimal, error) {
			res.PreviousBalance = current
			return ledger.GrossBalanceDelta(current, userCost, in.DealerPurchaseCost).Sub(current), nil
		})
		if err != nil {
			return err
		}
		res.Transaction = rec
		cp.RunningBalance = rec.BalanceAfter

		return actor.Log(tx.DB(), audit.EntityLedger, rec.ID, models.AuditActionCreate,
			fmt.Sprintf("stock-in from %s, %s g", cp.Name, ledger.FormatGrams(rec.Amount)), nil, rec)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// stockInTime places a back-dated entry on its calendar day while keeping
// the wall-clock time of entry.
func stockInTime(date, now time.Time) time.Time {
	if date.IsZero() {
		return now
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		now.Hour(), now.Minute(), now.Second(), 0, now.Location())
}

// DeleteTransaction removes the latest ledger record of a counterparty.
// Stock-in items that came into inventory with it are taken out again.
func (s *Service) DeleteTransaction(ctx context.Context, actor audit.Actor, id uint) (*models.LedgerTransaction, error) {
	return s.ledger.DeleteTransaction(ctx, id, func(tx *ledger.Tx, rec *models.LedgerTransaction) error {
		if rec.Source == models.SourceStockIn {
			for _, it := range rec.Items {
				if it.ProductID == nil {
					continue
				}
				if err := inventory.Take(tx.DB(), *it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return actor.Log(tx.DB(), audit.EntityLedger, rec.ID, models.AuditActionDelete,
			fmt.Sprintf("%s record %s deleted, %s g reversed", rec.Source, rec.Ref, ledger.FormatGrams(rec.Amount)), rec, nil)
	})
}
