// Package linestock issues consignment stock to sales-people and settles
// it, posting the gram value of each step to the ledger.
package linestock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/inventory"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var settlements = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "jewelshop",
	Subsystem: "line_stock",
	Name:      "settlements_total",
	Help:      "Line stock episodes settled.",
})

type Service struct {
	ledger *ledger.Service
}

func NewService(l *ledger.Service) *Service {
	return &Service{ledger: l}
}

type IssueItem struct {
	ProductID uint
	SerialNo  string
	Quantity  int
}

type IssueInput struct {
	PersonName         string
	PhoneNumber        string
	IssuedDate         time.Time
	ExpectedReturnDate time.Time
	Notes              string
	Items              []IssueItem
}

type ManualItemInput struct {
	Name        string
	SerialNo    string
	GrossWeight decimal.Decimal
	Quantity    int
	Value       decimal.Decimal
}

type SettleItem struct {
	ItemID      uint
	SoldQty     int
	ManualValue *decimal.Decimal
}

type SettleInput struct {
	Items []SettleItem
}

func (in *IssueInput) validate(today time.Time) error {
	in.PersonName = ledger.NormalizeName(in.PersonName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.PersonName == "" {
		return ledger.Validationf("person_name is required")
	}
	if in.PhoneNumber == "" {
		return ledger.Validationf("phone_number is required")
	}
	if len(in.Items) == 0 {
		return ledger.Validationf("at least one item is required")
	}
	if in.IssuedDate.IsZero() {
		in.IssuedDate = today
	}
	if in.ExpectedReturnDate.IsZero() {
		return ledger.Validationf("expected_return_date is required")
	}
	if in.ExpectedReturnDate.Before(in.IssuedDate) {
		return ledger.Validationf("expected_return_date must not be before issued_date")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 && strings.TrimSpace(it.SerialNo) == "" {
			return ledger.Validationf("item %d: product_id or serial_no is required", i+1)
		}
		if it.Quantity <= 0 {
			return ledger.Validationf("item %d: quantity must be positive", i+1)
		}
	}
	return nil
}

func findProduct(tx *gorm.DB, it IssueItem) (*models.Product, error) {
	if it.ProductID != 0 {
		var p models.Product
		if err := tx.First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: product %d", ledger.ErrNotFound, it.ProductID)
			}
			return nil, err
		}
		return &p, nil
	}
	return inventory.FindBySerial(tx, it.SerialNo)
}

// Issue hands products to a line stocker. Stock leaves inventory and the
// total gram value is added to the line stocker's balance.
func (s *Service) Issue(ctx context.Context, actor audit.Actor, in IssueInput) (*models.LineStock, error) {
	today := ledger.CalendarDate(s.ledger.Now(), s.ledger.Location())
	if err := in.validate(today); err != nil {
		return nil, err
	}

	var ls *models.LineStock
	err := s.ledger.Run(ctx, func(tx *ledger.Tx) error {
		cp, err := tx.ResolveCounterparty(models.CounterpartyLineStocker, in.PersonName, in.PhoneNumber)
		if err != nil {
			return err
		}

		ls = &models.LineStock{
			CounterpartyID:     cp.ID,
			PersonName:         cp.Name,
			PhoneNumber:        cp.Phone,
			IssuedDate:         ledger.CalendarDate(in.IssuedDate, time.UTC),
			ExpectedReturnDate: ledger.CalendarDate(in.ExpectedReturnDate, time.UTC),
			Status:             models.LineStockIssued,
			Notes:              strings.TrimSpace(in.Notes),
			IssuedValue:        decimal.Zero,
			ReturnedValue:      decimal.Zero,
			ManualValue:        decimal.Zero,
		}
		var snapshot []models.LedgerTransactionItem
		for _, it := range in.Items {
			p, err := findProduct(tx.DB(), it)
			if err != nil {
				return err
			}
			if err := inventory.Take(tx.DB(), p.ID, it.Quantity); err != nil {
				return err
			}
			value := ledger.ItemValue(p.GrossWeight, it.Quantity)
			pid := p.ID
			ls.Items = append(ls.Items, models.LineStockItem{
				ProductID:     &pid,
				SerialNo:      p.SerialNo,
				Name:          p.Name,
				GrossWeight:   p.GrossWeight,
				IssuedQty:     it.Quantity,
				IssuedValue:   value,
				ReturnedValue: decimal.Zero,
			})
			snapshot = append(snapshot, models.LedgerTransactionItem{
				ProductID:   &pid,
				SerialNo:    p.SerialNo,
				Name:        p.Name,
				GrossWeight: p.GrossWeight,
				Quantity:    it.Quantity,
				Value:       value,
			})
			ls.IssuedValue = ls.IssuedValue.Add(value)
		}
		ls.IssuedValue = ledger.Round3(ls.IssuedValue)

		if err := tx.DB().Create(ls).Error; err != nil {
			return err
		}
		if _, err := tx.Post(ledger.Entry{
			CounterpartyID: cp.ID,
			Source:         models.SourceLineStockIssue,
			LineStockID:    &ls.ID,
			Note:           fmt.Sprintf("line stock #%d issued", ls.ID),
			CreatedByID:    actor.UserID,
			Items:          snapshot,
		}, ledger.Fixed(ls.IssuedValue)); err != nil {
			return err
		}
		return actor.Log(tx.DB(), audit.EntityLineStock, ls.ID, models.AuditActionCreate,
			fmt.Sprintf("line stock issued to %s", ls.PersonName), nil, ls)
	})
	if err != nil {
		return nil, err
	}
	return s.withStatus(ls), nil
}

func loadEpisode(tx *gorm.DB, id uint) (*models.LineStock, error) {
	var ls models.LineStock
	if err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&ls, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: line stock %d", ledger.ErrNotFound, id)
		}
		return nil, err
	}
	return &ls, nil
}

func isOpen(ls *models.LineStock) bool {
	return ls.Status == models.LineStockIssued || ls.Status == models.LineStockOverdue
}

// AddManualItem attaches an item that is not in inventory to an open
// episode and adds its value to the balance.
func (s *Service) AddManualItem(ctx context.Context, actor audit.Actor, id uint, in ManualItemInput) (*models.LineStock, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ledger.Validationf("name is required")
	}
	if in.Quantity <= 0 {
		return nil, ledger.Validationf("quantity must be positive")
	}
	if in.GrossWeight.IsNegative() || in.Value.IsNegative() {
		return nil, ledger.Validationf("gross_weight and value must not be negative")
	}
	value := ledger.Round3(in.Value)
	if value.IsZero() {
		value = ledger.ItemValue(in.GrossWeight, in.Quantity)
	}

	var ls *models.LineStock
	err := s.ledger.Run(ctx, func(tx *ledger.Tx) error {
		var err error
		if ls, err = loadEpisode(tx.DB(), id); err != nil {
			return err
		}
		if !isOpen(ls) {
			return fmt.Errorf("%w: line stock %d is %s", ledger.ErrInvalidState, id, ls.Status)
		}

		item := models.LineStockItem{
			LineStockID:   ls.ID,
			SerialNo:      strings.TrimSpace(in.SerialNo),
			Name:          in.Name,
			GrossWeight:   ledger.Round3(in.GrossWeight),
			IssuedQty:     in.Quantity,
			IssuedValue:   value,
			ReturnedValue: decimal.Zero,
			ManualValue:   decimal.NewNullDecimal(value),
			IsManual:      true,
		}
		if err := tx.DB().Create(&item).Error; err != nil {
			return err
		}
		ls.Items = append(ls.Items, item)
		ls.ManualValue = ledger.Round3(ls.ManualValue.Add(value))
		if err := tx.DB().Model(&models.LineStock{}).Where("id = ?", ls.ID).
			Update("manual_value", ls.ManualValue).Error; err != nil {
			return err
		}

		if _, err := tx.Post(ledger.Entry{
			CounterpartyID: ls.CounterpartyID,
			Source:         models.SourceLineStockManual,
			LineStockID:    &ls.ID,
			Note:           fmt.Sprintf("manual item on line stock #%d", ls.ID),
			CreatedByID:    actor.UserID,
			Items: []models.LedgerTransactionItem{{
				SerialNo:    item.SerialNo,
				Name:        item.Name,
				GrossWeight: item.GrossWeight,
				Quantity:    item.IssuedQty,
				Value:       value,
			}},
		}, ledger.Fixed(value)); err != nil {
			return err
		}
		return actor.Log(tx.DB(), audit.EntityLineStock, ls.ID, models.AuditActionUpdate,
			fmt.Sprintf("manual item %q added", item.Name), nil, item)
	})
	if err != nil {
		return nil, err
	}
	return s.withStatus(ls), nil
}

// Settle records what was sold. Everything not sold comes back to stock and
// its value is taken off the balance. Items missing from the input count
// as fully returned.
func (s *Service) Settle(ctx context.Context, actor audit.Actor, id uint, in SettleInput) (*models.LineStock, error) {
	byItem := make(map[uint]SettleItem, len(in.Items))
	for _, it := range in.Items {
		if it.SoldQty < 0 {
			return nil, ledger.Validationf("sold_qty must not be negative")
		}
		if it.ManualValue != nil && it.ManualValue.IsNegative() {
			return nil, ledger.Validationf("manual_value must not be negative")
		}
		if _, dup := byItem[it.ItemID]; dup {
			return nil, ledger.Validationf("item %d listed twice", it.ItemID)
		}
		byItem[it.ItemID] = it
	}

	var ls *models.LineStock
	err := s.ledger.Run(ctx, func(tx *ledger.Tx) error {
		var err error
		if ls, err = loadEpisode(tx.DB(), id); err != nil {
			return err
		}
		if !isOpen(ls) {
			return fmt.Errorf("%w: line stock %d is already %s", ledger.ErrInvalidState, id, ls.Status)
		}

		known := make(map[uint]bool, len(ls.Items))
		for _, item := range ls.Items {
			known[item.ID] = true
		}
		for itemID := range byItem {
			if !known[itemID] {
				return ledger.Validationf("item %d does not belong to line stock %d", itemID, id)
			}
		}

		before := *ls
		before.Items = append([]models.LineStockItem(nil), ls.Items...)

		total := decimal.Zero
		var snapshot []models.LedgerTransactionItem
		for i := range ls.Items {
			item := &ls.Items[i]
			sold := 0
			var override *decimal.Decimal
			if si, ok := byItem[item.ID]; ok {
				sold = si.SoldQty
				override = si.ManualValue
			}
			if sold > item.IssuedQty {
				return ledger.Validationf("%s: sold_qty %d exceeds issued %d", item.Name, sold, item.IssuedQty)
			}

			item.SoldQty = sold
			item.ReturnedQty = item.IssuedQty - sold
			if override != nil {
				item.ReturnedValue = ledger.Round3(*override)
				item.ManualValue = decimal.NewNullDecimal(item.ReturnedValue)
			} else {
				item.ReturnedValue = returnedValue(item)
			}
			total = total.Add(item.ReturnedValue)

			if err := tx.DB().Model(&models.LineStockItem{}).Where("id = ?", item.ID).Updates(map[string]any{
				"sold_qty":       item.SoldQty,
				"returned_qty":   item.ReturnedQty,
				"returned_value": item.ReturnedValue,
				"manual_value":   item.ManualValue,
			}).Error; err != nil {
				return err
			}
			if !item.IsManual && item.ProductID != nil {
				if err := inventory.Restock(tx.DB(), *item.ProductID, item.ReturnedQty); err != nil {
					return err
				}
			}
			if item.ReturnedQty > 0 || override != nil {
				snapshot = append(snapshot, models.LedgerTransactionItem{
					ProductID:   item.ProductID,
					SerialNo:    item.SerialNo,
					Name:        item.Name,
					GrossWeight: item.GrossWeight,
					Quantity:    item.ReturnedQty,
					Value:       item.ReturnedValue,
				})
			}
		}
		total = ledger.Round3(total)

		now := s.ledger.Now()
		res := tx.DB().Model(&models.LineStock{}).
			Where("id = ? AND status IN ?", ls.ID, []models.LineStockStatus{models.LineStockIssued, models.LineStockOverdue}).
			Updates(map[string]any{
				"status":         models.LineStockSettled,
				"settled_at":     now,
				"returned_value": total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: line stock %d was settled concurrently", ledger.ErrInvalidState, id)
		}
		ls.Status = models.LineStockSettled
		ls.SettledAt = &now
		ls.ReturnedValue = total

		if _, err := tx.Post(ledger.Entry{
			CounterpartyID: ls.CounterpartyID,
			Source:         models.SourceLineStockSettle,
			LineStockID:    &ls.ID,
			Note:           fmt.Sprintf("line stock #%d settled", ls.ID),
			CreatedByID:    actor.UserID,
			Items:          snapshot,
		}, ledger.Fixed(total.Neg())); err != nil {
			return err
		}
		return actor.Log(tx.DB(), audit.EntityLineStock, ls.ID, models.AuditActionUpdate,
			fmt.Sprintf("line stock settled, %s g returned", ledger.FormatGrams(total)), before, ls)
	})
	if err != nil {
		return nil, err
	}
	settlements.Inc()
	return ls, nil
}

// returnedValue credits returned units at the value they were added with:
// manual items carry their own value, stock items are weight times qty.
func returnedValue(item *models.LineStockItem) decimal.Decimal {
	if item.IsManual && item.ManualValue.Valid && item.IssuedQty > 0 {
		per := item.ManualValue.Decimal.Mul(decimal.NewFromInt(int64(item.ReturnedQty)))
		return ledger.Round3(per.Div(decimal.NewFromInt(int64(item.IssuedQty))))
	}
	return ledger.SettlementValue(item.ReturnedQty, item.GrossWeight)
}

// Close archives a settled episode. The balance is not touched.
func (s *Service) Close(ctx context.Context, actor audit.Actor, id uint) (*models.LineStock, error) {
	var ls *models.LineStock
	err := s.ledger.Run(ctx, func(tx *ledger.Tx) error {
		var err error
		if ls, err = loadEpisode(tx.DB(), id); err != nil {
			return err
		}
		if ls.Status != models.LineStockSettled {
			return fmt.Errorf("%w: only settled line stock can be closed, this one is %s", ledger.ErrInvalidState, s.withStatus(ls).Status)
		}
		if err := tx.DB().Model(&models.LineStock{}).Where("id = ?", ls.ID).
			Update("status", models.LineStockClosed).Error; err != nil {
			return err
		}
		ls.Status = models.LineStockClosed
		return actor.Log(tx.DB(), audit.EntityLineStock, ls.ID, models.AuditActionUpdate, "line stock closed", nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return ls, nil
}

// MarkOverdue stores OVERDUE on open episodes whose return day has passed.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	today := ledger.CalendarDate(now, s.ledger.Location())
	res := s.ledger.DB().WithContext(ctx).Model(&models.LineStock{}).
		Where("status = ? AND expected_return_date < ?", models.LineStockIssued, today).
		Update("status", models.LineStockOverdue)
	return res.RowsAffected, res.Error
}

// withStatus replaces a stored open status with the one derived from today.
func (s *Service) withStatus(ls *models.LineStock) *models.LineStock {
	if isOpen(ls) {
		ls.Status = ledger.DeriveStatus(s.ledger.Now(), ls.ExpectedReturnDate, false)
	}
	return ls
}

func (s *Service) Get(ctx context.Context, id uint) (*models.LineStock, error) {
	ls, err := loadEpisode(s.ledger.DB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return s.withStatus(ls), nil
}

type ListFilter struct {
	Status         models.LineStockStatus
	CounterpartyID uint
	From, To       *time.Time
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.LineStock, error) {
	q := s.ledger.DB().WithContext(ctx).Preload("Items")
	switch f.Status {
	case "":
	case models.LineStockSettled, models.LineStockClosed:
		q = q.Where("status = ?", f.Status)
	case models.LineStockIssued, models.LineStockOverdue:
		q = q.Where("status IN ?", []models.LineStockStatus{models.LineStockIssued, models.LineStockOverdue})
	default:
		return nil, ledger.Validationf("unknown status %q", f.Status)
	}
	if f.CounterpartyID != 0 {
		q = q.Where("counterparty_id = ?", f.CounterpartyID)
	}
	if f.From != nil {
		q = q.Where("issued_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("issued_date <= ?", *f.To)
	}

	var list []models.LineStock
	if err := q.Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	out := list[:0]
	for i := range list {
		ls := s.withStatus(&list[i])
		if f.Status == "" || ls.Status == f.Status {
			out = append(out, *ls)
		}
	}
	return out, nil
}
