package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jewelshop-backend/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	MaxRetries int
	Backoff    time.Duration
	Now        func() time.Time
	Location   *time.Location
}

// Service owns every write to Counterparty.RunningBalance.
type Service struct {
	db   *gorm.DB
	opts Options

	// called after the counterparty row is read inside Post
	afterRead func(tx *gorm.DB, cp *models.Counterparty) error
}

func NewService(db *gorm.DB, opts Options) *Service {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 10 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{db: db, opts: opts}
}

// Now returns the current time in the shop location.
func (s *Service) Now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *Service) Location() *time.Location {
	return s.opts.Location
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

// Tx is one attempt of a ledger transaction. All reads and writes made by
// the callback must go through DB() so they share the attempt.
type Tx struct {
	svc    *Service
	db     *gorm.DB
	posted []*models.LedgerTransaction
}

func (t *Tx) DB() *gorm.DB {
	return t.db
}

func (t *Tx) Now() time.Time {
	return t.svc.Now()
}

// Run executes fn in a database transaction. Version mismatches and unique
// key races roll back and rerun fn from scratch; once the retry budget is
// spent the caller gets ErrConflict.
func (s *Service) Run(ctx context.Context, fn func(*Tx) error) error {
	start := time.Now()
	defer func() { txDuration.Observe(time.Since(start).Seconds()) }()

	for attempt := 1; ; attempt++ {
		tx := &Tx{svc: s}
		err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			tx.db = gtx
			return fn(tx)
		})
		if err == nil {
			for _, rec := range tx.posted {
				deltasApplied.WithLabelValues(string(rec.Source)).Inc()
			}
			return nil
		}
		if !retryable(err) {
			return err
		}

		lockRetries.Inc()
		if attempt >= s.opts.MaxRetries {
			conflictsExhausted.Inc()
			slog.Warn("ledger transaction gave up", "attempts", attempt, "error", err)
			return fmt.Errorf("%w (after %d attempts)", ErrConflict, attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.opts.Backoff):
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, errVersionMismatch) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// NormalizeName trims and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func lookupKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

// ResolveCounterparty finds the counterparty by type, case-folded name and
// phone, creating it on first use.
func (t *Tx) ResolveCounterparty(typ models.CounterpartyType, name, phone string) (*models.Counterparty, error) {
	display := NormalizeName(name)
	phone = normalizePhone(phone)
	if display == "" {
		return nil, Validationf("name is required")
	}
	if phone == "" {
		return nil, Validationf("phone is required")
	}

	var cp models.Counterparty
	err := t.db.Where("type = ? AND lookup_name = ? AND phone = ?", typ, lookupKey(display), phone).
		First(&cp).Error
	if err == nil {
		if cp.Name != display {
			slog.Warn("counterparty matched with a differently written name",
				"id", cp.ID, "stored", cp.Name, "given", display)
		}
		return &cp, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cp = models.Counterparty{
		Type:           typ,
		Name:           display,
		LookupName:     lookupKey(display),
		Phone:          phone,
		RunningBalance: decimal.Zero,
	}
	if err := t.db.Create(&cp).Error; err != nil {
		return nil, err
	}
	slog.Info("counterparty created", "id", cp.ID, "type", typ, "name", display)
	return &cp, nil
}

// Counterparty loads a counterparty by id, optionally restricted to a type.
func (t *Tx) Counterparty(id uint, typ models.CounterpartyType) (*models.Counterparty, error) {
	return findCounterparty(t.db, id, typ)
}

func findCounterparty(db *gorm.DB, id uint, typ models.CounterpartyType) (*models.Counterparty, error) {
	q := db.Where("id = ?", id)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var cp models.Counterparty
	if err := q.First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: counterparty %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &cp, nil
}

func (t *Tx) lockCounterparty(id uint) (*models.Counterparty, error) {
	q := t.db
	if t.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	cp, err := findCounterparty(q, id, "")
	if err != nil {
		return nil, err
	}
	if hook := t.svc.afterRead; hook != nil {
		if err := hook(t.db, cp); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// writeBalance stores a new balance guarded by the version read earlier.
func (t *Tx) writeBalance(cp *models.Counterparty, balance decimal.Decimal) error {
	res := t.db.Model(&models.Counterparty{}).
		Where("id = ? AND version = ?", cp.ID, cp.Version).
		Updates(map[string]any{
			"running_balance": balance,
			"version":         cp.Version + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionMismatch
	}
	cp.RunningBalance = balance
	cp.Version++
	return nil
}

// DeltaFunc computes the signed change from the locked current balance.
type DeltaFunc func(current decimal.Decimal) (decimal.Decimal, error)

// Fixed is a DeltaFunc that ignores the current balance.
func Fixed(delta decimal.Decimal) DeltaFunc {
	return func(decimal.Decimal) (decimal.Decimal, error) { return delta, nil }
}

// Entry describes the record Post appends.
type Entry struct {
	CounterpartyID  uint
	Source          models.LedgerSource
	AsOf            time.Time
	ClientReference string
	LineStockID     *uint
	Note            string
	CreatedByID     uint
	Items           []models.LedgerTransactionItem
}

// Replay returns the record already posted for this client reference, or
// nil when the reference is new or empty.
func (t *Tx) Replay(counterpartyID uint, clientReference string) (*models.LedgerTransaction, error) {
	if clientReference == "" {
		return nil, nil
	}
	var existing models.LedgerTransaction
	err := t.db.Preload("Items").
		Where("counterparty_id = ? AND client_reference = ?", counterpartyID, clientReference).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	existing.Replayed = true
	return &existing, nil
}

// Post applies a delta to the counterparty balance and appends the matching
// record in the same transaction. A client reference already used for this
// counterparty returns the earlier record with Replayed set.
func (t *Tx) Post(e Entry, compute DeltaFunc) (*models.LedgerTransaction, error) {
	cp, err := t.lockCounterparty(e.CounterpartyID)
	if err != nil {
		return nil, err
	}

	if existing, err := t.Replay(cp.ID, e.ClientReference); err != nil || existing != nil {
		return existing, err
	}

	delta, err := compute(cp.RunningBalance)
	if err != nil {
		return nil, err
	}
	delta = Round3(delta)
	balance := Round3(cp.RunningBalance.Add(delta))

	if err := t.writeBalance(cp, balance); err != nil {
		return nil, err
	}

	asOf := e.AsOf
	if asOf.IsZero() {
		asOf = t.svc.Now()
	}
	rec := &models.LedgerTransaction{
		Ref:            ulid.Make().String(),
		CounterpartyID: cp.ID,
		Type:           cp.Type,
		Source:         e.Source,
		Date:           CalendarDate(asOf, t.svc.opts.Location),
		Time:           asOf.In(t.svc.opts.Location).Format("15:04:05"),
		Amount:         delta,
		BalanceAfter:   balance,
		LineStockID:    e.LineStockID,
		Note:           e.Note,
		CreatedByID:    e.CreatedByID,
		Items:          make([]models.LedgerTransactionItem, len(e.Items)),
	}
	for i, it := range e.Items {
		it.ID, it.LedgerTransactionID = 0, 0
		rec.Items[i] = it
	}
	if e.ClientReference != "" {
		ref := e.ClientReference
		rec.ClientReference = &ref
	}
	if err := t.db.Create(rec).Error; err != nil {
		return nil, err
	}
	t.posted = append(t.posted, rec)
	return rec, nil
}

// ApplyDelta adds delta to the counterparty balance as a manual adjustment
// and returns the new balance.
func (s *Service) ApplyDelta(ctx context.Context, counterpartyID uint, delta decimal.Decimal, asOf time.Time) (decimal.Decimal, error) {
	rec, err := s.ManualAdjustment(ctx, Adjustment{
		CounterpartyID: counterpartyID,
		Delta:          delta,
		AsOf:           asOf,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return rec.BalanceAfter, nil
}

// CurrentBalance returns the stored balance, zero for unknown counterparties.
func (s *Service) CurrentBalance(ctx context.Context, counterpartyID uint) (decimal.Decimal, error) {
	cp, err := findCounterparty(s.db.WithContext(ctx), counterpartyID, "")
	if errors.Is(err, ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return cp.RunningBalance, nil
}

// ResolveCounterparty is the standalone form of Tx.ResolveCounterparty.
func (s *Service) ResolveCounterparty(ctx context.Context, typ models.CounterpartyType, name, phone string) (*models.Counterparty, error) {
	var cp *models.Counterparty
	err := s.Run(ctx, func(tx *Tx) error {
		var err error
		cp, err = tx.ResolveCounterparty(typ, name, phone)
		return err
	})
	return cp, err
}

func (s *Service) Counterparty(ctx context.Context, id uint, typ models.CounterpartyType) (*models.Counterparty, error) {
	return findCounterparty(s.db.WithContext(ctx), id, typ)
}

func (s *Service) ListCounterparties(ctx context.Context, typ models.CounterpartyType, search string) ([]models.Counterparty, error) {
	q := s.db.WithContext(ctx).Where("type = ?", typ)
	if search = strings.TrimSpace(search); search != "" {
		q = q.Where("lookup_name LIKE ? OR phone LIKE ?", "%"+lookupKey(search)+"%", "%"+search+"%")
	}
	var list []models.Counterparty
	if err := q.Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
