package ledger

import (
	"context"
	"testing"
	"time"

	"jewelshop-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualAdjustment_RejectsZero(t *testing.T) {
	s := newTestService(t)
	cp := mustResolve(t, s, models.CounterpartyDealer, "Ravi", "1")

	_, err := s.ManualAdjustment(context.Background(), Adjustment{CounterpartyID: cp.ID})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHistory_OrderedAndFiltered(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	cp := mustResolve(t, s, models.CounterpartyDealer, "Ravi", "1")

	day := func(n int) time.Time { return time.Date(2026, 5, n, 9, 0, 0, 0, time.UTC) }
	for i, delta := range []string{"5", "-2", "1.5"} {
		_, err := s.ApplyDelta(ctx, cp.ID, d(delta), day(i+1))
		require.NoError(t, err)
	}

	all, err := s.History(ctx, cp.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "5.000", all[0].BalanceAfter.StringFixed(3))
	assert.Equal(t, "3.000", all[1].BalanceAfter.StringFixed(3))
	assert.Equal(t, "4.500", all[2].BalanceAfter.StringFixed(3))

	from := CalendarDate(day(2), time.UTC)
	to := CalendarDate(day(2), time.UTC)
	some, err := s.History(ctx, cp.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "-2.000", some[0].Amount.StringFixed(3))

	_, err = s.History(ctx, 999, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTransaction_LatestOnly(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	cp := mustResolve(t, s, models.CounterpartyDealer, "Ravi", "1")

	first, err := s.ManualAdjustment(ctx, Adjustment{CounterpartyID: cp.ID, Delta: d("5")})
	require.NoError(t, err)
	second, err := s.ManualAdjustment(ctx, Adjustment{CounterpartyID: cp.ID, Delta: d("3")})
	require.NoError(t, err)

	_, err = s.DeleteTransaction(ctx, first.ID, nil)
	assert.ErrorIs(t, err, ErrHasDependents)

	hooked := false
	deleted, err := s.DeleteTransaction(ctx, second.ID, func(tx *Tx, rec *models.LedgerTransaction) error {
		hooked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hooked)
	assert.Equal(t, second.ID, deleted.ID)

	bal, err := s.CurrentBalance(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.000", bal.StringFixed(3))

	rep, err := s.VerifyChain(ctx, cp.ID)
	require.NoError(t, err)
	assert.True(t, rep.OK)

	_, err = s.DeleteTransaction(ctx, second.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTransaction_RefusesLineStockRecords(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	cp := mustResolve(t, s, models.CounterpartyLineStocker, "Priya", "2")

	var rec *models.LedgerTransaction
	require.NoError(t, s.Run(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Post(Entry{CounterpartyID: cp.ID, Source: models.SourceLineStockIssue}, Fixed(d("20")))
		return err
	}))

	_, err := s.DeleteTransaction(ctx, rec.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	cp := mustResolve(t, s, models.CounterpartyDealer, "Ravi", "1")

	for _, delta := range []string{"5", "3", "2"} {
		_, err := s.ApplyDelta(ctx, cp.ID, d(delta), time.Time{})
		require.NoError(t, err)
	}
	hist, err := s.History(ctx, cp.ID, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.DB().Model(&models.LedgerTransaction{}).
		Where("id = ?", hist[1].ID).Update("balance_after", d("9")).Error)

	rep, err := s.VerifyChain(ctx, cp.ID)
	require.NoError(t, err)
	assert.False(t, rep.OK)
	require.NotNil(t, rep.FirstMismatchID)
	assert.Equal(t, hist[1].ID, *rep.FirstMismatchID)
	assert.Equal(t, "8.000", rep.Expected.StringFixed(3))
	assert.True(t, rep.BalanceMatches)

	reports, err := s.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
