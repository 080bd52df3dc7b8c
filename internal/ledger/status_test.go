package ledger

import (
	"testing"
	"time"

	"jewelshop-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		settled bool
		want    models.LineStockStatus
	}{
		{"before due", time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), false, models.LineStockIssued},
		{"late on due day", time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), false, models.LineStockIssued},
		{"day after due", time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC), false, models.LineStockOverdue},
		{"settled wins", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), true, models.LineStockSettled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.now, due, tt.settled))
		})
	}
}

func TestDeriveStatus_UsesLocalCalendarDay(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ist := time.FixedZone("IST", 5*3600+1800)

	// 2026-03-10 20:00 UTC is already 2026-03-11 in IST
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC).In(ist)
	assert.Equal(t, models.LineStockOverdue, DeriveStatus(now, due, false))
}
