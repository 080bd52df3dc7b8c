package ledger

import (
	"time"

	"jewelshop-backend/internal/models"
)

// CalendarDate returns the calendar day of t as seen in loc, as a UTC
// midnight. All stored dates use this form.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DeriveStatus computes the line-stock status from dates alone. An
// episode becomes overdue once the expected return day has fully passed
// in now's location.
func DeriveStatus(now, expectedReturnDate time.Time, isSettled bool) models.LineStockStatus {
	if isSettled {
		return models.LineStockSettled
	}
	today := CalendarDate(now, now.Location())
	due := CalendarDate(expectedReturnDate, time.UTC)
	if today.After(due) {
		return models.LineStockOverdue
	}
	return models.LineStockIssued
}
