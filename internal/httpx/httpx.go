// Package httpx holds the small request helpers shared by handlers.
package httpx

import (
	"errors"
	"strconv"
	"time"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/auth"
	"jewelshop-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
)

const DateLayout = "2006-01-02"

// CurrentUser reads the caller set by auth.JWTMiddleware.
func CurrentUser(c *fiber.Ctx) (audit.Actor, error) {
	p, err := auth.Current(c)
	if err != nil {
		return audit.Actor{}, err
	}
	return audit.Actor{UserID: p.UserID, UserName: p.Name, Role: p.Role, RequestID: RequestID(c)}, nil
}

func ParseID(c *fiber.Ctx, param string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || n == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return uint(n), nil
}

// ParseDate parses YYYY-MM-DD as a calendar date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return t, nil
}

// DateRange reads optional ?from=&to= query parameters.
func DateRange(c *fiber.Ctx) (from, to *time.Time, err error) {
	if s := c.Query("from"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if s := c.Query("to"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}
	return from, to, nil
}

// YearMonth reads ?year=&month= and returns the first and last day.
func YearMonth(c *fiber.Ctx) (first, last time.Time, err error) {
	year, err1 := strconv.Atoi(c.Query("year"))
	month, err2 := strconv.Atoi(c.Query("month"))
	if err1 != nil || err2 != nil || month < 1 || month > 12 || year < 1 {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "year and month are required")
	}
	first = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last, nil
}

// Error maps ledger errors onto fiber errors; anything else passes through
// unchanged and is logged by the app's error handler.
func Error(err error) error {
	var fe *fiber.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ledger.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, ledger.Message(err))
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ledger.ErrHasDependents), errors.Is(err, ledger.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

// RequestID returns the id set by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

// ParseClock parses HH:MM:SS.
func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "time must be HH:MM:SS")
	}
	return t, nil
}
