package billing

import (
	"log/slog"

	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/billing/daily?date=2026-05-09
func DailyReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		day, err := httpx.ParseDate(c.Query("date"))
		if err != nil {
			return err
		}
		rep, err := Build(database.DB, day, day)
		if err != nil {
			slog.Error("daily billing report failed", "date", c.Query("date"), "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not build report")
		}
		return c.JSON(rep)
	}
}

// GET /api/billing/monthly?year=2026&month=5
func MonthlyReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		first, last, err := httpx.YearMonth(c)
		if err != nil {
			return err
		}
		rep, err := Build(database.DB, first, last)
		if err != nil {
			slog.Error("monthly billing report failed", "from", first, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not build report")
		}
		return c.JSON(rep)
	}
}
