package expense

import (
	"strings"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateExpenseRequest struct {
	Name   string              `json:"name"`
	Type   models.ExpenseType  `json:"type"`
	Amount ledger.DecimalInput `json:"amount"`
	Date   string              `json:"date"` // "2026-05-09"
	Time   string              `json:"time"` // "14:05:00", default now
	Notes  string              `json:"notes"`
}

type UpdateExpenseRequest struct {
	Name   *string             `json:"name"`
	Type   *models.ExpenseType `json:"type"`
	Amount ledger.DecimalInput `json:"amount"`
	Date   *string             `json:"date"`
	Time   *string             `json:"time"`
	Notes  *string             `json:"notes"`
}

type ExpenseResponse struct {
	ID     uint               `json:"id"`
	Name   string             `json:"name"`
	Type   models.ExpenseType `json:"type"`
	Amount string             `json:"amount"`
	Date   string             `json:"date"`
	Time   string             `json:"time"`
	Notes  string             `json:"notes"`
}

func toResponse(e *models.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:     e.ID,
		Name:   e.Name,
		Type:   e.Type,
		Amount: ledger.FormatMoney(e.Amount),
		Date:   e.Date.Format(httpx.DateLayout),
		Time:   e.Time,
		Notes:  e.Notes,
	}
}

func validType(t models.ExpenseType) bool {
	return t == models.ExpenseDaily || t == models.ExpenseMonthly
}

func validTime(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := httpx.ParseClock(s)
	return err == nil
}

// -------------------------
// CRUD
// -------------------------

// POST /api/expenses
func CreateExpenseHandler(l *ledger.Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if body.Type == "" {
			body.Type = models.ExpenseDaily
		}
		if !validType(body.Type) {
			return fiber.NewError(fiber.StatusBadRequest, "type must be Daily or Monthly")
		}
		amount, err := policy.NonNegative("amount", body.Amount)
		if err != nil {
			return httpx.Error(err)
		}

		now := l.Now()
		e := models.Expense{
			Name:   body.Name,
			Type:   body.Type,
			Amount: ledger.Round2(amount),
			Date:   ledger.CalendarDate(now, now.Location()),
			Time:   now.Format("15:04:05"),
			Notes:  strings.TrimSpace(body.Notes),
		}
		if body.Date != "" {
			if e.Date, err = httpx.ParseDate(body.Date); err != nil {
				return err
			}
		}
		if body.Time != "" {
			if !validTime(body.Time) {
				return fiber.NewError(fiber.StatusBadRequest, "time must be HH:MM:SS")
			}
			e.Time = body.Time
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityExpense, e.ID, models.AuditActionCreate, "expense "+e.Name+" created", nil, e)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create expense")
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(&e))
	}
}

// GET /api/expenses?from=&to=&type=
func ListExpensesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		dbq := database.DB.Model(&models.Expense{})
		if from != nil {
			dbq = dbq.Where("date >= ?", *from)
		}
		if to != nil {
			dbq = dbq.Where("date <= ?", *to)
		}
		if t := models.ExpenseType(c.Query("type")); t != "" {
			if !validType(t) {
				return fiber.NewError(fiber.StatusBadRequest, "type must be Daily or Monthly")
			}
			dbq = dbq.Where("type = ?", t)
		}

		var list []models.Expense
		if err := dbq.Order("date DESC, time DESC, id DESC").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list expenses")
		}
		res := make([]ExpenseResponse, 0, len(list))
		for i := range list {
			res = append(res, toResponse(&list[i]))
		}
		return c.JSON(res)
	}
}

// PUT /api/expenses/:id
func UpdateExpenseHandler(policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}
		var body UpdateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var e models.Expense
		if err := database.DB.First(&e, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "expense not found")
		}
		before := e

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name must not be empty")
			}
			e.Name = name
		}
		if body.Type != nil {
			if !validType(*body.Type) {
				return fiber.NewError(fiber.StatusBadRequest, "type must be Daily or Monthly")
			}
			e.Type = *body.Type
		}
		if body.Amount.Set {
			amount, err := policy.NonNegative("amount", body.Amount)
			if err != nil {
				return httpx.Error(err)
			}
			e.Amount = ledger.Round2(amount)
		}
		if body.Date != nil {
			if e.Date, err = httpx.ParseDate(*body.Date); err != nil {
				return err
			}
		}
		if body.Time != nil {
			if !validTime(*body.Time) {
				return fiber.NewError(fiber.StatusBadRequest, "time must be HH:MM:SS")
			}
			e.Time = *body.Time
		}
		if body.Notes != nil {
			e.Notes = strings.TrimSpace(*body.Notes)
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&e).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityExpense, e.ID, models.AuditActionUpdate, "expense "+e.Name+" updated", before, e)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update expense")
		}
		return c.JSON(toResponse(&e))
	}
}

// DELETE /api/expenses/:id
func DeleteExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		var e models.Expense
		if err := database.DB.First(&e, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "expense not found")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Expense{}, e.ID).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityExpense, e.ID, models.AuditActionDelete, "expense "+e.Name+" deleted", e, nil)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete expense")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Summaries
// -------------------------

// GET /api/expenses/summary/daily?date=2026-05-09
func DailySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		day, err := httpx.ParseDate(c.Query("date"))
		if err != nil {
			return err
		}
		s, err := Summarize(database.DB, day, day)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not summarize expenses")
		}
		return c.JSON(s)
	}
}

// GET /api/expenses/summary/monthly?year=2026&month=5
func MonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		first, last, err := httpx.YearMonth(c)
		if err != nil {
			return err
		}
		s, err := Summarize(database.DB, first, last)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not summarize expenses")
		}
		return c.JSON(s)
	}
}
