package sales

import (
	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type SaleItemRequest struct {
	SerialNo    string              `json:"serial_no"`
	Quantity    int                 `json:"quantity"`
	GrossWeight ledger.DecimalInput `json:"gross_weight"`
	SriCost     ledger.DecimalInput `json:"sri_cost"`
	SriBill     ledger.DecimalInput `json:"sri_bill"`
	Plus        ledger.DecimalInput `json:"plus"`
}

type CreateSaleRequest struct {
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	Date          string              `json:"date"`
	Amount        ledger.DecimalInput `json:"amount"`
	Notes         string              `json:"notes"`
	Items         []SaleItemRequest   `json:"items"`
}

type SaleItemResponse struct {
	ID          uint   `json:"id"`
	ProductID   uint   `json:"product_id"`
	SerialNo    string `json:"serial_no"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	GrossWeight string `json:"gross_weight"`
	SriCost     string `json:"sri_cost"`
	SriBill     string `json:"sri_bill"`
	Plus        string `json:"plus"`
	CostGrams   string `json:"cost_grams"`
	BillGrams   string `json:"bill_grams"`
	ProfitGrams string `json:"profit_grams"`
}

type SaleResponse struct {
	ID            uint               `json:"id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	Date          string             `json:"date"`
	Time          string             `json:"time"`
	Amount        string             `json:"amount"`
	TotalGrams    string             `json:"total_grams"`
	ProfitGrams   string             `json:"profit_grams"`
	Notes         string             `json:"notes"`
	Items         []SaleItemResponse `json:"items"`
}

func toResponse(s *models.Sale) SaleResponse {
	res := SaleResponse{
		ID:            s.ID,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		Date:          s.Date.Format(httpx.DateLayout),
		Time:          s.Time,
		Amount:        ledger.FormatMoney(s.Amount),
		TotalGrams:    ledger.FormatGrams(s.TotalGrams),
		ProfitGrams:   ledger.FormatGrams(s.ProfitGrams),
		Notes:         s.Notes,
		Items:         make([]SaleItemResponse, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		res.Items = append(res.Items, SaleItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			SerialNo:    it.SerialNo,
			Name:        it.Name,
			Quantity:    it.Quantity,
			GrossWeight: ledger.FormatGrams(it.GrossWeight),
			SriCost:     it.SriCost.String(),
			SriBill:     it.SriBill.String(),
			Plus:        ledger.FormatGrams(it.Plus),
			CostGrams:   ledger.FormatGrams(it.CostGrams),
			BillGrams:   ledger.FormatGrams(it.BillGrams),
			ProfitGrams: ledger.FormatGrams(it.ProfitGrams),
		})
	}
	return res
}

// POST /api/sales
func CreateSaleHandler(l *ledger.Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		now := l.Now()
		in := SaleInput{
			CustomerName:  body.CustomerName,
			CustomerPhone: body.CustomerPhone,
			Date:          ledger.CalendarDate(now, now.Location()),
			Time:          now.Format("15:04:05"),
			Notes:         body.Notes,
		}
		if body.Date != "" {
			if in.Date, err = httpx.ParseDate(body.Date); err != nil {
				return err
			}
		}
		if in.Amount, err = policy.NonNegative("amount", body.Amount); err != nil {
			return httpx.Error(err)
		}
		for _, it := range body.Items {
			item := ItemInput{SerialNo: it.SerialNo, Quantity: it.Quantity}
			for _, f := range []struct {
				name string
				in   ledger.DecimalInput
				out  *decimal.Decimal
			}{
				{"gross_weight", it.GrossWeight, &item.GrossWeight},
				{"sri_cost", it.SriCost, &item.SriCost},
				{"sri_bill", it.SriBill, &item.SriBill},
				{"plus", it.Plus, &item.Plus},
			} {
				if *f.out, err = policy.NonNegative(f.name, f.in); err != nil {
					return httpx.Error(err)
				}
			}
			in.Items = append(in.Items, item)
		}

		sale, err := Create(database.DB.WithContext(c.UserContext()), actor, in)
		if err != nil {
			return httpx.Error(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(sale))
	}
}

// GET /api/sales?from=&to=
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		dbq := database.DB.Preload("Items")
		if from != nil {
			dbq = dbq.Where("date >= ?", *from)
		}
		if to != nil {
			dbq = dbq.Where("date <= ?", *to)
		}
		var list []models.Sale
		if err := dbq.Order("date DESC, id DESC").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list sales")
		}
		res := make([]SaleResponse, 0, len(list))
		for i := range list {
			res = append(res, toResponse(&list[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/sales/:id
func GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		sale, err := Get(database.DB, id)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toResponse(sale))
	}
}

// DELETE /api/admin/sales/:id
func DeleteSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}
		if err := Delete(database.DB, actor, id); err != nil {
			return httpx.Error(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
