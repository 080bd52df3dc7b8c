// Package counterparty exposes the ledger views shared by dealers and line
// stockers.
package counterparty

import (
	"fmt"
	"strings"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CounterpartyResponse struct {
	ID             uint                    `json:"id"`
	Type           models.CounterpartyType `json:"type"`
	Name           string                  `json:"name"`
	Phone          string                  `json:"phone"`
	RunningBalance string                  `json:"running_balance"`
}

type ItemResponse struct {
	ProductID   *uint  `json:"product_id,omitempty"`
	SerialNo    string `json:"serial_no"`
	Name        string `json:"name"`
	GrossWeight string `json:"gross_weight"`
	Quantity    int    `json:"quantity"`
	Value       string `json:"value"`
}

type TransactionResponse struct {
	ID           uint                `json:"id"`
	Ref          string              `json:"ref"`
	Source       models.LedgerSource `json:"source"`
	Date         string              `json:"date"`
	Time         string              `json:"time"`
	Amount       string              `json:"amount"`
	BalanceAfter string              `json:"balance_after"`
	LineStockID  *uint               `json:"line_stock_id,omitempty"`
	Reference    *string             `json:"reference,omitempty"`
	Note         string              `json:"note"`
	Items        []ItemResponse      `json:"items"`
}

type AdjustRequest struct {
	Delta     ledger.DecimalInput `json:"delta"`
	Date      string              `json:"date"`
	Note      string              `json:"note"`
	Reference string              `json:"reference"`
}

func toCounterpartyResponse(cp *models.Counterparty) CounterpartyResponse {
	return CounterpartyResponse{
		ID:             cp.ID,
		Type:           cp.Type,
		Name:           cp.Name,
		Phone:          cp.Phone,
		RunningBalance: ledger.FormatGrams(cp.RunningBalance),
	}
}

func toTransactionResponse(rec *models.LedgerTransaction) TransactionResponse {
	res := TransactionResponse{
		ID:           rec.ID,
		Ref:          rec.Ref,
		Source:       rec.Source,
		Date:         rec.Date.Format(httpx.DateLayout),
		Time:         rec.Time,
		Amount:       ledger.FormatGrams(rec.Amount),
		BalanceAfter: ledger.FormatGrams(rec.BalanceAfter),
		LineStockID:  rec.LineStockID,
		Reference:    rec.ClientReference,
		Note:         rec.Note,
		Items:        make([]ItemResponse, 0, len(rec.Items)),
	}
	for _, it := range rec.Items {
		res.Items = append(res.Items, ItemResponse{
			ProductID:   it.ProductID,
			SerialNo:    it.SerialNo,
			Name:        it.Name,
			GrossWeight: ledger.FormatGrams(it.GrossWeight),
			Quantity:    it.Quantity,
			Value:       ledger.FormatGrams(it.Value),
		})
	}
	return res
}

// GET /api/dealers?q=  and  GET /api/line-stockers?q=
func ListHandler(l *ledger.Service, typ models.CounterpartyType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := l.ListCounterparties(c.UserContext(), typ, c.Query("q"))
		if err != nil {
			return httpx.Error(err)
		}
		res := make([]CounterpartyResponse, 0, len(list))
		for i := range list {
			res = append(res, toCounterpartyResponse(&list[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/dealers/:id
func GetHandler(l *ledger.Service, typ models.CounterpartyType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		cp, err := l.Counterparty(c.UserContext(), id, typ)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toCounterpartyResponse(cp))
	}
}

// GET /api/dealers/:id/transactions?from=&to=
func HistoryHandler(l *ledger.Service, typ models.CounterpartyType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		cp, err := l.Counterparty(c.UserContext(), id, typ)
		if err != nil {
			return httpx.Error(err)
		}
		list, err := l.History(c.UserContext(), cp.ID, from, to)
		if err != nil {
			return httpx.Error(err)
		}

		res := make([]TransactionResponse, 0, len(list))
		for i := range list {
			res = append(res, toTransactionResponse(&list[i]))
		}
		return c.JSON(fiber.Map{
			"counterparty": toCounterpartyResponse(cp),
			"transactions": res,
		})
	}
}

// GET /api/dealers/:id/verify
func VerifyHandler(l *ledger.Service, typ models.CounterpartyType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		if _, err := l.Counterparty(c.UserContext(), id, typ); err != nil {
			return httpx.Error(err)
		}
		rep, err := l.VerifyChain(c.UserContext(), id)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(rep)
	}
}

// GET /api/admin/ledger/verify
func VerifyAllHandler(l *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reports, err := l.VerifyAll(c.UserContext())
		if err != nil {
			return httpx.Error(err)
		}
		broken := 0
		for _, r := range reports {
			if !r.OK {
				broken++
			}
		}
		return c.JSON(fiber.Map{"checked": len(reports), "broken": broken, "reports": reports})
	}
}

// POST /api/admin/counterparties/:id/adjust
func AdjustHandler(l *ledger.Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		if !body.Delta.Set {
			return fiber.NewError(fiber.StatusBadRequest, "delta is required")
		}
		delta, err := policy.Signed("delta", body.Delta)
		if err != nil {
			return httpx.Error(err)
		}
		note := strings.TrimSpace(body.Note)
		if note == "" {
			return fiber.NewError(fiber.StatusBadRequest, "note is required for adjustments")
		}
		adj := ledger.Adjustment{
			CounterpartyID:  id,
			Delta:           delta,
			Note:            note,
			ClientReference: strings.TrimSpace(body.Reference),
			UserID:          actor.UserID,
		}
		if body.Date != "" {
			d, err := httpx.ParseDate(body.Date)
			if err != nil {
				return err
			}
			now := l.Now()
			adj.AsOf = d.Add(now.Sub(ledger.CalendarDate(now, now.Location())))
		}

		rec, err := l.ManualAdjustment(c.UserContext(), adj)
		if err != nil {
			return httpx.Error(err)
		}
		if !rec.Replayed {
			if err := actor.Log(nil, audit.EntityCounterparty, id, models.AuditActionUpdate,
				fmt.Sprintf("manual adjustment %s g: %s", ledger.FormatGrams(rec.Amount), note), nil, rec); err != nil {
				return httpx.Error(err)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toTransactionResponse(rec))
	}
}
