package dealer

import (
	"strings"

	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type StockInItemRequest struct {
	SerialNo    string              `json:"serial_no"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Purity      string              `json:"purity"`
	GrossWeight ledger.DecimalInput `json:"gross_weight"`
	Quantity    int                 `json:"quantity"`
}

type StockInRequest struct {
	DealerID           uint                 `json:"dealer_id"`
	DealerName         string               `json:"dealer_name"`
	Phone              string               `json:"phone"`
	TotalGramPurchase  ledger.DecimalInput  `json:"total_gram_purchase"`
	SriBill            ledger.DecimalInput  `json:"sri_bill"`
	DealerPurchaseCost ledger.DecimalInput  `json:"dealer_purchase_cost"`
	Date               string               `json:"date"` // YYYY-MM-DD, default today
	Note               string               `json:"note"`
	Reference          string               `json:"reference"` // UUID or ULID, makes retries safe
	Items              []StockInItemRequest `json:"items"`
}

type StockInResponse struct {
	TransactionID    uint   `json:"transaction_id"`
	Ref              string `json:"ref"`
	DealerID         uint   `json:"dealer_id"`
	DealerName       string `json:"dealer_name"`
	UserPurchaseCost string `json:"user_purchase_cost"`
	PreviousBalance  string `json:"previous_balance"`
	Amount           string `json:"amount"`
	BalanceAfter     string `json:"balance_after"`
	Replayed         bool   `json:"replayed"`
}

func validReference(ref string) bool {
	if _, err := uuid.Parse(ref); err == nil {
		return true
	}
	_, err := ulid.ParseStrict(ref)
	return err == nil
}

// POST /api/dealers/stock-in
func StockInHandler(svc *Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body StockInRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		in := StockInInput{
			DealerID:        body.DealerID,
			DealerName:      body.DealerName,
			Phone:           body.Phone,
			Note:            body.Note,
			ClientReference: strings.TrimSpace(body.Reference),
		}
		if in.ClientReference != "" && !validReference(in.ClientReference) {
			return fiber.NewError(fiber.StatusBadRequest, "reference must be a UUID or ULID")
		}
		if in.TotalGramPurchase, err = policy.NonNegative("total_gram_purchase", body.TotalGramPurchase); err != nil {
			return httpx.Error(err)
		}
		if in.SriBill, err = policy.NonNegative("sri_bill", body.SriBill); err != nil {
			return httpx.Error(err)
		}
		if in.DealerPurchaseCost, err = policy.NonNegative("dealer_purchase_cost", body.DealerPurchaseCost); err != nil {
			return httpx.Error(err)
		}
		if body.Date != "" {
			if in.Date, err = httpx.ParseDate(body.Date); err != nil {
				return err
			}
		}
		for _, it := range body.Items {
			w, err := policy.NonNegative("gross_weight", it.GrossWeight)
			if err != nil {
				return httpx.Error(err)
			}
			in.Items = append(in.Items, StockInItem{
				SerialNo:    it.SerialNo,
				Name:        it.Name,
				Category:    it.Category,
				Purity:      it.Purity,
				GrossWeight: w,
				Quantity:    it.Quantity,
			})
		}

		res, err := svc.StockIn(c.UserContext(), actor, in)
		if err != nil {
			return httpx.Error(err)
		}

		rec := res.Transaction
		status := fiber.StatusCreated
		if rec.Replayed {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(StockInResponse{
			TransactionID:    rec.ID,
			Ref:              rec.Ref,
			DealerID:         res.Counterparty.ID,
			DealerName:       res.Counterparty.Name,
			UserPurchaseCost: ledger.FormatGrams(res.UserPurchaseCost),
			PreviousBalance:  ledger.FormatGrams(rec.BalanceAfter.Sub(rec.Amount)),
			Amount:           ledger.FormatGrams(rec.Amount),
			BalanceAfter:     ledger.FormatGrams(rec.BalanceAfter),
			Replayed:         rec.Replayed,
		})
	}
}

// DELETE /api/admin/dealers/transactions/:id
func DeleteTransactionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}
		rec, err := svc.DeleteTransaction(c.UserContext(), actor, id)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(fiber.Map{
			"deleted":         rec.ID,
			"counterparty_id": rec.CounterpartyID,
			"reversed":        ledger.FormatGrams(rec.Amount.Neg()),
		})
	}
}
