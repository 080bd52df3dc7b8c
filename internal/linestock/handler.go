package linestock

import (
	"time"

	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type IssueItemRequest struct {
	ProductID uint   `json:"product_id"`
	SerialNo  string `json:"serial_no"`
	Quantity  int    `json:"quantity"`
}

type IssueRequest struct {
	PersonName         string             `json:"person_name"`
	PhoneNumber        string             `json:"phone_number"`
	IssuedDate         string             `json:"issued_date"` // YYYY-MM-DD, default today
	ExpectedReturnDate string             `json:"expected_return_date"`
	Notes              string             `json:"notes"`
	Items              []IssueItemRequest `json:"items"`
}

type ManualItemRequest struct {
	Name        string              `json:"name"`
	SerialNo    string              `json:"serial_no"`
	GrossWeight ledger.DecimalInput `json:"gross_weight"`
	Quantity    int                 `json:"quantity"`
	Value       ledger.DecimalInput `json:"value"`
}

type SettleItemRequest struct {
	ItemID      uint                `json:"item_id"`
	SoldQty     int                 `json:"sold_qty"`
	ManualValue ledger.DecimalInput `json:"manual_value"`
}

type SettleRequest struct {
	Items []SettleItemRequest `json:"items"`
}

type ItemResponse struct {
	ID            uint    `json:"id"`
	ProductID     *uint   `json:"product_id"`
	SerialNo      string  `json:"serial_no"`
	Name          string  `json:"name"`
	GrossWeight   string  `json:"gross_weight"`
	IssuedQty     int     `json:"issued_qty"`
	SoldQty       int     `json:"sold_qty"`
	ReturnedQty   int     `json:"returned_qty"`
	IssuedValue   string  `json:"issued_value"`
	ReturnedValue string  `json:"returned_value"`
	ManualValue   *string `json:"manual_value"`
	IsManual      bool    `json:"is_manual"`
}

type LineStockResponse struct {
	ID                 uint                   `json:"id"`
	CounterpartyID     uint                   `json:"counterparty_id"`
	PersonName         string                 `json:"person_name"`
	PhoneNumber        string                 `json:"phone_number"`
	IssuedDate         string                 `json:"issued_date"`
	ExpectedReturnDate string                 `json:"expected_return_date"`
	Status             models.LineStockStatus `json:"status"`
	SettledAt          *time.Time             `json:"settled_at"`
	Notes              string                 `json:"notes"`
	IssuedValue        string                 `json:"issued_value"`
	ReturnedValue      string                 `json:"returned_value"`
	ManualValue        string                 `json:"manual_value"`
	Items              []ItemResponse         `json:"items"`
}

func toResponse(ls *models.LineStock) LineStockResponse {
	res := LineStockResponse{
		ID:                 ls.ID,
		CounterpartyID:     ls.CounterpartyID,
		PersonName:         ls.PersonName,
		PhoneNumber:        ls.PhoneNumber,
		IssuedDate:         ls.IssuedDate.Format(httpx.DateLayout),
		ExpectedReturnDate: ls.ExpectedReturnDate.Format(httpx.DateLayout),
		Status:             ls.Status,
		SettledAt:          ls.SettledAt,
		Notes:              ls.Notes,
		IssuedValue:        ledger.FormatGrams(ls.IssuedValue),
		ReturnedValue:      ledger.FormatGrams(ls.ReturnedValue),
		ManualValue:        ledger.FormatGrams(ls.ManualValue),
		Items:              make([]ItemResponse, 0, len(ls.Items)),
	}
	for _, it := range ls.Items {
		var manual *string
		if it.ManualValue.Valid {
			v := ledger.FormatGrams(it.ManualValue.Decimal)
			manual = &v
		}
		res.Items = append(res.Items, ItemResponse{
			ID:            it.ID,
			ProductID:     it.ProductID,
			SerialNo:      it.SerialNo,
			Name:          it.Name,
			GrossWeight:   ledger.FormatGrams(it.GrossWeight),
			IssuedQty:     it.IssuedQty,
			SoldQty:       it.SoldQty,
			ReturnedQty:   it.ReturnedQty,
			IssuedValue:   ledger.FormatGrams(it.IssuedValue),
			ReturnedValue: ledger.FormatGrams(it.ReturnedValue),
			ManualValue:   manual,
			IsManual:      it.IsManual,
		})
	}
	return res
}

// POST /api/line-stock
func IssueHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body IssueRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		in := IssueInput{
			PersonName:  body.PersonName,
			PhoneNumber: body.PhoneNumber,
			Notes:       body.Notes,
		}
		if body.IssuedDate != "" {
			if in.IssuedDate, err = httpx.ParseDate(body.IssuedDate); err != nil {
				return err
			}
		}
		if body.ExpectedReturnDate != "" {
			if in.ExpectedReturnDate, err = httpx.ParseDate(body.ExpectedReturnDate); err != nil {
				return err
			}
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, IssueItem{ProductID: it.ProductID, SerialNo: it.SerialNo, Quantity: it.Quantity})
		}

		ls, err := svc.Issue(c.UserContext(), actor, in)
		if err != nil {
			return httpx.Error(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(ls))
	}
}

// POST /api/line-stock/:id/items
func AddManualItemHandler(svc *Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body ManualItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		weight, err := policy.NonNegative("gross_weight", body.GrossWeight)
		if err != nil {
			return httpx.Error(err)
		}
		value, err := policy.NonNegative("value", body.Value)
		if err != nil {
			return httpx.Error(err)
		}

		ls, err := svc.AddManualItem(c.UserContext(), actor, id, ManualItemInput{
			Name:        body.Name,
			SerialNo:    body.SerialNo,
			GrossWeight: weight,
			Quantity:    body.Quantity,
			Value:       value,
		})
		if err != nil {
			return httpx.Error(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(ls))
	}
}

// PUT /api/line-stock/:id/settle
func SettleHandler(svc *Service, policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body SettleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		var in SettleInput
		for _, it := range body.Items {
			item := SettleItem{ItemID: it.ItemID, SoldQty: it.SoldQty}
			if it.ManualValue.Set {
				v, err := policy.NonNegative("manual_value", it.ManualValue)
				if err != nil {
					return httpx.Error(err)
				}
				item.ManualValue = &v
			}
			in.Items = append(in.Items, item)
		}

		ls, err := svc.Settle(c.UserContext(), actor, id, in)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toResponse(ls))
	}
}

// PUT /api/line-stock/:id/close
func CloseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}
		ls, err := svc.Close(c.UserContext(), actor, id)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toResponse(ls))
	}
}

// GET /api/line-stock/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		ls, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toResponse(ls))
	}
}

// GET /api/line-stock?status=&counterparty_id=&from=&to=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		list, err := svc.List(c.UserContext(), ListFilter{
			Status:         models.LineStockStatus(c.Query("status")),
			CounterpartyID: uint(c.QueryInt("counterparty_id", 0)),
			From:           from,
			To:             to,
		})
		if err != nil {
			return httpx.Error(err)
		}

		res := make([]LineStockResponse, 0, len(list))
		for i := range list {
			res = append(res, toResponse(&list[i]))
		}
		return c.JSON(res)
	}
}

