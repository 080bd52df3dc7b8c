package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func newClient(t *testing.T) *client {
	t.Helper()
	cfg := testutil.Config(t)
	db := testutil.NewDB(t)
	return &client{t: t, app: New(cfg, db)}
}

func (c *client) login(email, password string) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, status, body)
	c.token = body["token"].(string)
}

func adminClient(t *testing.T) *client {
	c := newClient(t)
	status, body := c.do(http.MethodPost, "/api/auth/register-admin", map[string]string{
		"name": "Owner", "email": "owner@shop.test", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	c.login("owner@shop.test", "password123")
	return c
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)

	status, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := c.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	c := newClient(t)
	status, body := c.do(http.MethodGet, "/api/dealers", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])
}

func TestStockInFlow(t *testing.T) {
	c := adminClient(t)
	ref := uuid.NewString()
	stockIn := map[string]any{
		"dealer_name":          "Ravi",
		"phone":                "9000000001",
		"total_gram_purchase":  "100",
		"sri_bill":             "2",
		"dealer_purchase_cost": "5",
		"reference":            ref,
		"items": []map[string]any{
			{"serial_no": "R-1", "name": "Ring", "gross_weight": "4.5", "quantity": 2},
		},
	}

	status, first := c.do(http.MethodPost, "/api/dealers/stock-in", stockIn)
	require.Equal(t, http.StatusCreated, status, first)
	assert.Equal(t, "2.000", first["user_purchase_cost"])
	assert.Equal(t, "3.000", first["balance_after"])

	// same reference replays the stored record
	status, again := c.do(http.MethodPost, "/api/dealers/stock-in", stockIn)
	require.Equal(t, http.StatusOK, status, again)
	assert.Equal(t, first["transaction_id"], again["transaction_id"])
	assert.Equal(t, true, again["replayed"])

	dealerID := uint(first["dealer_id"].(float64))
	status, dealer := c.do(http.MethodGet, fmt.Sprintf("/api/dealers/%d", dealerID), nil)
	require.Equal(t, http.StatusOK, status, dealer)

	status, _ = c.do(http.MethodPost, "/api/dealers/stock-in", map[string]any{
		"dealer_id": dealerID, "total_gram_purchase": "10", "dealer_purchase_cost": "1",
	})
	require.Equal(t, http.StatusCreated, status)

	// older record has a successor
	status, body := c.do(http.MethodDelete, fmt.Sprintf("/api/admin/dealers/transactions/%d", uint(first["transaction_id"].(float64))), nil)
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = c.do(http.MethodGet, fmt.Sprintf("/api/dealers/%d/verify", dealerID), nil)
	require.Equal(t, http.StatusOK, status, body)
}

func TestErrorMapping(t *testing.T) {
	c := adminClient(t)

	status, body := c.do(http.MethodPost, "/api/dealers/stock-in", map[string]any{
		"dealer_name": "Ravi", "phone": "1", "reference": "not-a-ref",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reference must be a UUID or ULID", body["error"])

	status, _ = c.do(http.MethodGet, "/api/dealers/999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodGet, "/api/billing/daily?date=09-05-2026", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = c.do(http.MethodGet, "/api/billing/daily?date=2026-05-09", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.00", body["net_cash"])
}

func TestStaffCannotReachAdminRoutes(t *testing.T) {
	c := adminClient(t)
	status, body := c.do(http.MethodPost, "/api/admin/users", map[string]string{
		"name": "Clerk", "email": "clerk@shop.test", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "staff", body["role"])

	c.login("clerk@shop.test", "password123")
	status, _ = c.do(http.MethodGet, "/api/admin/ledger/verify", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = c.do(http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, status)
}

// stockRings receives two 4.5 g rings from a dealer and returns the
// dealer transaction.
func stockRings(t *testing.T, c *client) map[string]any {
	t.Helper()
	status, body := c.do(http.MethodPost, "/api/dealers/stock-in", map[string]any{
		"dealer_name":          "Ravi",
		"phone":                "9000000001",
		"total_gram_purchase":  "100",
		"sri_bill":             "2",
		"dealer_purchase_cost": "5",
		"items": []map[string]any{
			{"serial_no": "R-1", "name": "Ring", "gross_weight": "4.5", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body
}

func TestLineStockIssueAndSettle(t *testing.T) {
	c := adminClient(t)
	stockRings(t, c)

	status, ls := c.do(http.MethodPost, "/api/line-stock", map[string]any{
		"person_name":          "Kumar",
		"phone_number":         "9000000002",
		"expected_return_date": "2099-12-31",
		"items":                []map[string]any{{"serial_no": "R-1", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, status, ls)
	assert.Equal(t, "ISSUED", ls["status"])
	assert.Equal(t, "9.000", ls["issued_value"])

	id := uint(ls["id"].(float64))
	stockerID := uint(ls["counterparty_id"].(float64))
	itemID := ls["items"].([]any)[0].(map[string]any)["id"]

	status, stocker := c.do(http.MethodGet, fmt.Sprintf("/api/line-stockers/%d", stockerID), nil)
	require.Equal(t, http.StatusOK, status, stocker)
	assert.Equal(t, "9.000", stocker["running_balance"])

	settlePath := fmt.Sprintf("/api/line-stock/%d/settle", id)

	status, body := c.do(http.MethodPut, settlePath, map[string]any{
		"items": []map[string]any{{"item_id": itemID, "sold_qty": 3}},
	})
	assert.Equal(t, http.StatusBadRequest, status, body)

	// the rejected settle left the episode untouched
	status, body = c.do(http.MethodGet, fmt.Sprintf("/api/line-stock/%d", id), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ISSUED", body["status"])

	status, settled := c.do(http.MethodPut, settlePath, map[string]any{
		"items": []map[string]any{{"item_id": itemID, "sold_qty": 1}},
	})
	require.Equal(t, http.StatusOK, status, settled)
	assert.Equal(t, "SETTLED", settled["status"])
	assert.Equal(t, "4.500", settled["returned_value"])

	status, body = c.do(http.MethodPut, settlePath, map[string]any{
		"items": []map[string]any{{"item_id": itemID, "sold_qty": 1}},
	})
	assert.Equal(t, http.StatusConflict, status, body)

	status, stocker = c.do(http.MethodGet, fmt.Sprintf("/api/line-stockers/%d", stockerID), nil)
	require.Equal(t, http.StatusOK, status, stocker)
	assert.Equal(t, "4.500", stocker["running_balance"])
}

func TestExpenseDailySummary(t *testing.T) {
	c := adminClient(t)

	for _, e := range []map[string]any{
		{"name": "Tea", "type": "Daily", "amount": "12.50", "date": "2026-05-09", "time": "10:00:00"},
		{"name": "Rent", "type": "Monthly", "amount": 1000, "date": "2026-05-09", "time": "11:00:00"},
		{"name": "Tea", "type": "Daily", "amount": "8", "date": "2026-05-10", "time": "10:00:00"},
	} {
		status, body := c.do(http.MethodPost, "/api/expenses", e)
		require.Equal(t, http.StatusCreated, status, body)
	}

	status, body := c.do(http.MethodPost, "/api/expenses", map[string]any{
		"name": "Tea", "type": "Weekly", "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, summary := c.do(http.MethodGet, "/api/expenses/summary/daily?date=2026-05-09", nil)
	require.Equal(t, http.StatusOK, status, summary)
	assert.Equal(t, float64(2), summary["count"])
	assert.Equal(t, "1012.50", summary["grand_total"])
	byType := summary["by_type"].([]any)
	require.Len(t, byType, 2)
	assert.Equal(t, "12.50", byType[0].(map[string]any)["total"])
	assert.Equal(t, "1000.00", byType[1].(map[string]any)["total"])

	status, _ = c.do(http.MethodGet, "/api/expenses/summary/daily?date=2026-13-01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminAdjust(t *testing.T) {
	c := adminClient(t)
	dealerID := uint(stockRings(t, c)["dealer_id"].(float64))
	path := fmt.Sprintf("/api/admin/counterparties/%d/adjust", dealerID)

	status, body := c.do(http.MethodPost, path, map[string]any{"note": "scale correction"})
	assert.Equal(t, http.StatusBadRequest, status, body)
	assert.Equal(t, "delta is required", body["error"])

	status, body = c.do(http.MethodPost, path, map[string]any{"delta": "-1.5"})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, body = c.do(http.MethodPost, path, map[string]any{"delta": "-1.5", "note": "scale correction"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "-1.500", body["amount"])
	assert.Equal(t, "1.500", body["balance_after"])

	status, dealer := c.do(http.MethodGet, fmt.Sprintf("/api/dealers/%d", dealerID), nil)
	require.Equal(t, http.StatusOK, status, dealer)
	assert.Equal(t, "1.500", dealer["running_balance"])

	status, _ = c.do(http.MethodPost, "/api/admin/counterparties/999/adjust", map[string]any{"delta": "1", "note": "x"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteProductInUse(t *testing.T) {
	c := adminClient(t)
	stockRings(t, c)

	status, product := c.do(http.MethodGet, "/api/products/serial/R-1", nil)
	require.Equal(t, http.StatusOK, status, product)

	status, body := c.do(http.MethodDelete, fmt.Sprintf("/api/admin/products/%d", uint(product["id"].(float64))), nil)
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = c.do(http.MethodGet, "/api/products/serial/R-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, fresh := c.do(http.MethodPost, "/api/admin/products", map[string]any{
		"serial_no": "C-1", "name": "Chain", "gross_weight": "10", "stock_qty": 1,
	})
	require.Equal(t, http.StatusCreated, status, fresh)
	status, body = c.do(http.MethodDelete, fmt.Sprintf("/api/admin/products/%d", uint(fresh["id"].(float64))), nil)
	assert.Equal(t, http.StatusNoContent, status, body)
}

func TestErrorHandlerLogsUnexpectedErrorsOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("disk on fire") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fmt.Errorf("%w: sale 9", ledger.ErrNotFound) })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })

	get := func(path string) (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		out := map[string]any{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, body := get("/boom")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "unexpected server error", body["error"])
	assert.Equal(t, 1, strings.Count(buf.String(), "unexpected error"))
	assert.Contains(t, buf.String(), "disk on fire")

	buf.Reset()
	status, _ = get("/missing")
	assert.Equal(t, http.StatusNotFound, status)
	status, body = get("/teapot")
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "short and stout", body["error"])
	assert.Empty(t, buf.String())
}
