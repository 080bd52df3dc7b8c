// Package server assembles the HTTP application.
package server

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/auth"
	"jewelshop-backend/internal/billing"
	"jewelshop-backend/internal/config"
	"jewelshop-backend/internal/counterparty"
	"jewelshop-backend/internal/dashboard"
	"jewelshop-backend/internal/dealer"
	"jewelshop-backend/internal/expense"
	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/inventory"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/linestock"
	"jewelshop-backend/internal/models"
	"jewelshop-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// New builds the fiber app with every route mounted.
func New(cfg *config.Config, db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "jewelshop",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	origins := strings.Split(cfg.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	ledgerSvc := ledger.NewService(db, ledger.Options{
		MaxRetries: cfg.LedgerMaxRetries,
		Location:   cfg.Location,
	})
	dealerSvc := dealer.NewService(ledgerSvc)
	lineSvc := linestock.NewService(ledgerSvc)
	policy := ledger.NumberPolicy(cfg.NumberPolicy)

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler())
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        cfg.LoginRateLimit,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many login attempts, try again later")
		},
	}), auth.LoginHandler(cfg))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))
	protected.Get("/auth/me", auth.MeHandler())

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/users", auth.CreateUserHandler())

	adminRoutes.Post("/products", inventory.CreateProductHandler(policy))
	adminRoutes.Put("/products/:id", inventory.UpdateProductHandler(policy))
	adminRoutes.Delete("/products/:id", inventory.DeleteProductHandler())
	adminRoutes.Post("/products/import", inventory.ImportProductsHandler())

	adminRoutes.Post("/counterparties/:id/adjust", counterparty.AdjustHandler(ledgerSvc, policy))
	adminRoutes.Delete("/dealers/transactions/:id", dealer.DeleteTransactionHandler(dealerSvc))
	adminRoutes.Get("/ledger/verify", counterparty.VerifyAllHandler(ledgerSvc))

	adminRoutes.Delete("/sales/:id", sales.DeleteSaleHandler())
	adminRoutes.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	// Inventory
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/serial/:serial", inventory.GetProductBySerialHandler())
	protected.Get("/products/:id", inventory.GetProductHandler())

	// Dealers
	protected.Post("/dealers/stock-in", dealer.StockInHandler(dealerSvc, policy))
	protected.Get("/dealers", counterparty.ListHandler(ledgerSvc, models.CounterpartyDealer))
	protected.Get("/dealers/:id", counterparty.GetHandler(ledgerSvc, models.CounterpartyDealer))
	protected.Get("/dealers/:id/transactions", counterparty.HistoryHandler(ledgerSvc, models.CounterpartyDealer))
	protected.Get("/dealers/:id/verify", counterparty.VerifyHandler(ledgerSvc, models.CounterpartyDealer))

	// Line stock
	protected.Get("/line-stockers", counterparty.ListHandler(ledgerSvc, models.CounterpartyLineStocker))
	protected.Get("/line-stockers/:id", counterparty.GetHandler(ledgerSvc, models.CounterpartyLineStocker))
	protected.Get("/line-stockers/:id/transactions", counterparty.HistoryHandler(ledgerSvc, models.CounterpartyLineStocker))
	protected.Get("/line-stockers/:id/verify", counterparty.VerifyHandler(ledgerSvc, models.CounterpartyLineStocker))

	protected.Post("/line-stock", linestock.IssueHandler(lineSvc))
	protected.Get("/line-stock", linestock.ListHandler(lineSvc))
	protected.Get("/line-stock/:id", linestock.GetHandler(lineSvc))
	protected.Post("/line-stock/:id/items", linestock.AddManualItemHandler(lineSvc, policy))
	protected.Put("/line-stock/:id/settle", linestock.SettleHandler(lineSvc, policy))
	protected.Put("/line-stock/:id/close", linestock.CloseHandler(lineSvc))

	// Sales
	protected.Post("/sales", sales.CreateSaleHandler(ledgerSvc, policy))
	protected.Get("/sales", sales.ListSalesHandler())
	protected.Get("/sales/:id", sales.GetSaleHandler())

	// Expenses
	protected.Post("/expenses", expense.CreateExpenseHandler(ledgerSvc, policy))
	protected.Get("/expenses", expense.ListExpensesHandler())
	protected.Get("/expenses/summary/daily", expense.DailySummaryHandler())
	protected.Get("/expenses/summary/monthly", expense.MonthlySummaryHandler())
	protected.Put("/expenses/:id", expense.UpdateExpenseHandler(policy))
	protected.Delete("/expenses/:id", expense.DeleteExpenseHandler())

	// Billing
	protected.Get("/billing/daily", billing.DailyReportHandler())
	protected.Get("/billing/monthly", billing.MonthlyReportHandler())

	// Dashboard
	protected.Get("/dashboard/sales-chart", dashboard.SalesChartHandler(ledgerSvc))

	// Audit
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	return app
}

// errorHandler answers fiber errors as they are, maps domain errors that
// reached it unwrapped and logs everything else once.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	if errors.As(httpx.Error(err), &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	slog.Error("unexpected error",
		"error", err,
		"method", c.Method(),
		"path", c.Path(),
		"request_id", httpx.RequestID(c),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "unexpected server error",
	})
}
