package inventory

import (
	"errors"
	"log/slog"
	"strings"

	"jewelshop-backend/internal/audit"
	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/httpx"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProductResponse struct {
	ID          uint   `json:"id"`
	SerialNo    string `json:"serial_no"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Purity      string `json:"purity"`
	GrossWeight string `json:"gross_weight"`
	StockQty    int    `json:"stock_qty"`
}

type CreateProductRequest struct {
	SerialNo    string              `json:"serial_no"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Purity      string              `json:"purity"`
	GrossWeight ledger.DecimalInput `json:"gross_weight"`
	StockQty    int                 `json:"stock_qty"`
}

type UpdateProductRequest struct {
	Name        *string             `json:"name"`
	Category    *string             `json:"category"`
	Purity      *string             `json:"purity"`
	GrossWeight ledger.DecimalInput `json:"gross_weight"`
	StockQty    *int                `json:"stock_qty"`
}

func toProductResponse(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		SerialNo:    p.SerialNo,
		Name:        p.Name,
		Category:    p.Category,
		Purity:      p.Purity,
		GrossWeight: ledger.FormatGrams(p.GrossWeight),
		StockQty:    p.StockQty,
	}
}

// GET /api/products?q=&category=&in_stock=true
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(serial_no) LIKE ?", like, like)
		}
		if cat := strings.TrimSpace(c.Query("category")); cat != "" {
			dbq = dbq.Where("category = ?", cat)
		}
		if c.Query("in_stock") == "true" {
			dbq = dbq.Where("stock_qty > 0")
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}

		res := make([]ProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toProductResponse(&products[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return c.JSON(toProductResponse(&p))
	}
}

// GET /api/products/serial/:serial
func GetProductBySerialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := FindBySerial(database.DB, c.Params("serial"))
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(toProductResponse(p))
	}
}

// POST /api/admin/products
func CreateProductHandler(policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
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
		in := ProductInput{
			SerialNo:    body.SerialNo,
			Name:        body.Name,
			Category:    body.Category,
			Purity:      body.Purity,
			GrossWeight: weight,
			Quantity:    body.StockQty,
		}
		if err := in.normalize(); err != nil {
			return httpx.Error(err)
		}
		if in.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		p := models.Product{
			SerialNo:    in.SerialNo,
			Name:        in.Name,
			Category:    in.Category,
			Purity:      in.Purity,
			GrossWeight: in.GrossWeight,
			StockQty:    in.Quantity,
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityProduct, p.ID, models.AuditActionCreate, "product "+p.SerialNo+" created", nil, p)
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "serial number already exists")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create product")
		}

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(&p))
	}
}

// PUT /api/admin/products/:id
func UpdateProductHandler(policy ledger.NumberPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		before := p

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name must not be empty")
			}
			p.Name = name
		}
		if body.Category != nil {
			p.Category = strings.TrimSpace(*body.Category)
		}
		if body.Purity != nil {
			p.Purity = strings.TrimSpace(*body.Purity)
		}
		if body.GrossWeight.Set {
			w, err := policy.NonNegative("gross_weight", body.GrossWeight)
			if err != nil {
				return httpx.Error(err)
			}
			p.GrossWeight = ledger.Round3(w)
		}
		if body.StockQty != nil {
			if *body.StockQty < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "stock_qty must not be negative")
			}
			p.StockQty = *body.StockQty
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityProduct, p.ID, models.AuditActionUpdate, "product "+p.SerialNo+" updated", before, p)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update product")
		}

		return c.JSON(toProductResponse(&p))
	}
}

// DELETE /api/admin/products/:id
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			refs, err := References(tx, id)
			if err != nil {
				return err
			}
			if refs > 0 {
				return fiber.NewError(fiber.StatusConflict, "product is used by ledger records, line stock or sales")
			}
			if err := tx.Delete(&models.Product{}, id).Error; err != nil {
				return err
			}
			return actor.Log(tx, audit.EntityProduct, p.ID, models.AuditActionDelete, "product "+p.SerialNo+" deleted", p, nil)
		})
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		if err != nil {
			slog.Error("product delete failed", "product_id", id, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete product")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/admin/products/import (multipart field "file")
func ImportProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := httpx.CurrentUser(c)
		if err != nil {
			return err
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		file, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not open upload")
		}
		defer file.Close()

		rows, rowErrs, err := ParseWorkbook(file)
		if err != nil {
			return httpx.Error(err)
		}
		res, err := Import(database.DB, rows, rowErrs)
		if err != nil {
			return httpx.Error(err)
		}

		if err := actor.Log(nil, audit.EntityProductImport, 0, models.AuditActionCreate, "product import "+fh.Filename, nil, res); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not write audit log")
		}

		return c.JSON(res)
	}
}
