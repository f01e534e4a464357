package router

import (
	"net/http"
	"strings"

	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func getSettings(settings *service.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := settings.Get(c.Request.Context())
		if err != nil {
			handleError(c, err)
			return
		}
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		ok(c, http.StatusOK, s)
	}
}

func updateSettings(settings *service.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Settings map[string]string `json:"settings" binding:"required,min=1"`
		}
		if !bindJSON(c, &req) {
			return
		}
		s, err := settings.Update(c.Request.Context(), actor(c), req.Settings)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, s)
	}
}

// optionalAmount parses a query amount; empty means unset.
func optionalAmount(c *gin.Context, name string) (decimal.NullDecimal, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return decimal.NullDecimal{}, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(d), true
}

func listProducts(catalog *service.CatalogService, kind model.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			pageQuery
			Query    string `form:"q"`
			Category string `form:"category"`
			Brand    string `form:"brand"`
			InStock  bool   `form:"in_stock"`
			Sort     string `form:"sort" binding:"omitempty,oneof=newest price_asc price_desc name"`
		}
		if !bindQuery(c, &req) {
			return
		}
		minPrice, good := optionalAmount(c, "min_price")
		if !good {
			return
		}
		maxPrice, good := optionalAmount(c, "max_price")
		if !good {
			return
		}
		page, err := catalog.List(c.Request.Context(), kind, service.ProductFilter{
			Query:    req.Query,
			Category: req.Category,
			Brand:    req.Brand,
			MinPrice: minPrice,
			MaxPrice: maxPrice,
			InStock:  req.InStock,
			Sort:     req.Sort,
			Page:     req.page(),
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, page)
	}
}

func getProduct(catalog *service.CatalogService, kind model.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := catalog.GetBySlug(c.Request.Context(), kind, c.Param("slug"))
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, p)
	}
}

func listCategories(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := catalog.Categories(c.Request.Context(), c.Query("family"))
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, list)
	}
}

func familyParam(c *gin.Context) (model.ProductKind, bool) {
	kind, known := model.ParseProductKind(c.Param("family"))
	if !known {
		fail(c, http.StatusBadRequest, "family must be generators or parts")
		return "", false
	}
	return kind, true
}

func createCategory(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Family string `json:"family" binding:"required"`
			Name   string `json:"name" binding:"required,max=120"`
			Slug   string `json:"slug" binding:"omitempty,slug"`
		}
		if !bindJSON(c, &req) {
			return
		}
		kind, known := model.ParseProductKind(req.Family)
		if !known {
			fail(c, http.StatusBadRequest, "family must be generators or parts")
			return
		}
		cat, err := catalog.CreateCategory(c.Request.Context(), actor(c), kind, req.Name, req.Slug)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, cat)
	}
}

type productRequest struct {
	Name              string              `json:"name" binding:"required,max=160"`
	Slug              string              `json:"slug" binding:"omitempty,slug"`
	SKU               string              `json:"sku" binding:"max=64"`
	Brand             string              `json:"brand" binding:"max=80"`
	Price             decimal.Decimal     `json:"price"`
	CompareAtPrice    decimal.NullDecimal `json:"compare_at_price"`
	Stock             int64               `json:"stock" binding:"min=0"`
	LowStockThreshold *int64              `json:"low_stock_threshold" binding:"omitempty,min=0"`
	IsActive          *bool               `json:"is_active"`
	Category          string              `json:"category"`
	Images            []model.Image       `json:"images" binding:"max=10"`
	Description       string              `json:"description"`

	PowerKVA         decimal.Decimal `json:"power_kva"`
	FuelType         string          `json:"fuel_type"`
	CompatibleModels string          `json:"compatible_models"`
}

func createProduct(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, known := familyParam(c)
		if !known {
			return
		}
		var req productRequest
		if !bindJSON(c, &req) {
			return
		}
		p, err := catalog.CreateProduct(c.Request.Context(), actor(c), kind, service.ProductInput{
			Name:              req.Name,
			Slug:              req.Slug,
			SKU:               req.SKU,
			Brand:             req.Brand,
			Price:             req.Price,
			CompareAtPrice:    req.CompareAtPrice,
			Stock:             req.Stock,
			LowStockThreshold: req.LowStockThreshold,
			IsActive:          req.IsActive,
			CategorySlug:      req.Category,
			Images:            req.Images,
			Description:       req.Description,
			PowerKVA:          req.PowerKVA,
			FuelType:          req.FuelType,
			CompatibleModels:  req.CompatibleModels,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusCreated, p)
	}
}

func adjustStock(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, known := familyParam(c)
		if !known {
			return
		}
		id, good := idParam(c, "id")
		if !good {
			return
		}
		var req struct {
			Delta *int64 `json:"delta" binding:"required"`
		}
		if !bindJSON(c, &req) {
			return
		}
		p, err := catalog.AdjustStock(c.Request.Context(), actor(c), kind, id, *req.Delta)
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, p)
	}
}

func lowStock(catalog *service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := catalog.LowStock(c.Request.Context())
		if err != nil {
			handleError(c, err)
			return
		}
		ok(c, http.StatusOK, list)
	}
}
