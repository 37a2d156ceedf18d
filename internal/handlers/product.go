package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/search"
	"github.com/kmalinin/shoply/internal/util"
	"github.com/kmalinin/shoply/internal/web"
)

// Only these columns may be used as a sort key from the query string.
var sortableColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
	"rating":     "rating",
}

type ProductHandler struct {
	DB       *gorm.DB
	Producer events.Publisher
	Index    search.ProductIndex
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	query := h.DB.Model(&models.Product{}).Where("active = ?", true)

	if s := c.QueryParam("search"); s != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if cat := c.QueryParam("category"); cat != "" {
		query = query.Where("category = ?", cat)
	}
	if v := c.QueryParam("minPrice"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			query = query.Where("price >= ?", p)
		}
	}
	if v := c.QueryParam("maxPrice"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			query = query.Where("price <= ?", p)
		}
	}
	if v := c.QueryParam("minStock"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			query = query.Where("stock >= ?", s)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return web.Internal(err)
	}

	sortBy, ok := sortableColumns[c.QueryParam("sortBy")]
	if !ok {
		sortBy = "created_at"
	}
	direction := "DESC"
	if c.QueryParam("order") == "asc" {
		direction = "ASC"
	}

	var products []models.Product
	err := query.Order(sortBy + " " + direction).Offset(offset).Limit(limit).Find(&products).Error
	if err != nil {
		return web.Internal(err)
	}

	var categories []string
	if err := h.DB.Model(&models.Product{}).Where("active = ?", true).Distinct("category").Pluck("category", &categories).Error; err != nil {
		return web.Internal(err)
	}

	var priceRange struct {
		MinPrice float64 `json:"min_price"`
		MaxPrice float64 `json:"max_price"`
	}
	h.DB.Model(&models.Product{}).Where("active = ?", true).
		Select("COALESCE(MIN(price), 0) AS min_price, COALESCE(MAX(price), 0) AS max_price").
		Scan(&priceRange)

	return web.OK(c, echo.Map{
		"products": products,
		"pagination": echo.Map{
			"total": total,
			"page":  page,
			"pages": (total + int64(limit) - 1) / int64(limit),
			"limit": limit,
		},
		"filters": echo.Map{
			"categories":  categories,
			"price_range": priceRange,
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid product id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return web.NotFound("product")
	}
	return web.OK(c, echo.Map{"product": product})
}

func (h *ProductHandler) SearchProducts(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return web.Validation("search query is required")
	}
	if h.Index == nil {
		return web.Upstream("search is not configured", nil)
	}

	products, err := h.Index.Search(c.Request().Context(), q)
	if err != nil {
		return web.Upstream("search failed", err)
	}
	return web.OK(c, echo.Map{"results": len(products), "products": products})
}

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if req.Name == "" {
		return web.Validation("name is required")
	}
	if req.Price < 0 {
		return web.Validation("price cannot be negative")
	}
	if req.Stock < 0 {
		return web.Validation("stock cannot be negative")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      strings.Join(req.Images, ","),
		Active:      true,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return web.Internal(err)
	}

	h.reindex(c, &product)
	publish(c, h.Producer, "product_events", strconv.FormatUint(uint64(product.ID), 10), map[string]interface{}{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})

	return web.Created(c, echo.Map{"product": product})
}

// UpdateProduct merges only whitelisted fields; caller-supplied field
// sets never reach the row directly.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid product id")
	}

	var req struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Category    *string   `json:"category"`
		Price       *float64  `json:"price"`
		Stock       *int      `json:"stock"`
		Images      *[]string `json:"images"`
		Active      *bool     `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if req.Price != nil && *req.Price < 0 {
		return web.Validation("price cannot be negative")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return web.Validation("stock cannot be negative")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return web.NotFound("product")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Images != nil {
		product.Images = strings.Join(*req.Images, ",")
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return web.Internal(err)
	}

	h.reindex(c, &product)
	publish(c, h.Producer, "product_events", strconv.FormatUint(uint64(product.ID), 10), map[string]interface{}{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})

	return web.OK(c, echo.Map{"product": product})
}

// DeleteProduct clears the active flag. Rows are never removed so past
// orders keep their references.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid product id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return web.NotFound("product")
	}

	if err := h.DB.Model(&product).Update("active", false).Error; err != nil {
		return web.Internal(err)
	}
	product.Active = false

	h.reindex(c, &product)
	publish(c, h.Producer, "product_events", strconv.FormatUint(uint64(product.ID), 10), map[string]interface{}{
		"type":      "product_deleted",
		"productID": product.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) reindex(c echo.Context, p *models.Product) {
	if h.Index == nil {
		return
	}
	if err := h.Index.IndexProduct(c.Request().Context(), p); err != nil {
		logging.FromContext(c.Request().Context()).Error("product index failed", "productID", p.ID, "error", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
