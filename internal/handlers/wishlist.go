package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

type WishlistHandler struct {
	DB *gorm.DB
}

func (h *WishlistHandler) GetWishlist(c echo.Context) error {
	user := auth.CurrentUser(c)

	var items []models.WishlistItem
	if err := h.DB.Where("user_id = ?", user.ID).Find(&items).Error; err != nil {
		return web.Internal(err)
	}

	products := []models.Product{}
	if len(items) > 0 {
		ids := make([]uint, len(items))
		for i, it := range items {
			ids[i] = it.ProductID
		}
		if err := h.DB.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return web.Internal(err)
		}
	}

	return web.OK(c, echo.Map{"products": products})
}

// AddToWishlist is a no-op when the product is already present.
func (h *WishlistHandler) AddToWishlist(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return web.Validation("product_id is required")
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return web.NotFound("product")
	}

	item := models.WishlistItem{UserID: user.ID, ProductID: req.ProductID}
	err := h.DB.Where("user_id = ? AND product_id = ?", user.ID, req.ProductID).
		FirstOrCreate(&item).Error
	if err != nil {
		return web.Internal(err)
	}

	return web.OK(c, echo.Map{"item": item})
}

func (h *WishlistHandler) RemoveFromWishlist(c echo.Context) error {
	user := auth.CurrentUser(c)

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return web.Validation("invalid product id")
	}

	err = h.DB.Where("user_id = ? AND product_id = ?", user.ID, productID).
		Delete(&models.WishlistItem{}).Error
	if err != nil {
		return web.Internal(err)
	}
	return web.Message(c, 200, "removed from wishlist")
}
