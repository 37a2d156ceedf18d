package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

type CartHandler struct {
	DB *gorm.DB
}

// cartView is the cart response shape: items plus the total derived
// from the snapshot prices, recomputed on every read.
type cartView struct {
	Items       []models.CartItem `json:"items"`
	TotalAmount float64           `json:"total_amount"`
}

func (h *CartHandler) view(userID uint) (*cartView, error) {
	items := []models.CartItem{}
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	v := &cartView{Items: items}
	for _, it := range items {
		v.TotalAmount += it.Price * float64(it.Quantity)
	}
	return v, nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	v, err := h.view(auth.CurrentUser(c).ID)
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"cart": v})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return web.NotFound("product")
	}
	if !product.Active {
		return web.Validation("product is not available")
	}

	var item models.CartItem
	err := h.DB.Where("user_id = ? AND product_id = ?", user.ID, req.ProductID).First(&item).Error
	switch {
	case err == nil:
		if product.Stock < item.Quantity+req.Quantity {
			return web.Conflict(fmt.Sprintf("only %d items available", product.Stock))
		}
		item.Quantity += req.Quantity
		item.Price = product.Price
		if err := h.DB.Save(&item).Error; err != nil {
			return web.Internal(err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if product.Stock < req.Quantity {
			return web.Conflict(fmt.Sprintf("only %d items available", product.Stock))
		}
		item = models.CartItem{
			UserID:    user.ID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Price:     product.Price,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return web.Internal(err)
		}
	default:
		return web.Internal(err)
	}

	v, err := h.view(user.ID)
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"cart": v})
}

func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  *int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return web.Validation("product_id and quantity are required")
	}
	if *req.Quantity < 0 {
		return web.Validation("quantity cannot be negative")
	}

	var item models.CartItem
	if err := h.DB.Where("user_id = ? AND product_id = ?", user.ID, req.ProductID).First(&item).Error; err != nil {
		return web.NotFound("cart item")
	}

	if *req.Quantity == 0 {
		if err := h.DB.Delete(&item).Error; err != nil {
			return web.Internal(err)
		}
	} else {
		var product models.Product
		if err := h.DB.First(&product, req.ProductID).Error; err != nil {
			return web.NotFound("product")
		}
		if product.Stock < *req.Quantity {
			return web.Conflict(fmt.Sprintf("only %d items available", product.Stock))
		}
		item.Quantity = *req.Quantity
		item.Price = product.Price
		if err := h.DB.Save(&item).Error; err != nil {
			return web.Internal(err)
		}
	}

	v, err := h.view(user.ID)
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"cart": v})
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	user := auth.CurrentUser(c)

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return web.Validation("invalid product id")
	}

	err = h.DB.Where("user_id = ? AND product_id = ?", user.ID, productID).Delete(&models.CartItem{}).Error
	if err != nil {
		return web.Internal(err)
	}

	v, err := h.view(user.ID)
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"cart": v})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	user := auth.CurrentUser(c)
	if err := h.DB.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error; err != nil {
		return web.Internal(err)
	}
	return web.Message(c, 200, "cart cleared successfully")
}
