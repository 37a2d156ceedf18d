package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/mailer"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

// legalTransitions is the order state machine. Anything not listed is
// rejected, including transitions out of terminal states.
var legalTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

func canTransition(from, to models.OrderStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderHandler struct {
	DB       *gorm.DB
	Mail     mailer.Sender
	Producer events.Publisher
}

type orderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingStreet  string             `json:"shipping_street"`
	ShippingCity    string             `json:"shipping_city"`
	ShippingZip     string             `json:"shipping_zip"`
	ShippingCountry string             `json:"shipping_country"`
	PaymentMethod   string             `json:"payment_method"`
}

// CreateOrder snapshots prices, decrements stock and persists the
// order in one transaction. Each decrement is a conditional update
// guarded by the remaining stock, so two orders racing for the last
// unit serialize on the row and exactly one of them wins; a failing
// line item rolls back every earlier decrement.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if len(req.Items) == 0 {
		return web.Validation("order must contain at least one item")
	}
	seen := make(map[uint]bool, len(req.Items))
	for _, it := range req.Items {
		if seen[it.ProductID] {
			return web.Validation("order items must not repeat a product")
		}
		seen[it.ProductID] = true
	}

	var order models.Order

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var (
			total float64
			items []models.OrderItem
		)

		for _, it := range req.Items {
			if it.Quantity < 1 {
				return web.Validation("item quantity must be at least 1")
			}

			var product models.Product
			if err := tx.First(&product, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return web.NotFound(fmt.Sprintf("product %d", it.ProductID))
				}
				return web.Internal(err)
			}
			if !product.Active {
				return web.Validation(fmt.Sprintf("product %s is not available", product.Name))
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", product.ID, it.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
			if res.Error != nil {
				return web.Internal(res.Error)
			}
			if res.RowsAffected == 0 {
				return web.Conflict(fmt.Sprintf("insufficient stock for product %s", product.Name))
			}

			total += product.Price * float64(it.Quantity)
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    it.Quantity,
				Price:       product.Price,
			})
		}

		order = models.Order{
			UserID:          user.ID,
			TotalAmount:     total,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingStreet:  req.ShippingStreet,
			ShippingCity:    req.ShippingCity,
			ShippingZip:     req.ShippingZip,
			ShippingCountry: req.ShippingCountry,
			Items:           items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return web.Internal(err)
		}
		if err := appendStatusEvent(tx, order.ID, "", models.OrderStatusPending); err != nil {
			return web.Internal(err)
		}

		// The cart served its purpose once the order exists.
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error; err != nil {
			return web.Internal(err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	ctx := c.Request().Context()
	if err := h.Mail.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Order Confirmation",
		HTML: fmt.Sprintf(
			"<h1>Order Confirmed!</h1><p>Your order #%d has been received.</p><p>Total Amount: $%.2f</p><p>We'll notify you when your order ships.</p>",
			order.ID, order.TotalAmount,
		),
	}); err != nil {
		logging.FromContext(ctx).Error("order confirmation email failed", "orderID", order.ID, "error", err)
	}

	publish(c, h.Producer, "order_events", strconv.FormatUint(uint64(order.ID), 10), map[string]interface{}{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  user.ID,
		"total":   order.TotalAmount,
	})

	return web.Created(c, echo.Map{"order": order})
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	user := auth.CurrentUser(c)

	var orders []models.Order
	err := h.DB.Where("user_id = ?", user.ID).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"results": len(orders), "orders": orders})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	user := auth.CurrentUser(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid order id")
	}

	var order models.Order
	err = h.DB.Where("id = ? AND user_id = ?", id, user.ID).
		Preload("Items").
		Preload("History").
		First(&order).Error
	if err != nil {
		return web.NotFound("order")
	}
	return web.OK(c, echo.Map{"order": order})
}

// UpdateStatus is the administrative transition endpoint. Transitions
// outside the legality table are rejected, not applied.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid order id")
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return web.Validation("status is required")
	}

	var order models.Order
	if err := h.DB.Preload("Items").First(&order, id).Error; err != nil {
		return web.NotFound("order")
	}

	if !canTransition(order.Status, req.Status) {
		return web.Validation(fmt.Sprintf("cannot transition order from %s to %s", order.Status, req.Status))
	}

	from := order.Status
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Update("status", req.Status).Error; err != nil {
			return web.Internal(err)
		}
		if err := appendStatusEvent(tx, order.ID, from, req.Status); err != nil {
			return web.Internal(err)
		}
		if req.Status == models.OrderStatusCancelled {
			if err := restoreStock(tx, order.Items); err != nil {
				return web.Internal(err)
			}
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	order.Status = req.Status

	if req.Status == models.OrderStatusShipped {
		var owner models.User
		if err := h.DB.First(&owner, order.UserID).Error; err == nil {
			ctx := c.Request().Context()
			if err := h.Mail.Send(ctx, mailer.Message{
				To:      owner.Email,
				Subject: "Your Order Has Shipped",
				HTML: fmt.Sprintf(
					"<h1>Order Shipped!</h1><p>Your order #%d is on its way.</p><p>Expected delivery: 3-5 business days</p>",
					order.ID,
				),
			}); err != nil {
				logging.FromContext(ctx).Error("shipment email failed", "orderID", order.ID, "error", err)
			}
		}
	}

	publish(c, h.Producer, "order_events", strconv.FormatUint(uint64(order.ID), 10), map[string]interface{}{
		"type":    "order_status_updated",
		"orderID": order.ID,
		"from":    from,
		"to":      req.Status,
	})

	return web.OK(c, echo.Map{"order": order})
}

// CancelOrder is the user-facing cancellation: owner only, and only
// while the order is still pending.
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	user := auth.CurrentUser(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid order id")
	}

	var order models.Order
	err = h.DB.Where("id = ? AND user_id = ?", id, user.ID).Preload("Items").First(&order).Error
	if err != nil {
		return web.NotFound("order")
	}
	if order.Status != models.OrderStatusPending {
		return web.Conflict("only pending orders can be cancelled")
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Update("status", models.OrderStatusCancelled).Error; err != nil {
			return web.Internal(err)
		}
		if err := appendStatusEvent(tx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled); err != nil {
			return web.Internal(err)
		}
		return restoreStock(tx, order.Items)
	})
	if txErr != nil {
		return txErr
	}
	order.Status = models.OrderStatusCancelled

	publish(c, h.Producer, "order_events", strconv.FormatUint(uint64(order.ID), 10), map[string]interface{}{
		"type":    "order_cancelled",
		"orderID": order.ID,
		"userID":  user.ID,
	})

	return web.OK(c, echo.Map{"order": order})
}

func restoreStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, it := range items {
		err := tx.Model(&models.Product{}).
			Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
