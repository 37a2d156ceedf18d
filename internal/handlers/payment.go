package handlers

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/cache"
	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/mailer"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/payments"
	"github.com/kmalinin/shoply/internal/web"
)

// Processed webhook event ids are remembered this long; Stripe stops
// retrying well before that.
const eventDedupeTTL = 24 * time.Hour

type PaymentHandler struct {
	DB       *gorm.DB
	Provider payments.Provider
	Dedupe   cache.Store
	Mail     mailer.Sender
	Producer events.Publisher
}

func (h *PaymentHandler) CreatePaymentIntent(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req struct {
		OrderID uint `json:"order_id"`
	}
	if err := c.Bind(&req); err != nil || req.OrderID == 0 {
		return web.Validation("order_id is required")
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", req.OrderID, user.ID).First(&order).Error; err != nil {
		return web.NotFound("order")
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return web.Validation("order is already paid")
	}

	amount := int64(math.Round(order.TotalAmount * 100))
	intent, err := h.Provider.CreateIntent(c.Request().Context(), amount, "usd", map[string]string{
		"order_id": strconv.FormatUint(uint64(order.ID), 10),
		"user_id":  strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		return web.Upstream("failed to create payment intent", err)
	}

	updates := map[string]interface{}{
		"payment_payment_intent_id": intent.ID,
		"payment_client_secret":     intent.ClientSecret,
	}
	if err := h.DB.Model(&order).Updates(updates).Error; err != nil {
		return web.Internal(err)
	}

	return web.OK(c, echo.Map{"client_secret": intent.ClientSecret})
}

// HandleWebhook verifies the processor signature over the raw body,
// drops redelivered events and dispatches on the event kind. Unknown
// kinds are acknowledged without touching anything.
func (h *PaymentHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return web.Validation("unable to read request body")
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" {
		return web.Validation("no stripe signature found")
	}

	event, err := h.Provider.VerifyWebhook(body, sig)
	if err != nil {
		return web.Validation("webhook signature verification failed")
	}

	ctx := c.Request().Context()
	fresh, err := h.Dedupe.SetNX(ctx, "stripe_event:"+event.ID, "1", eventDedupeTTL)
	if err != nil {
		return web.Internal(err)
	}
	if !fresh {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	if err := h.applyEvent(c, event); err != nil {
		// Forget the event id so the processor's retry is not swallowed
		// as a duplicate of an apply that never happened.
		_ = h.Dedupe.Del(ctx, "stripe_event:"+event.ID)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *PaymentHandler) applyEvent(c echo.Context, event *payments.Event) error {
	orderID, err := strconv.ParseUint(event.OrderID, 10, 64)
	if err != nil {
		// No order reference in the metadata; nothing to mutate.
		return nil
	}

	var order models.Order
	if err := h.DB.First(&order, uint(orderID)).Error; err != nil {
		logging.FromContext(c.Request().Context()).Warn("webhook for unknown order", "orderID", orderID, "kind", event.Kind)
		return nil
	}

	now := time.Now()

	switch event.Kind {
	case payments.EventPaymentSucceeded:
		from := order.Status
		txErr := h.DB.Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&order).Updates(map[string]interface{}{
				"payment_status":            models.PaymentStatusPaid,
				"status":                    models.OrderStatusProcessing,
				"payment_payment_intent_id": event.IntentID,
				"payment_payment_method":    event.PaymentMethod,
				"payment_paid_at":           now,
			}).Error
			if err != nil {
				return web.Internal(err)
			}
			return appendStatusEvent(tx, order.ID, from, models.OrderStatusProcessing)
		})
		if txErr != nil {
			return txErr
		}
		publish(c, h.Producer, "order_events", event.OrderID, map[string]interface{}{
			"type":    "order_paid",
			"orderID": order.ID,
		})

	case payments.EventPaymentFailed:
		err := h.DB.Model(&order).Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"payment_error":  event.ErrorMessage,
		}).Error
		if err != nil {
			return web.Internal(err)
		}

	case payments.EventChargeRefunded:
		from := order.Status
		txErr := h.DB.Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&order).Updates(map[string]interface{}{
				"payment_status":        models.PaymentStatusRefunded,
				"status":                models.OrderStatusCancelled,
				"payment_refund_status": "completed",
				"payment_refunded_at":   now,
			}).Error
			if err != nil {
				return web.Internal(err)
			}
			return appendStatusEvent(tx, order.ID, from, models.OrderStatusCancelled)
		})
		if txErr != nil {
			return txErr
		}

	case payments.EventRefundUpdated:
		err := h.DB.Model(&order).Update("payment_refund_status", event.RefundStatus).Error
		if err != nil {
			return web.Internal(err)
		}
	}

	return nil
}

func (h *PaymentHandler) GetPaymentStatus(c echo.Context) error {
	user := auth.CurrentUser(c)

	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		return web.Validation("invalid order id")
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", orderID, user.ID).First(&order).Error; err != nil {
		return web.NotFound("order")
	}

	return web.OK(c, echo.Map{
		"payment_status": order.PaymentStatus,
		"client_secret":  order.Payment.ClientSecret,
	})
}

func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	user := auth.CurrentUser(c)

	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		return web.Validation("invalid order id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "customer_requested"
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", orderID, user.ID).First(&order).Error; err != nil {
		return web.NotFound("order")
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return web.Validation("order is not paid")
	}
	if order.Payment.PaymentIntentID == "" {
		return web.Validation("payment details not found")
	}

	refundID, err := h.Provider.Refund(c.Request().Context(), order.Payment.PaymentIntentID, map[string]string{
		"order_id": strconv.FormatUint(uint64(order.ID), 10),
		"reason":   req.Reason,
	})
	if err != nil {
		return web.Upstream("failed to create refund", err)
	}

	now := time.Now()
	from := order.Status
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&order).Updates(map[string]interface{}{
			"payment_status":        models.PaymentStatusRefunded,
			"status":                models.OrderStatusCancelled,
			"payment_refund_id":     refundID,
			"payment_refund_reason": req.Reason,
			"payment_refunded_at":   now,
		}).Error
		if err != nil {
			return web.Internal(err)
		}
		return appendStatusEvent(tx, order.ID, from, models.OrderStatusCancelled)
	})
	if txErr != nil {
		return txErr
	}
	order.Status = models.OrderStatusCancelled
	order.PaymentStatus = models.PaymentStatusRefunded
	order.Payment.RefundID = refundID
	order.Payment.RefundReason = req.Reason
	order.Payment.RefundedAt = &now

	ctx := c.Request().Context()
	if err := h.Mail.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Refund Processed",
		HTML: fmt.Sprintf(
			"<h1>Refund Processed Successfully</h1><p>Your refund for order #%d has been processed.</p><p>Amount refunded: $%.2f</p><p>Refund ID: %s</p>",
			order.ID, order.TotalAmount, refundID,
		),
	}); err != nil {
		logging.FromContext(ctx).Error("refund email failed", "orderID", order.ID, "error", err)
	}

	publish(c, h.Producer, "order_events", strconv.Itoa(orderID), map[string]interface{}{
		"type":     "order_refunded",
		"orderID":  order.ID,
		"refundID": refundID,
	})

	return web.OK(c, echo.Map{"refund_id": refundID, "order": order})
}
