package handlers

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/models"
)

const publishTimeout = 5 * time.Second

// publish sends a domain event, logging failures instead of failing
// the request. Events are notifications, never source of truth.
func publish(c echo.Context, p events.Publisher, topic, key string, event map[string]interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), publishTimeout)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", topic, "error", err)
	}
}

// appendStatusEvent writes one row of the append-only order history.
// Called inside the same transaction as the status change itself.
func appendStatusEvent(tx *gorm.DB, orderID uint, from, to models.OrderStatus) error {
	return tx.Create(&models.OrderStatusEvent{
		OrderID: orderID,
		From:    from,
		To:      to,
	}).Error
}
