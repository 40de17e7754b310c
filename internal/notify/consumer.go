package notify

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
)

const orderNotifyConsumer = "order-notify"

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type subscriber interface {
	Receive(ctx context.Context, fn func(ctx context.Context, msg *pubsub.Message)) error
}

// Consumer turns feed events into customer notification rows. Rejections
// become refund-eligible notifications; explicit notification requests are
// written as-is. Failures here never touch the order transition that
// produced the event.
type Consumer struct {
	repo         Repository
	subscription subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer.
func NewConsumer(repo Repository, subscription subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("feed subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) && eventType != string(enums.EventOrderRejected) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotifyConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := c.buildNotification(enums.OutboxEventType(eventType), envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotifyConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification write failed", err)
		_ = c.idempotency.Delete(ctx, orderNotifyConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithOrderID(logCtx, orderIDString(notification.OrderID)), "customer notified")
	return processResult{ack: true}
}

func (c *Consumer) buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventNotificationRequested:
		var payload payloads.NotificationRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("notification request payload: %w", err)
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    payload.OrderID,
			Type:       payload.Type,
			Title:      payload.Title,
			Message:    payload.Message,
		}, nil
	case enums.EventOrderRejected:
		var payload payloads.OrderTransitionEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("rejection payload: %w", err)
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		message := "Your order was rejected. A refund is on its way."
		if payload.RejectionReason != nil && *payload.RejectionReason != "" {
			message = fmt.Sprintf("Your order was rejected: %s. A refund is on its way.", *payload.RejectionReason)
		}
		orderID := payload.OrderID
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &orderID,
			Type:       enums.NotificationTypeRefundDue,
			Title:      "Refund on its way",
			Message:    message,
		}, nil
	default:
		return nil, nil
	}
}

func orderIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
