// Package notify fans order lifecycle events out to the audit log and the
// message broker from a protoactor actor, off the request path.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/icecreamshop/pkg/messaging"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"

	deliveryTimeout = 5 * time.Second
)

type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// OrderPlaced is published once an order is committed.
type OrderPlaced struct {
	OrderID   uint      `json:"order_id"`
	UserID    uint      `json:"user_id"`
	Total     string    `json:"total"`
	ItemCount int       `json:"item_count"`
	At        time.Time `json:"at"`
}

type OrderStatusChanged struct {
	OrderID uint               `json:"order_id"`
	UserID  uint               `json:"user_id"`
	From    models.OrderStatus `json:"from"`
	To      models.OrderStatus `json:"to"`
	At      time.Time          `json:"at"`
}

// NotificationActor records and publishes order events one at a time.
type NotificationActor struct {
	service   string
	audit     AuditWriter
	publisher messaging.Publisher
	logger    *zap.Logger
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *OrderPlaced:
		a.deliver(TopicOrderPlaced, msg.OrderID, msg, bson.M{
			"user_id":    msg.UserID,
			"total":      msg.Total,
			"item_count": msg.ItemCount,
		})

	case *OrderStatusChanged:
		a.deliver(TopicOrderStatusChanged, msg.OrderID, msg, bson.M{
			"user_id": msg.UserID,
			"from":    string(msg.From),
			"to":      string(msg.To),
		})

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopping:
		a.logger.Info("Notification actor stopping")
	}
}

func (a *NotificationActor) deliver(action string, orderID uint, event any, data bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	key := strconv.FormatUint(uint64(orderID), 10)

	if a.audit != nil {
		err := a.audit.CreateAuditLog(ctx, &repository.AuditLog{
			Service:    a.service,
			Action:     action,
			EntityType: repository.AuditEntityOrder,
			EntityID:   key,
			Data:       data,
		})
		if err != nil {
			a.logger.Error("Failed to write audit log", zap.String("action", action), zap.Uint("order_id", orderID), zap.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.PublishEvent(ctx, action, key, event); err != nil {
			a.logger.Error("Failed to publish event", zap.String("topic", action), zap.Uint("order_id", orderID), zap.Error(err))
		}
	}
}

// Dispatcher hands order events to the notification actor without waiting.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewDispatcher(service string, audit AuditWriter, publisher messaging.Publisher, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{
			service:   service,
			audit:     audit,
			publisher: publisher,
			logger:    logger.Named("notification-actor"),
		}
	})
	pid, err := system.Root.SpawnNamed(props, "order-notifications")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

func (d *Dispatcher) OrderPlaced(order *models.Order) {
	d.system.Root.Send(d.pid, &OrderPlaced{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total.StringFixed(2),
		ItemCount: len(order.Items),
		At:        time.Now().UTC(),
	})
}

func (d *Dispatcher) OrderStatusChanged(order *models.Order, from models.OrderStatus) {
	d.system.Root.Send(d.pid, &OrderStatusChanged{
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    from,
		To:      order.Status,
		At:      time.Now().UTC(),
	})
}

// Stop lets the actor drain queued events, then shuts the actor system down.
func (d *Dispatcher) Stop() {
	if err := d.system.Root.PoisonFuture(d.pid).Wait(); err != nil {
		d.logger.Warn("Notification actor did not stop cleanly", zap.Error(err))
	}
	d.system.Shutdown()
}
