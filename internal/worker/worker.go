package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cart-service/internal/broker"
	"cart-service/internal/confirmation"
	"cart-service/internal/models"
	"cart-service/internal/util"
)

// ExpiryStore lists preorders that have outlived the expiry policy.
type ExpiryStore interface {
	StalePreorders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ExpiryWorker bounds how long a preorder can sit unanswered. Stale
// preorders are rejected through the same guarded transition a seller
// rejection takes, so a seller confirming concurrently still wins or loses
// cleanly on the status precondition.
type ExpiryWorker struct {
	store    ExpiryStore
	machine  *confirmation.Machine
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewExpiryWorker creates an expiry worker.
func NewExpiryWorker(store ExpiryStore, machine *confirmation.Machine, interval, maxAge time.Duration) *ExpiryWorker {
	return &ExpiryWorker{
		store:    store,
		machine:  machine,
		interval: interval,
		maxAge:   maxAge,
		logger:   util.GetLogger(),
	}
}

// Start runs the expiry loop until the context is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting preorder expiry worker",
		zap.Duration("interval", w.interval),
		zap.Duration("max_age", w.maxAge))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.maxAge)
	orders, err := w.store.StalePreorders(ctx, cutoff, 100)
	if err != nil {
		w.logger.Error("Failed to list stale preorders", zap.Error(err))
		return
	}

	for _, order := range orders {
		res := w.machine.Reject(ctx, order.ID, models.RejectReasonExpired)
		if !res.Success {
			// a seller decision raced the sweep; the precondition refusal
			// is the expected outcome, nothing to do
			w.logger.Info("Stale preorder already resolved",
				zap.Int64("order_id", order.ID),
				zap.String("message", res.Message))
			continue
		}
		w.logger.Info("Expired stale preorder",
			zap.Int64("order_id", order.ID),
			zap.String("order_code", order.OrderCode))
	}
}

// Notifier is the opaque delivery collaborator. What happens after Notify
// (push, email, SMS) is outside this service.
type Notifier interface {
	Notify(ctx context.Context, eventType string, orderID int64, orderCode string) error
}

// LogNotifier is the default Notifier used when no delivery integration is
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) Notify(_ context.Context, eventType string, orderID int64, orderCode string) error {
	n.logger.Info("Order notification",
		zap.String("event_type", eventType),
		zap.Int64("order_id", orderID),
		zap.String("order_code", orderCode))
	return nil
}

// NotificationWorker consumes order lifecycle events and hands them to the
// Notifier.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a notification worker.
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		return notifier.Notify(ctx, e.EventType, e.OrderID, e.OrderCode)
	})
	eventHandler.OnOrderConfirmed(func(ctx context.Context, e *models.OrderConfirmedEvent) error {
		return notifier.Notify(ctx, e.EventType, e.OrderID, e.OrderCode)
	})
	eventHandler.OnOrderRejected(func(ctx context.Context, e *models.OrderRejectedEvent) error {
		return notifier.Notify(ctx, e.EventType, e.OrderID, e.OrderCode)
	})
	eventHandler.OnOrderExpired(func(ctx context.Context, e *models.OrderExpiredEvent) error {
		return notifier.Notify(ctx, e.EventType, e.OrderID, e.OrderCode)
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	return w.consumer.Close()
}
