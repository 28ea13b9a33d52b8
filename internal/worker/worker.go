package worker

import (
	"context"
	"fmt"
	"strconv"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// EventLedger remembers which events were already applied; implemented by *store.Store
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// CatalogInvalidator drops cached catalog entries; implemented by *service.ProductService
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context, productID int64) error
}

// StorefrontWorker applies side effects of storefront events in the background
type StorefrontWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       EventLedger
	catalog      CatalogInvalidator
	logger       *zap.Logger
}

// NewStorefrontWorker creates a new storefront worker
func NewStorefrontWorker(
	consumer *broker.Consumer,
	ledger EventLedger,
	catalog CatalogInvalidator,
) *StorefrontWorker {
	w := &StorefrontWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ledger:       ledger,
		catalog:      catalog,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnPurchaseCreated(w.handlePurchaseCreated)
	w.eventHandler.OnCustomerRegistered(w.handleCustomerRegistered)
	w.eventHandler.OnProductCreated(w.handleProductCreated)

	return w
}

// Start starts the worker
func (w *StorefrontWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting storefront worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StorefrontWorker) Stop() error {
	w.logger.Info("Stopping storefront worker")
	return w.consumer.Close()
}

// once runs apply unless the event was handled before, then records it
func (w *StorefrontWorker) once(ctx context.Context, event models.BaseEvent, apply func() error) error {
	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := apply(); err != nil {
		return err
	}

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event %s: %w", event.EventID, err)
	}
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

func (w *StorefrontWorker) handlePurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		for _, item := range event.Items {
			util.PurchasedUnitsTotal.
				WithLabelValues(strconv.FormatInt(item.ProductID, 10)).
				Add(float64(item.Quantity))
		}
		w.logger.Info("Purchase recorded",
			zap.Int64("purchase_id", event.PurchaseID),
			zap.Int64("customer_id", event.CustomerID),
			zap.String("invoice_total", event.InvoiceTotal.String()))
		return nil
	})
}

func (w *StorefrontWorker) handleCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		w.logger.Info("Customer registered", zap.Int64("customer_id", event.CustomerID))
		return nil
	})
}

func (w *StorefrontWorker) handleProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		if err := w.catalog.InvalidateCatalog(ctx, event.ProductID); err != nil {
			return fmt.Errorf("failed to invalidate catalog cache: %w", err)
		}
		w.logger.Info("Catalog cache invalidated", zap.Int64("product_id", event.ProductID))
		return nil
	})
}
