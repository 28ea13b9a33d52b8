package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	processed map[string]string
}

func (l *memLedger) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := l.processed[eventID]
	return ok, nil
}

func (l *memLedger) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	l.processed[eventID] = eventType
	return nil
}

type recordingCatalog struct {
	invalidated []int64
	err         error
}

func (c *recordingCatalog) InvalidateCatalog(_ context.Context, productID int64) error {
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, productID)
	return nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func newTestWorker() (*StorefrontWorker, *memLedger, *recordingCatalog) {
	ledger := &memLedger{processed: map[string]string{}}
	catalog := &recordingCatalog{}
	return NewStorefrontWorker(nil, ledger, catalog), ledger, catalog
}

func TestProductCreatedInvalidatesCatalogOnce(t *testing.T) {
	w, ledger, catalog := newTestWorker()

	msg := message(t, models.ProductCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-p1", EventType: models.EventTypeProductCreated},
		ProductID: 12,
	})

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))

	assert.Equal(t, []int64{12}, catalog.invalidated)
	assert.Equal(t, models.EventTypeProductCreated, ledger.processed["evt-p1"])
}

func TestProductCreatedFailureIsNotMarked(t *testing.T) {
	w, ledger, catalog := newTestWorker()
	catalog.err = errors.New("redis down")

	msg := message(t, models.ProductCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-p2", EventType: models.EventTypeProductCreated},
		ProductID: 3,
	})

	assert.Error(t, w.eventHandler.HandleMessage(context.Background(), msg))
	assert.NotContains(t, ledger.processed, "evt-p2")
}

func TestPurchaseCreatedCountsUnits(t *testing.T) {
	w, ledger, _ := newTestWorker()
	counter := util.PurchasedUnitsTotal.WithLabelValues("90210")
	before := testutil.ToFloat64(counter)

	msg := message(t, models.PurchaseCreatedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-o1", EventType: models.EventTypePurchaseCreated},
		PurchaseID: 1,
		CustomerID: 1,
		Items:      []models.PurchaseItemData{{ProductID: 90210, Quantity: 3}},
	})

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
	assert.Contains(t, ledger.processed, "evt-o1")
}
