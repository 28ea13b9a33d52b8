package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePurchaseCreated    = "PURCHASE_CREATED"
	EventTypeCustomerRegistered = "CUSTOMER_REGISTERED"
	EventTypeProductCreated     = "PRODUCT_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCreatedEvent published after a purchase and its items are committed
type PurchaseCreatedEvent struct {
	BaseEvent
	PurchaseID   int64              `json:"purchase_id"`
	CustomerID   int64              `json:"customer_id"`
	InvoiceTotal decimal.Decimal    `json:"invoice_total"`
	Items        []PurchaseItemData `json:"items"`
}

// CustomerRegisteredEvent published on signup
type CustomerRegisteredEvent struct {
	BaseEvent
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
}

// ProductCreatedEvent published when a product is added to the catalog
type ProductCreatedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
}

// PurchaseItemData represents item data in events
type PurchaseItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
