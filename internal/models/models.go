package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a registered shopper
type Customer struct {
	ID        int64     `db:"customer_id" json:"customer_id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID            int64           `db:"product_id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Cost          decimal.Decimal `db:"cost" json:"cost"`
	ImageFilename string          `db:"image_filename" json:"image_filename"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Purchase is the order header. It owns its PurchaseItems.
type Purchase struct {
	ID           int64           `db:"purchase_id" json:"purchase_id"`
	CustomerID   int64           `db:"customer_id" json:"customer_id"`
	Street       string          `db:"street" json:"street"`
	City         string          `db:"city" json:"city"`
	Province     string          `db:"province" json:"province"`
	Country      string          `db:"country" json:"country"`
	PostalCode   string          `db:"postal_code" json:"postal_code"`
	CreditCard   string          `db:"credit_card" json:"credit_card"`
	CreditExpire string          `db:"credit_expire" json:"credit_expire"`
	CreditCVV    string          `db:"credit_cvv" json:"credit_cvv"`
	InvoiceAmt   decimal.Decimal `db:"invoice_amt" json:"invoice_amt"`
	InvoiceTax   decimal.Decimal `db:"invoice_tax" json:"invoice_tax"`
	InvoiceTotal decimal.Decimal `db:"invoice_total" json:"invoice_total"`
	OrderDate    time.Time       `db:"order_date" json:"order_date"`
	Items        []PurchaseItem  `db:"-" json:"items,omitempty"`
}

// PurchaseItem is one product line of a purchase
type PurchaseItem struct {
	ID         int64 `db:"purchase_item_id" json:"purchase_item_id"`
	PurchaseID int64 `db:"purchase_id" json:"purchase_id"`
	ProductID  int64 `db:"product_id" json:"product_id"`
	Quantity   int   `db:"quantity" json:"quantity"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
