package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// PurchaseRepository persists purchases; implemented by *store.Store
type PurchaseRepository interface {
	WithPurchaseTx(ctx context.Context, fn func(store.PurchaseWriter) error) error
	GetPurchasesByCustomerID(ctx context.Context, customerID int64) ([]models.Purchase, error)
}

// CustomerRepository persists customers; implemented by *store.Store
type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
}

// ProductRepository persists the catalog; implemented by *store.Store
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// EventPublisher publishes storefront domain events; implemented by *broker.EventPublisher
type EventPublisher interface {
	PublishPurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error
	PublishCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error
	PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error
}

// Cache is a JSON key/value cache with expiry; implemented by *redisclient.Client
type Cache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}
