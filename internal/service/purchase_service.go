package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurchaseService records checkouts
type PurchaseService struct {
	purchases PurchaseRepository
	customers CustomerRepository
	products  ProductRepository
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	purchases PurchaseRepository,
	customers CustomerRepository,
	products ProductRepository,
	publisher EventPublisher,
) *PurchaseService {
	return &PurchaseService{
		purchases: purchases,
		customers: customers,
		products:  products,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreatePurchaseRequest is a checkout as submitted by the client. The cart may
// be given under "products" or "cart", as a list of {product_id, quantity}
// entries or as a comma-separated string of product ids.
type CreatePurchaseRequest struct {
	CustomerID   Number    `json:"customer_id"`
	Street       string    `json:"street"`
	City         string    `json:"city"`
	Province     string    `json:"province"`
	Country      string    `json:"country"`
	PostalCode   string    `json:"postal_code"`
	CreditCard   string    `json:"credit_card"`
	CreditExpire string    `json:"credit_expire"`
	CreditCVV    string    `json:"credit_cvv"`
	InvoiceAmt   Number    `json:"invoice_amt"`
	InvoiceTax   Number    `json:"invoice_tax"`
	InvoiceTotal Number    `json:"invoice_total"`
	Products     CartInput `json:"products"`
	Cart         CartInput `json:"cart"`
}

func (r *CreatePurchaseRequest) cartInput() CartInput {
	if r.Products.IsSet() {
		return r.Products.Named("products")
	}
	return r.Cart.Named("cart")
}

// validate checks every required field and normalizes the cart. No field
// is trusted for order_date; the caller sets it.
func (r *CreatePurchaseRequest) validate() (*models.Purchase, Cart, error) {
	var missing []string
	text := func(name, value string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	purchase := &models.Purchase{}

	customerID, ok := r.CustomerID.PositiveInt64()
	if !ok {
		missing = append(missing, "customer_id")
	}
	purchase.CustomerID = customerID

	purchase.Street = text("street", r.Street)
	purchase.City = text("city", r.City)
	purchase.Province = text("province", r.Province)
	purchase.Country = text("country", r.Country)
	purchase.PostalCode = text("postal_code", r.PostalCode)
	purchase.CreditCard = text("credit_card", r.CreditCard)
	purchase.CreditExpire = text("credit_expire", r.CreditExpire)
	purchase.CreditCVV = text("credit_cvv", r.CreditCVV)

	for _, f := range []struct {
		name  string
		value Number
		dest  *decimal.Decimal
	}{
		{"invoice_amt", r.InvoiceAmt, &purchase.InvoiceAmt},
		{"invoice_tax", r.InvoiceTax, &purchase.InvoiceTax},
		{"invoice_total", r.InvoiceTotal, &purchase.InvoiceTotal},
	} {
		d, ok := f.value.NonNegativeDecimal()
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		*f.dest = d
	}

	if len(missing) > 0 {
		return nil, nil, newPurchaseError(ErrMissingField, missing...)
	}

	cart, err := NormalizeCart(r.cartInput())
	if err != nil {
		return nil, nil, err
	}

	return purchase, cart, nil
}

// CreatePurchase validates the request, then writes the purchase header and
// one item per distinct product in a single transaction. The returned header
// carries the assigned id and order date but no items.
func (s *PurchaseService) CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.CreatePurchase")
	defer span.End()

	purchase, cart, err := req.validate()
	if err != nil {
		s.reject(err)
		util.SpanError(span, err)
		return nil, err
	}

	if err := s.checkReferences(ctx, purchase.CustomerID, cart); err != nil {
		s.reject(err)
		util.SpanError(span, err)
		return nil, err
	}

	purchase.OrderDate = s.now().UTC()

	start := time.Now()
	var items []models.PurchaseItem
	err = s.purchases.WithPurchaseTx(ctx, func(w store.PurchaseWriter) error {
		items = items[:0]
		if err := w.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("failed to create purchase: %w", err)
		}

		for _, productID := range cart.ProductIDs() {
			item := models.PurchaseItem{
				PurchaseID: purchase.ID,
				ProductID:  productID,
				Quantity:   cart[productID],
			}
			if err := w.CreatePurchaseItem(ctx, &item); err != nil {
				return fmt.Errorf("failed to create purchase item for product %d: %w", productID, err)
			}
			items = append(items, item)
		}
		return nil
	})
	util.PurchaseCreateLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		perr := storeError(err)
		s.reject(perr)
		util.SpanError(span, perr)
		s.logger.Error("Purchase transaction rolled back",
			zap.Int64("customer_id", purchase.CustomerID),
			zap.Error(err))
		return nil, perr
	}

	util.PurchasesCreatedTotal.Inc()
	util.PurchaseItemsTotal.Add(float64(len(items)))
	s.logger.Info("Purchase created",
		zap.Int64("purchase_id", purchase.ID),
		zap.Int64("customer_id", purchase.CustomerID),
		zap.Int("items", len(items)),
		zap.Int("units", cart.Units()))

	s.publishCreated(ctx, purchase, items)

	return purchase, nil
}

// checkReferences rejects purchases for unknown customers or products before
// anything is written.
func (s *PurchaseService) checkReferences(ctx context.Context, customerID int64, cart Cart) error {
	if _, err := s.customers.GetCustomerByID(ctx, customerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newPurchaseError(ErrCustomerNotFound, strconv.FormatInt(customerID, 10))
		}
		return storeError(err)
	}

	productIDs := cart.ProductIDs()
	products, err := s.products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return storeError(err)
	}

	known := make(map[int64]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	var missing []string
	for _, id := range productIDs {
		if !known[id] {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		return newPurchaseError(ErrProductNotFound, missing...)
	}
	return nil
}

func (s *PurchaseService) publishCreated(ctx context.Context, purchase *models.Purchase, items []models.PurchaseItem) {
	if s.publisher == nil {
		return
	}

	data := make([]models.PurchaseItemData, len(items))
	for i, item := range items {
		data[i] = models.PurchaseItemData{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	event := &models.PurchaseCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseCreated,
			Timestamp: time.Now(),
		},
		PurchaseID:   purchase.ID,
		CustomerID:   purchase.CustomerID,
		InvoiceTotal: purchase.InvoiceTotal,
		Items:        data,
	}

	if err := s.publisher.PublishPurchaseCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCreated event",
			zap.Int64("purchase_id", purchase.ID),
			zap.Error(err))
	}
}

func (s *PurchaseService) reject(err error) {
	util.PurchasesFailedTotal.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrMissingCart):
		return "missing_cart"
	case errors.Is(err, ErrInvalidCartEntry):
		return "invalid_cart_entry"
	case errors.Is(err, ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	default:
		return "store_error"
	}
}

// GetPurchasesForCustomer returns the customer's purchases with their items.
// A customer without purchases gets an empty slice, not an error.
func (s *PurchaseService) GetPurchasesForCustomer(ctx context.Context, customerID int64) ([]models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.GetPurchasesForCustomer")
	defer span.End()

	if customerID <= 0 {
		return nil, newPurchaseError(ErrMissingField, "customer_id")
	}

	purchases, err := s.purchases.GetPurchasesByCustomerID(ctx, customerID)
	if err != nil {
		util.SpanError(span, err)
		return nil, storeError(err)
	}

	if purchases == nil {
		purchases = []models.Purchase{}
	}
	for i := range purchases {
		if purchases[i].Items == nil {
			purchases[i].Items = []models.PurchaseItem{}
		}
	}
	return purchases, nil
}
