package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// PurchaseWriter creates a purchase header and its items inside one transaction
type PurchaseWriter interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	CreatePurchaseItem(ctx context.Context, item *models.PurchaseItem) error
}

type purchaseTx struct {
	tx *sqlx.Tx
}

// WithPurchaseTx runs fn inside a transaction. The transaction is committed only
// when fn returns nil; any error or a cancelled ctx rolls everything back.
func (s *Store) WithPurchaseTx(ctx context.Context, fn func(PurchaseWriter) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&purchaseTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}
	return nil
}

// CreatePurchase inserts the order header
func (p *purchaseTx) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	query := `
		INSERT INTO purchases (
			customer_id, street, city, province, country, postal_code,
			credit_card, credit_expire, credit_cvv,
			invoice_amt, invoice_tax, invoice_total, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING purchase_id`

	return p.tx.GetContext(ctx, &purchase.ID, query,
		purchase.CustomerID, purchase.Street, purchase.City, purchase.Province,
		purchase.Country, purchase.PostalCode,
		purchase.CreditCard, purchase.CreditExpire, purchase.CreditCVV,
		purchase.InvoiceAmt, purchase.InvoiceTax, purchase.InvoiceTotal, purchase.OrderDate)
}

// CreatePurchaseItem inserts one purchase line
func (p *purchaseTx) CreatePurchaseItem(ctx context.Context, item *models.PurchaseItem) error {
	query := `
		INSERT INTO purchase_items (purchase_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING purchase_item_id`

	return p.tx.GetContext(ctx, &item.ID, query, item.PurchaseID, item.ProductID, item.Quantity)
}

// GetPurchasesByCustomerID retrieves a customer's purchases with their items.
// Returns an empty slice when the customer has none.
func (s *Store) GetPurchasesByCustomerID(ctx context.Context, customerID int64) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	err := s.db.SelectContext(ctx, &purchases,
		"SELECT * FROM purchases WHERE customer_id = $1 ORDER BY purchase_id", customerID)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return purchases, nil
	}

	ids := make([]int64, len(purchases))
	for i := range purchases {
		ids[i] = purchases[i].ID
	}

	items, err := s.getPurchaseItemsByPurchaseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byPurchase := make(map[int64][]models.PurchaseItem, len(purchases))
	for _, item := range items {
		byPurchase[item.PurchaseID] = append(byPurchase[item.PurchaseID], item)
	}
	for i := range purchases {
		purchases[i].Items = byPurchase[purchases[i].ID]
		if purchases[i].Items == nil {
			purchases[i].Items = []models.PurchaseItem{}
		}
	}

	return purchases, nil
}

func (s *Store) getPurchaseItemsByPurchaseIDs(ctx context.Context, ids []int64) ([]models.PurchaseItem, error) {
	query, args, err := sqlx.In(
		"SELECT * FROM purchase_items WHERE purchase_id IN (?) ORDER BY purchase_id, product_id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.PurchaseItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}
