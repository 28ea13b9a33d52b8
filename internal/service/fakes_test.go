package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
)

// memStore is an in-memory stand-in for *store.Store. Purchase writes are
// staged per transaction and only applied when the callback succeeds.
type memStore struct {
	mu sync.Mutex

	customers map[int64]*models.Customer
	products  map[int64]*models.Product
	purchases []models.Purchase
	items     []models.PurchaseItem

	nextCustomerID int64
	nextProductID  int64
	nextPurchaseID int64
	nextItemID     int64

	failItemFor int64
	readErr     error
	afterHeader func()
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[int64]*models.Customer{},
		products:  map[int64]*models.Product{},
	}
}

func (m *memStore) addCustomer(email string) *models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCustomerID++
	c := &models.Customer{ID: m.nextCustomerID, Email: email, FirstName: "Test", LastName: "User"}
	m.customers[c.ID] = c
	return c
}

func (m *memStore) addProduct(name string) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	p := &models.Product{ID: m.nextProductID, Name: name}
	m.products[p.ID] = p
	return p
}

func (m *memStore) CreateCustomer(_ context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if strings.EqualFold(c.Email, customer.Email) {
			return store.ErrDuplicate
		}
	}
	m.nextCustomerID++
	customer.ID = m.nextCustomerID
	customer.CreatedAt = time.Now()
	cp := *customer
	m.customers[customer.ID] = &cp
	return nil
}

func (m *memStore) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	c, ok := m.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	product.ID = m.nextProductID
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *memStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProducts(_ context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var products []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, *p)
		}
	}
	return products, nil
}

type stagedTx struct {
	m         *memStore
	purchases []models.Purchase
	items     []models.PurchaseItem
	nextID    int64
	nextItem  int64
}

func (t *stagedTx) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.nextID++
	purchase.ID = t.nextID
	t.purchases = append(t.purchases, *purchase)
	if t.m.afterHeader != nil {
		t.m.afterHeader()
	}
	return nil
}

func (t *stagedTx) CreatePurchaseItem(ctx context.Context, item *models.PurchaseItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.m.failItemFor != 0 && item.ProductID == t.m.failItemFor {
		return errors.New("insert purchase_items: connection reset")
	}
	for _, existing := range t.items {
		if existing.PurchaseID == item.PurchaseID && existing.ProductID == item.ProductID {
			return store.ErrDuplicate
		}
	}
	t.nextItem++
	item.ID = t.nextItem
	t.items = append(t.items, *item)
	return nil
}

// WithPurchaseTx stages writes like a database transaction bound to ctx: a
// cancelled ctx discards everything, even after fn returns.
func (m *memStore) WithPurchaseTx(ctx context.Context, fn func(store.PurchaseWriter) error) error {
	m.mu.Lock()
	tx := &stagedTx{m: m, nextID: m.nextPurchaseID, nextItem: m.nextItemID}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases = append(m.purchases, tx.purchases...)
	m.items = append(m.items, tx.items...)
	m.nextPurchaseID = tx.nextID
	m.nextItemID = tx.nextItem
	return nil
}

func (m *memStore) GetPurchasesByCustomerID(_ context.Context, customerID int64) ([]models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var purchases []models.Purchase
	for _, p := range m.purchases {
		if p.CustomerID != customerID {
			continue
		}
		for _, item := range m.items {
			if item.PurchaseID == p.ID {
				p.Items = append(p.Items, item)
			}
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

func (m *memStore) itemsFor(purchaseID int64) []models.PurchaseItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.PurchaseItem
	for _, item := range m.items {
		if item.PurchaseID == purchaseID {
			items = append(items, item)
		}
	}
	return items
}

type recordingPublisher struct {
	mu        sync.Mutex
	purchases []*models.PurchaseCreatedEvent
	customers []*models.CustomerRegisteredEvent
	products  []*models.ProductCreatedEvent
	err       error
}

func (p *recordingPublisher) PublishPurchaseCreated(_ context.Context, event *models.PurchaseCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchases = append(p.purchases, event)
	return p.err
}

func (p *recordingPublisher) PublishCustomerRegistered(_ context.Context, event *models.CustomerRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers = append(p.customers, event)
	return p.err
}

func (p *recordingPublisher) PublishProductCreated(_ context.Context, event *models.ProductCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products = append(p.products, event)
	return p.err
}

type memCache struct {
	values map[string][]byte
	gets   int
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.gets++
	data, ok := c.values[key]
	if !ok {
		return redisclient.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}
