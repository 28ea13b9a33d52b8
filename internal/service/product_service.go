package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const productListCacheKey = "products:all"

func productCacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// ProductService serves the catalog through a read-through cache
type ProductService struct {
	products  ProductRepository
	cache     Cache
	publisher EventPublisher
	uploadDir string
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewProductService creates a new product service. cache may be nil.
func NewProductService(
	products ProductRepository,
	cache Cache,
	publisher EventPublisher,
	uploadDir string,
	cacheTTL time.Duration,
) *ProductService {
	return &ProductService{
		products:  products,
		cache:     cache,
		publisher: publisher,
		uploadDir: uploadDir,
		cacheTTL:  cacheTTL,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreateProductRequest is a new catalog entry with an optional image
type CreateProductRequest struct {
	Name        string
	Description string
	Cost        Number
	ImageName   string
	Image       io.Reader
}

// ListProducts returns the whole catalog ordered by id
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	var products []models.Product
	if s.cacheGet(ctx, productListCacheKey, &products) {
		return products, nil
	}

	products, err := s.products.GetProducts(ctx)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	s.cacheSet(ctx, productListCacheKey, products)
	return products, nil
}

// GetProduct returns a single product
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()

	if id <= 0 {
		return nil, ErrInvalidInput
	}

	var product models.Product
	if s.cacheGet(ctx, productCacheKey(id), &product) {
		return &product, nil
	}

	p, err := s.products.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	s.cacheSet(ctx, productCacheKey(id), p)
	return p, nil
}

// CreateProduct saves the uploaded image, inserts the product and drops the
// cached catalog listing.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	cost, ok := req.Cost.NonNegativeDecimal()
	if name == "" || !ok {
		return nil, ErrInvalidInput
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Cost:        cost,
	}

	var imagePath string
	if req.Image != nil {
		filename, path, err := s.saveImage(req.ImageName, req.Image)
		if err != nil {
			util.SpanError(span, err)
			return nil, err
		}
		product.ImageFilename = filename
		imagePath = path
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		if imagePath != "" {
			os.Remove(imagePath)
		}
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, productListCacheKey); err != nil {
			s.logger.Warn("Failed to invalidate product list cache", zap.Error(err))
		}
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("image", product.ImageFilename))

	if s.publisher != nil {
		event := &models.ProductCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeProductCreated,
				Timestamp: time.Now(),
			},
			ProductID: product.ID,
			Name:      product.Name,
		}
		if err := s.publisher.PublishProductCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish ProductCreated event", zap.Error(err))
		}
	}

	return product, nil
}

// InvalidateCatalog drops the cached listing and the cached product entry
func (s *ProductService) InvalidateCatalog(ctx context.Context, productID int64) error {
	if s.cache == nil {
		return nil
	}
	keys := []string{productListCacheKey}
	if productID > 0 {
		keys = append(keys, productCacheKey(productID))
	}
	return s.cache.Delete(ctx, keys...)
}

// saveImage writes the upload as <unix millis>-<base name> in the upload dir
func (s *ProductService) saveImage(original string, r io.Reader) (string, string, error) {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", "", fmt.Errorf("%w: image file name", ErrInvalidInput)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	filename := fmt.Sprintf("%d-%s", s.now().UnixMilli(), base)
	path := filepath.Join(s.uploadDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("failed to write image file: %w", err)
	}

	return filename, path, nil
}

func (s *ProductService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	err := s.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		util.CacheRequestsTotal.WithLabelValues("hit").Inc()
		return true
	case errors.Is(err, redisclient.ErrCacheMiss):
		util.CacheRequestsTotal.WithLabelValues("miss").Inc()
	default:
		util.CacheRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *ProductService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
