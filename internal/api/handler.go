package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PurchaseService is implemented by *service.PurchaseService
type PurchaseService interface {
	CreatePurchase(ctx context.Context, req *service.CreatePurchaseRequest) (*models.Purchase, error)
	GetPurchasesForCustomer(ctx context.Context, customerID int64) ([]models.Purchase, error)
}

// SessionLoader resolves a session id to the logged-in customer
type SessionLoader interface {
	CurrentSession(ctx context.Context, sessionID string) (*session.UserContext, error)
}

// CustomerService is implemented by *service.CustomerService
type CustomerService interface {
	SessionLoader
	Signup(ctx context.Context, req *service.SignupRequest) (*models.Customer, error)
	Login(ctx context.Context, req *service.LoginRequest) (string, *session.UserContext, error)
	Logout(ctx context.Context, sessionID string) error
}

// ProductService is implemented by *service.ProductService
type ProductService interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, req *service.CreateProductRequest) (*models.Product, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the HTTP-facing settings from config
type Options struct {
	CookieName     string
	CookieSecure   bool
	SessionTTL     time.Duration
	PublicDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Handler contains HTTP handlers
type Handler struct {
	purchases PurchaseService
	customers CustomerService
	products  ProductService
	pingers   map[string]Pinger
	opts      Options
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	purchases PurchaseService,
	customers CustomerService,
	products ProductService,
	pingers map[string]Pinger,
	opts Options,
) *Handler {
	return &Handler{
		purchases: purchases,
		customers: customers,
		products:  products,
		pingers:   pingers,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(corsMiddleware(h.opts.AllowedOrigins))
	router.Use(sessionMiddleware(h.customers, h.opts.CookieName))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is running...")
	})
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.opts.PublicDir != "" {
		router.Static("/public", h.opts.PublicDir)
	}

	api := router.Group("/api")

	users := api.Group("/users")
	{
		users.POST("/signup", h.signup)
		users.POST("/login", h.login)
		users.POST("/logout", h.logout)
		users.GET("/getSession", h.getSession)
	}

	products := api.Group("/products")
	{
		products.GET("/all", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.POST("", h.createProduct)
	}

	purchases := api.Group("/purchases")
	{
		purchases.POST("", h.createPurchase)
		purchases.GET("/customer/:id", h.getCustomerPurchases)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	customer, err := h.customers.Signup(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{
			"message":  "User created successfully",
			"customer": customer,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
	case errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Password does not meet requirements",
			"policy": service.PasswordPolicy,
		})
	case errors.Is(err, service.ErrEmailInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
	default:
		h.logger.Error("Signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
	}
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	sessionID, user, err := h.customers.Login(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.SetCookie(h.opts.CookieName, sessionID, int(h.opts.SessionTTL.Seconds()), "/", "", h.opts.CookieSecure, true)
		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful",
			"user":    user,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
	}
}

func (h *Handler) logout(c *gin.Context) {
	if id := c.GetString(sessionIDKey); id != "" {
		if err := h.customers.Logout(c.Request.Context(), id); err != nil {
			h.logger.Error("Logout failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log out"})
			return
		}
	}

	c.SetCookie(h.opts.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) getSession(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get products"})
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, product)
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
	default:
		h.logger.Error("Failed to get product", zap.Int64("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get product"})
	}
}

func (h *Handler) createProduct(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	description := strings.TrimSpace(c.PostForm("description"))
	cost := c.PostForm("cost")

	header, err := c.FormFile("image")
	if err != nil || name == "" || description == "" || strings.TrimSpace(cost) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, description, cost and image are required"})
		return
	}
	if h.opts.MaxUploadBytes > 0 && header.Size > h.opts.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer file.Close()

	product, err := h.products.CreateProduct(c.Request.Context(), &service.CreateProductRequest{
		Name:        name,
		Description: description,
		Cost:        service.NewNumber(cost),
		ImageName:   filepath.Base(header.Filename),
		Image:       file,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{
			"message": "Product created successfully",
			"product": product,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product fields"})
	default:
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
	}
}

func (h *Handler) createPurchase(c *gin.Context) {
	var req service.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			// an empty body is validated like one with every field missing
		case errors.As(err, &typeErr) && typeErr.Field != "":
			h.purchaseError(c, &service.PurchaseError{
				Kind:   service.ErrMissingField,
				Fields: []string{typeErr.Field},
			}, "Failed to create purchase")
			return
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	purchase, err := h.purchases.CreatePurchase(c.Request.Context(), &req)
	if err != nil {
		h.purchaseError(c, err, "Failed to create purchase")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Purchase created successfully",
		"purchase": purchase,
	})
}

func (h *Handler) getCustomerPurchases(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || customerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer ID"})
		return
	}

	purchases, err := h.purchases.GetPurchasesForCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.purchaseError(c, err, "Failed to get purchases")
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// purchaseError maps a purchase failure to its status. Store failures get a
// generic message; the cause is only logged.
func (h *Handler) purchaseError(c *gin.Context, err error, generic string) {
	var perr *service.PurchaseError
	if !errors.As(err, &perr) || errors.Is(err, service.ErrStore) {
		h.logger.Error(generic, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
		return
	}

	status := http.StatusBadRequest
	if errors.Is(err, service.ErrCustomerNotFound) || errors.Is(err, service.ErrProductNotFound) {
		status = http.StatusNotFound
	}

	fields := perr.Fields
	if fields == nil {
		fields = []string{}
	}
	c.JSON(status, gin.H{
		"error":  perr.Error(),
		"kind":   errorKind(perr.Kind),
		"fields": fields,
	})
}

func errorKind(kind error) string {
	switch kind {
	case service.ErrMissingField:
		return "MissingField"
	case service.ErrMissingCart:
		return "MissingCart"
	case service.ErrInvalidCartEntry:
		return "InvalidCartEntry"
	case service.ErrCustomerNotFound:
		return "NotFoundCustomer"
	case service.ErrProductNotFound:
		return "NotFoundProduct"
	default:
		return "StoreError"
	}
}
