package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
)

// PasswordPolicy describes the rules a signup password must satisfy
var PasswordPolicy = map[string]string{
	"minLength":         "8 characters minimum",
	"containsUppercase": "At least 1 uppercase character",
	"containsLowercase": "At least 1 lowercase character",
	"containsNumber":    "At least 1 number",
	"noSpaces":          "No spaces are allowed",
}

// PasswordViolations returns the PasswordPolicy keys the password breaks
func PasswordViolations(password string) []string {
	var upper, lower, digit, space bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
			space = true
		}
	}

	var violations []string
	if len([]rune(password)) < minPasswordLength {
		violations = append(violations, "minLength")
	}
	if !upper {
		violations = append(violations, "containsUppercase")
	}
	if !lower {
		violations = append(violations, "containsLowercase")
	}
	if !digit {
		violations = append(violations, "containsNumber")
	}
	if space {
		violations = append(violations, "noSpaces")
	}
	return violations
}

// CustomerService handles signup, login and sessions
type CustomerService struct {
	customers CustomerRepository
	sessions  session.Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(customers CustomerRepository, sessions session.Store, publisher EventPublisher) *CustomerService {
	return &CustomerService{
		customers: customers,
		sessions:  sessions,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SignupRequest represents a new account
type SignupRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup registers a customer with a bcrypt-hashed password
func (s *CustomerService) Signup(ctx context.Context, req *SignupRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Signup")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if email == "" || req.Password == "" || firstName == "" || lastName == "" {
		return nil, ErrInvalidInput
	}

	if violations := PasswordViolations(req.Password); len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(violations, ", "))
	}

	existing, err := s.customers.GetCustomerByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	customer := &models.Customer{
		Email:     email,
		Password:  string(hash),
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.customers.CreateCustomer(ctx, customer); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	util.CustomersRegisteredTotal.Inc()
	s.logger.Info("Customer registered", zap.Int64("customer_id", customer.ID))

	if s.publisher != nil {
		event := &models.CustomerRegisteredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCustomerRegistered,
				Timestamp: time.Now(),
			},
			CustomerID: customer.ID,
			Email:      customer.Email,
		}
		if err := s.publisher.PublishCustomerRegistered(ctx, event); err != nil {
			s.logger.Error("Failed to publish CustomerRegistered event", zap.Error(err))
		}
	}

	return customer, nil
}

// Login verifies credentials and opens a session. It returns the new session id.
func (s *CustomerService) Login(ctx context.Context, req *LoginRequest) (string, *session.UserContext, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Login")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return "", nil, ErrInvalidInput
	}

	customer, err := s.customers.GetCustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		util.LoginsTotal.WithLabelValues("unknown_user").Inc()
		return "", nil, ErrUserNotFound
	}
	if err != nil {
		util.SpanError(span, err)
		return "", nil, fmt.Errorf("failed to load customer: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(req.Password)); err != nil {
		util.LoginsTotal.WithLabelValues("bad_password").Inc()
		return "", nil, ErrInvalidCredentials
	}

	user := &session.UserContext{
		CustomerID: customer.ID,
		Email:      customer.Email,
		FirstName:  customer.FirstName,
		LastName:   customer.LastName,
	}

	sessionID := session.NewID()
	if err := s.sessions.Set(ctx, sessionID, user); err != nil {
		util.SpanError(span, err)
		return "", nil, err
	}

	util.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Customer logged in", zap.Int64("customer_id", customer.ID))
	return sessionID, user, nil
}

// Logout destroys the session; unknown ids are not an error
func (s *CustomerService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

// CurrentSession returns the logged-in customer for a session id
func (s *CustomerService) CurrentSession(ctx context.Context, sessionID string) (*session.UserContext, error) {
	user, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotLoggedIn
	}
	return user, nil
}
