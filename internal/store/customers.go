package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

// CreateCustomer inserts a customer; the password must already be hashed
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (email, password, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING customer_id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		customer.Email, customer.Password, customer.FirstName, customer.LastName,
	).Scan(&customer.ID, &customer.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer %s: %w", customer.Email, ErrDuplicate)
	}
	return err
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE customer_id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByEmail retrieves a customer by email
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
