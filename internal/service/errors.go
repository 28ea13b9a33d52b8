package service

import (
	"errors"
	"fmt"
	"strings"
)

// Purchase error kinds. Match them with errors.Is.
var (
	ErrMissingField     = errors.New("missing field")
	ErrMissingCart      = errors.New("missing cart")
	ErrInvalidCartEntry = errors.New("invalid cart entry")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrStore            = errors.New("store error")
)

// PurchaseError reports why a purchase was rejected. Fields names the
// offending request fields, cart tokens or product ids, depending on Kind.
type PurchaseError struct {
	Kind   error
	Fields []string
	Err    error
}

func (e *PurchaseError) Error() string {
	msg := e.Kind.Error()
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PurchaseError) Is(target error) bool {
	return target == e.Kind
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}

func newPurchaseError(kind error, fields ...string) *PurchaseError {
	return &PurchaseError{Kind: kind, Fields: fields}
}

func storeError(err error) *PurchaseError {
	return &PurchaseError{Kind: ErrStore, Err: err}
}

// Account and catalog errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = errors.New("password does not meet the required policy")
	ErrEmailInUse         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
)
