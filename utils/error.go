package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound    = errors.New("record not found")
	ErrorInsufficientStock = errors.New("insufficient stock")
	ErrorInvalidPayload    = errors.New("invalid payload")

	// ErrorFatalConfig marks configuration failures (missing default customer or
	// organization). The system is unusable until seed data is corrected, so
	// callers log these in addition to returning a graceful message.
	ErrorFatalConfig = errors.New("fatal configuration error")
)

// ProductNotFoundError carries the unresolved product name so the dispatcher
// can echo it back to the operator.
type ProductNotFoundError struct {
	Name string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with name %s not found. Please send correct product name", e.Name)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrorRecordNotFound
}

// InsufficientStockError reports the product whose stock cannot cover the
// requested quantity. Quantities are preformatted strings so the message
// renders without trailing decimal noise.
type InsufficientStockError struct {
	ProductName string
	Requested   string
	Available   string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrorInsufficientStock
}
