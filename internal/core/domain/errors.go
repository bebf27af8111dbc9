package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock is a business-rule rejection, surfaced as a failed
	// StockUpdateEvent rather than an error on the adjust path.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrLockTimeout means the per-product lock was not acquired within the
	// configured bound. The operation aborts with no partial effects.
	ErrLockTimeout = errors.New("stock lock acquisition timed out")

	// ErrNoReservationFound means a commit referenced an unknown transaction.
	ErrNoReservationFound = errors.New("no reservation found for transaction")

	// ErrProductNotFound means the ledger has no row for the product id.
	ErrProductNotFound = errors.New("product not found")
)

// StockError wraps lock-timeout and storage failures from the stock
// coordination paths so callers can make a single retry decision.
type StockError struct {
	Op        string
	ProductID string
	Err       error
}

func (e *StockError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("stock %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stock %s %s: %v", e.Op, e.ProductID, e.Err)
}

func (e *StockError) Unwrap() error { return e.Err }
