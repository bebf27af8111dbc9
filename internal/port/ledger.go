package port

import (
	"context"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

// Ledger is the durable, transactional store of authoritative stock counts.
type Ledger interface {
	// GetStockLevel returns the current stock for a product, or
	// domain.ErrProductNotFound if the product is unknown.
	GetStockLevel(ctx context.Context, productID string) (int, error)

	// UpdateStockLevel applies a delta as a single atomic read-modify-write
	// and returns the new level. The write must leave stock unchanged on
	// failure and must never commit a negative level.
	UpdateStockLevel(ctx context.Context, productID string, delta int, transactionID string) (int, error)

	// GetProduct returns the full product row, or nil if absent.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ProductExists reports whether the product id is known to the ledger.
	ProductExists(ctx context.Context, productID string) (bool, error)
}
