package port

import "context"

// StockCache is a read-through cache over Ledger stock levels with a bounded
// TTL. Set is the mandatory write-through step after a successful ledger
// write; relying on TTL expiry alone would leave stale reads in the window
// between a commit and the next expiry.
type StockCache interface {
	// Get returns the cached level if present and unexpired, otherwise
	// fetches from the ledger, stores the result, and returns it.
	Get(ctx context.Context, productID string) (int, error)

	// Set overwrites the cached level with a fresh authoritative value.
	Set(ctx context.Context, productID string, level int) error

	// Invalidate drops the cached entry for a product, if any.
	Invalidate(ctx context.Context, productID string) error
}
