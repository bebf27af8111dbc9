package domain

import "time"

// StockReservation is a temporary hold on stock. The reserved quantity has
// already been debited from the ledger; the record tracks the liability so
// availability checks do not double-count, and so expiry can restore it.
type StockReservation struct {
	ReservationID string
	ProductID     string
	Quantity      int
	TransactionID string
	ExpiresAt     time.Time
}

func (r StockReservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
