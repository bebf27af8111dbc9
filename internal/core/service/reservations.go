package service

import (
	"sync"
	"time"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

// ReservationBook tracks in-flight stock holds, indexed by product id and
// grouped by transaction id. Expired holds are excluded from availability
// math at read time and harvested by the service's expiry sweep, which
// restores the debited stock.
type ReservationBook struct {
	mu        sync.Mutex
	byProduct map[string][]domain.StockReservation
}

func NewReservationBook() *ReservationBook {
	return &ReservationBook{byProduct: make(map[string][]domain.StockReservation)}
}

func (b *ReservationBook) Add(r domain.StockReservation) {
	b.mu.Lock()
	b.byProduct[r.ProductID] = append(b.byProduct[r.ProductID], r)
	b.mu.Unlock()
}

// Remove drops a single reservation by id.
func (b *ReservationBook) Remove(reservationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for productID, list := range b.byProduct {
		for i, r := range list {
			if r.ReservationID == reservationID {
				b.byProduct[productID] = append(list[:i], list[i+1:]...)
				b.compact(productID)
				return
			}
		}
	}
}

// ReservedQuantity sums the unexpired holds for a product. Expired entries
// are left in place for the sweep to restore.
func (b *ReservationBook) ReservedQuantity(productID string, now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, r := range b.byProduct[productID] {
		if !r.Expired(now) {
			total += r.Quantity
		}
	}
	return total
}

// TakeTransaction removes and returns all reservations for a transaction.
func (b *ReservationBook) TakeTransaction(transactionID string) []domain.StockReservation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var taken []domain.StockReservation
	for productID, list := range b.byProduct {
		kept := list[:0]
		for _, r := range list {
			if r.TransactionID == transactionID {
				taken = append(taken, r)
			} else {
				kept = append(kept, r)
			}
		}
		b.byProduct[productID] = kept
		b.compact(productID)
	}
	return taken
}

// TakeExpired removes and returns every reservation past its expiry.
func (b *ReservationBook) TakeExpired(now time.Time) []domain.StockReservation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expired []domain.StockReservation
	for productID, list := range b.byProduct {
		kept := list[:0]
		for _, r := range list {
			if r.Expired(now) {
				expired = append(expired, r)
			} else {
				kept = append(kept, r)
			}
		}
		b.byProduct[productID] = kept
		b.compact(productID)
	}
	return expired
}

// Len reports the number of reservations currently held, expired or not.
func (b *ReservationBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, list := range b.byProduct {
		n += len(list)
	}
	return n
}

// compact drops empty product buckets so the index does not grow with every
// product ever reserved. Caller must hold mu.
func (b *ReservationBook) compact(productID string) {
	if len(b.byProduct[productID]) == 0 {
		delete(b.byProduct, productID)
	}
}
