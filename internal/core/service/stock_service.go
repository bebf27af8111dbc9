package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/broadcast"
	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
	"github.com/sirazahmedsyed/product-stock-service/internal/core/keylock"
	"github.com/sirazahmedsyed/product-stock-service/internal/port"
)

const (
	msgStockUpdated         = "Stock updated successfully"
	msgInsufficientStock    = "Insufficient stock available"
	msgInsufficientReserve  = "Insufficient stock for reservation"
	msgReservationCommitted = "Reservation committed successfully"
	msgReservationCancelled = "Reservation cancelled successfully"
)

// Config bounds the coordination engine's timing behaviour.
type Config struct {
	// LockTimeout bounds per-product lock acquisition. Default 30s.
	LockTimeout time.Duration
	// ReservationTTL is how long a hold stays valid. Default 15m.
	ReservationTTL time.Duration
	// SweepInterval is the cadence of the expiry sweep that restores stock
	// held by expired reservations. Zero disables the background sweep.
	SweepInterval time.Duration
	// EventBuffer is the per-subscriber event buffer size.
	EventBuffer int
}

func (c Config) withDefaults() Config {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 30 * time.Second
	}
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = 15 * time.Minute
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = broadcast.DefaultBufferSize
	}
	return c
}

// StockService coordinates concurrent reads, adjustments, and reservations
// over a single authoritative ledger. Operations on the same product are
// serialized through a per-product lock; operations on different products
// proceed in parallel.
type StockService struct {
	ledger       port.Ledger
	cache        port.StockCache
	locks        *keylock.KeyedLock
	broadcaster  *broadcast.Broadcaster
	reservations *ReservationBook
	logger       zerolog.Logger
	cfg          Config

	now   func() time.Time
	newID func() string

	mu         sync.RWMutex
	thresholds map[string]int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(ledger port.Ledger, cache port.StockCache, logger zerolog.Logger, cfg Config) *StockService {
	cfg = cfg.withDefaults()
	s := &StockService{
		ledger:       ledger,
		cache:        cache,
		locks:        keylock.New(),
		broadcaster:  broadcast.New(cfg.EventBuffer, logger),
		reservations: NewReservationBook(),
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
		newID:        uuid.NewString,
		thresholds:   make(map[string]int),
		done:         make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.runSweeper(cfg.SweepInterval)
	}
	return s
}

// Close stops the expiry sweeper and terminates all subscriber streams.
func (s *StockService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.broadcaster.Close()
	})
}

// Adjust applies a stock delta under the per-product lock: read through the
// cache, validate non-negativity, write through the ledger, refresh the
// cache, broadcast the event, and check the low-stock threshold. A
// business-rule rejection comes back as a failed event with a nil error;
// lock timeouts and storage failures come back as a *domain.StockError.
func (s *StockService) Adjust(ctx context.Context, productID string, delta int, transactionID string) (domain.StockUpdateEvent, error) {
	if transactionID == "" {
		transactionID = s.newID()
	}

	handle, err := s.locks.Acquire(ctx, productID, s.cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, keylock.ErrTimeout) {
			err = domain.ErrLockTimeout
		}
		adjustmentsTotal.WithLabelValues("error").Inc()
		return domain.StockUpdateEvent{}, &domain.StockError{Op: "adjust", ProductID: productID, Err: err}
	}
	defer handle.Release()

	current, err := s.cache.Get(ctx, productID)
	if err != nil {
		adjustmentsTotal.WithLabelValues("error").Inc()
		return domain.StockUpdateEvent{}, &domain.StockError{Op: "adjust", ProductID: productID, Err: err}
	}

	if current+delta < 0 {
		adjustmentsTotal.WithLabelValues("rejected").Inc()
		return s.failedEvent(productID, msgInsufficientStock, current), nil
	}

	newLevel, err := s.ledger.UpdateStockLevel(ctx, productID, delta, transactionID)
	if errors.Is(err, domain.ErrInsufficientStock) {
		// The storage-level guard fired; the lock makes this unreachable in
		// practice but the rejection shape must match the validation above.
		adjustmentsTotal.WithLabelValues("rejected").Inc()
		return s.failedEvent(productID, msgInsufficientStock, current), nil
	}
	if err != nil {
		adjustmentsTotal.WithLabelValues("error").Inc()
		return domain.StockUpdateEvent{}, &domain.StockError{Op: "adjust", ProductID: productID, Err: err}
	}

	// Write-through: the cache must carry the committed value immediately,
	// not wait for TTL expiry.
	if err := s.cache.Set(ctx, productID, newLevel); err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("cache write-through failed")
		if err := s.cache.Invalidate(ctx, productID); err != nil {
			s.logger.Error().Err(err).Str("product_id", productID).Msg("cache invalidate failed")
		}
	}

	evt := domain.StockUpdateEvent{
		ProductID:     productID,
		Success:       true,
		Message:       msgStockUpdated,
		NewStockLevel: newLevel,
		Timestamp:     s.now().UTC(),
	}
	s.publish(evt)
	s.checkLowStock(productID, newLevel)

	adjustmentsTotal.WithLabelValues("success").Inc()
	return evt, nil
}

// GetStock returns the current stock level through the cache.
func (s *StockService) GetStock(ctx context.Context, productID string) (int, error) {
	level, err := s.cache.Get(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, &domain.StockError{Op: "get_stock", ProductID: productID, Err: err}
	}
	return level, nil
}

// GetProduct returns the full product row from the ledger.
func (s *StockService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.ledger.GetProduct(ctx, productID)
	if err != nil {
		return nil, &domain.StockError{Op: "get_product", ProductID: productID, Err: err}
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

// IsAvailable reports whether the product can satisfy the required quantity
// once unexpired reservations are subtracted. The check is best-effort and
// not serialized against concurrent adjustments.
func (s *StockService) IsAvailable(ctx context.Context, productID string, required int) (bool, error) {
	current, err := s.GetStock(ctx, productID)
	if err != nil {
		return false, err
	}
	reserved := s.reservations.ReservedQuantity(productID, s.now())
	return current-reserved >= required, nil
}

// Reserve places a hold on stock: it records a liability and immediately
// debits the ledger through Adjust, so the hold is backed by real stock. The
// liability record keeps concurrent availability checks from double-counting.
func (s *StockService) Reserve(ctx context.Context, productID string, quantity int, transactionID string) (domain.StockUpdateEvent, error) {
	if quantity <= 0 {
		return domain.StockUpdateEvent{}, &domain.StockError{
			Op:        "reserve",
			ProductID: productID,
			Err:       fmt.Errorf("reservation quantity must be positive, got %d", quantity),
		}
	}

	current, err := s.GetStock(ctx, productID)
	if err != nil {
		return domain.StockUpdateEvent{}, err
	}
	reserved := s.reservations.ReservedQuantity(productID, s.now())
	if current-reserved < quantity {
		return s.failedEvent(productID, msgInsufficientReserve, current), nil
	}

	reservation := domain.StockReservation{
		ReservationID: s.newID(),
		ProductID:     productID,
		Quantity:      quantity,
		TransactionID: transactionID,
		ExpiresAt:     s.now().Add(s.cfg.ReservationTTL),
	}
	s.reservations.Add(reservation)
	reservationsActive.Set(float64(s.reservations.Len()))

	evt, err := s.Adjust(ctx, productID, -quantity, transactionID)
	if err != nil || !evt.Success {
		// The debit did not land; drop the liability so availability math
		// stays honest.
		s.reservations.Remove(reservation.ReservationID)
		reservationsActive.Set(float64(s.reservations.Len()))
	}
	return evt, err
}

// Commit finalizes a transaction's reservations. The stock was already
// debited at reserve time, so committing only discharges the liability.
func (s *StockService) Commit(ctx context.Context, transactionID string) (domain.StockUpdateEvent, error) {
	taken := s.reservations.TakeTransaction(transactionID)
	if len(taken) == 0 {
		return domain.StockUpdateEvent{}, &domain.StockError{Op: "commit", Err: domain.ErrNoReservationFound}
	}
	reservationsActive.Set(float64(s.reservations.Len()))

	return domain.StockUpdateEvent{
		Success:   true,
		Message:   msgReservationCommitted,
		Timestamp: s.now().UTC(),
	}, nil
}

// Cancel restores the debited stock for every reservation in the transaction
// and drops the records. A restore failure puts the record back so the
// expiry sweep retries it.
func (s *StockService) Cancel(ctx context.Context, transactionID string) (domain.StockUpdateEvent, error) {
	taken := s.reservations.TakeTransaction(transactionID)
	if len(taken) == 0 {
		return domain.StockUpdateEvent{}, &domain.StockError{Op: "cancel", Err: domain.ErrNoReservationFound}
	}

	for _, r := range taken {
		if _, err := s.Adjust(ctx, r.ProductID, r.Quantity, "cancel_"+transactionID); err != nil {
			s.logger.Error().Err(err).
				Str("product_id", r.ProductID).
				Str("transaction_id", transactionID).
				Msg("failed to restore stock on cancel, deferring to expiry sweep")
			s.reservations.Add(r)
		}
	}
	reservationsActive.Set(float64(s.reservations.Len()))

	return domain.StockUpdateEvent{
		Success:   true,
		Message:   msgReservationCancelled,
		Timestamp: s.now().UTC(),
	}, nil
}

// Subscribe returns a live stream of successful stock-change events for the
// given products (all products when empty) and a cancel function.
func (s *StockService) Subscribe(productIDs ...string) (<-chan domain.StockUpdateEvent, func()) {
	return s.broadcaster.Subscribe(productIDs...)
}

// SetThreshold registers or replaces the low-stock threshold for a product.
func (s *StockService) SetThreshold(productID string, minimumLevel int) {
	s.mu.Lock()
	s.thresholds[productID] = minimumLevel
	s.mu.Unlock()
}

// LowStockProducts scans every registered threshold and returns the products
// whose current stock is at or below it.
func (s *StockService) LowStockProducts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	thresholds := make(map[string]int, len(s.thresholds))
	for productID, minimum := range s.thresholds {
		thresholds[productID] = minimum
	}
	s.mu.RUnlock()

	low := make([]string, 0, len(thresholds))
	for productID, minimum := range thresholds {
		level, err := s.cache.Get(ctx, productID)
		if errors.Is(err, domain.ErrProductNotFound) {
			s.logger.Warn().Str("product_id", productID).Msg("threshold registered for unknown product")
			continue
		}
		if err != nil {
			return nil, &domain.StockError{Op: "low_stock_scan", ProductID: productID, Err: err}
		}
		if level <= minimum {
			low = append(low, productID)
		}
	}
	return low, nil
}

func (s *StockService) publish(evt domain.StockUpdateEvent) {
	s.broadcaster.Publish(evt)
	eventsPublishedTotal.Inc()
}

func (s *StockService) checkLowStock(productID string, newLevel int) {
	s.mu.RLock()
	threshold, ok := s.thresholds[productID]
	s.mu.RUnlock()
	if ok && newLevel <= threshold {
		lowStockAlertsTotal.Inc()
		s.logger.Warn().
			Str("product_id", productID).
			Int("stock_level", newLevel).
			Int("threshold", threshold).
			Msg("low stock alert")
	}
}

func (s *StockService) failedEvent(productID, message string, level int) domain.StockUpdateEvent {
	return domain.StockUpdateEvent{
		ProductID:     productID,
		Success:       false,
		Message:       message,
		NewStockLevel: level,
		Timestamp:     s.now().UTC(),
	}
}

func (s *StockService) runSweeper(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepExpired(context.Background())
		}
	}
}

// sweepExpired restores the stock held by expired reservations. Exclusion
// from availability math already happened at read time; this returns the
// debited quantity to the ledger so it is not lost for good.
func (s *StockService) sweepExpired(ctx context.Context) {
	for _, r := range s.reservations.TakeExpired(s.now()) {
		if _, err := s.Adjust(ctx, r.ProductID, r.Quantity, "expire_"+r.TransactionID); err != nil {
			s.logger.Error().Err(err).
				Str("product_id", r.ProductID).
				Str("reservation_id", r.ReservationID).
				Msg("failed to restore expired reservation, will retry")
			s.reservations.Add(r)
			continue
		}
		s.logger.Info().
			Str("product_id", r.ProductID).
			Str("reservation_id", r.ReservationID).
			Int("quantity", r.Quantity).
			Msg("restored stock from expired reservation")
	}
	reservationsActive.Set(float64(s.reservations.Len()))
}
