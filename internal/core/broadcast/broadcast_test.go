package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

func event(productID string, level int) domain.StockUpdateEvent {
	return domain.StockUpdateEvent{
		ProductID:     productID,
		Success:       true,
		Message:       "stock updated successfully",
		NewStockLevel: level,
		Timestamp:     time.Now().UTC(),
	}
}

func recvOne(t *testing.T, ch <-chan domain.StockUpdateEvent) domain.StockUpdateEvent {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.StockUpdateEvent{}
}

func TestSubscribeFiltersByProduct(t *testing.T) {
	b := New(4, zerolog.Nop())
	defer b.Close()

	ch, cancel := b.Subscribe("p1")
	defer cancel()

	b.Publish(event("p2", 5))
	b.Publish(event("p1", 7))

	evt := recvOne(t, ch)
	if evt.ProductID != "p1" || evt.NewStockLevel != 7 {
		t.Errorf("expected p1 level 7, got %s level %d", evt.ProductID, evt.NewStockLevel)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected extra event for %s", evt.ProductID)
	default:
	}
}

func TestSubscribeAllProducts(t *testing.T) {
	b := New(4, zerolog.Nop())
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(event("p1", 1))
	b.Publish(event("p2", 2))

	if evt := recvOne(t, ch); evt.ProductID != "p1" {
		t.Errorf("expected p1, got %s", evt.ProductID)
	}
	if evt := recvOne(t, ch); evt.ProductID != "p2" {
		t.Errorf("expected p2, got %s", evt.ProductID)
	}
}

func TestCancelDoesNotDisturbOthers(t *testing.T) {
	b := New(4, zerolog.Nop())
	defer b.Close()

	ch1, cancel1 := b.Subscribe("p1")
	ch2, cancel2 := b.Subscribe("p1")
	defer cancel2()

	cancel1()
	cancel1() // idempotent

	if _, ok := <-ch1; ok {
		t.Error("expected cancelled stream to be closed")
	}

	b.Publish(event("p1", 3))
	if evt := recvOne(t, ch2); evt.NewStockLevel != 3 {
		t.Errorf("surviving subscriber missed event, got level %d", evt.NewStockLevel)
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := New(2, zerolog.Nop())
	defer b.Close()

	ch, cancel := b.Subscribe("p1")
	defer cancel()

	// Publish more than the buffer holds without consuming. Publish must not
	// block and the newest events must win.
	for i := 1; i <= 5; i++ {
		b.Publish(event("p1", i))
	}

	if evt := recvOne(t, ch); evt.NewStockLevel != 4 {
		t.Errorf("expected oldest surviving level 4, got %d", evt.NewStockLevel)
	}
	if evt := recvOne(t, ch); evt.NewStockLevel != 5 {
		t.Errorf("expected level 5, got %d", evt.NewStockLevel)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(4, zerolog.Nop())
	ch, cancel := b.Subscribe("p1")
	defer cancel()

	b.Close()
	b.Publish(event("p1", 1)) // must not panic

	if _, ok := <-ch; ok {
		t.Error("expected stream closed after broadcaster close")
	}

	ch2, cancel2 := b.Subscribe("p1")
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Error("expected subscribe after close to return a closed stream")
	}
}
