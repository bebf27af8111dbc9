package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

// EventRelay forwards stock-change events from a broadcaster subscription to
// a Kafka topic, keyed by product id so per-product ordering is preserved.
// Publish failures are logged and swallowed; they never affect the
// adjustment that produced the event.
type EventRelay struct {
	writer *kafka.Writer
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewEventRelay(brokers []string, topic string, logger zerolog.Logger) *EventRelay {
	return &EventRelay{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			WriteTimeout:           10 * time.Second,
		},
		logger: logger,
	}
}

// Start consumes events until the channel closes.
func (r *EventRelay) Start(events <-chan domain.StockUpdateEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for evt := range events {
			r.publish(evt)
		}
	}()
}

// Close waits for the relay loop to drain and releases the writer. The
// caller must cancel the subscription feeding Start first.
func (r *EventRelay) Close() error {
	r.wg.Wait()
	return r.writer.Close()
}

func (r *EventRelay) publish(evt domain.StockUpdateEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal stock event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ProductID),
		Value: data,
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("product_id", evt.ProductID).
			Msg("failed to publish stock event to kafka")
	}
}
