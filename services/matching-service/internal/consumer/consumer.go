package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/studymatch/studymatch/libs/kafkax"
	"github.com/studymatch/studymatch/services/matching-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotHandler applies one owner's full availability snapshot.
type SnapshotHandler func(ctx context.Context, ownerID string, slots []storage.SnapshotSlot) error

// Deduper records event ids so redelivered messages are applied at most
// once. Record returns false for an id it has already seen.
type Deduper interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

// Consumer reads availability snapshot events, deduplicates them by event
// id and hands each decoded snapshot to the handler. Malformed payloads are
// logged and skipped; they would fail identically on every redelivery.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	dedupe  Deduper
	handler SnapshotHandler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, dedupe Deduper, cfg Config, handler SnapshotHandler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		dedupe:  dedupe,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)
		if err := c.processMessage(ctxSpan, msg); err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// processMessage applies one message: dedupe by event id when one is
// present, decode the snapshot, hand it off. Errors are returned for span
// recording; the message is consumed either way.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	// An id-less message cannot be deduplicated; recording "" would make
	// every later id-less message a false duplicate, so process it as-is.
	if meta.EventID == "" {
		c.logger.Warn("event without id header; processing without dedupe", "topic", msg.Topic)
	} else {
		fresh, err := c.dedupe.Record(ctx, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			return err
		}
		if !fresh {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return nil
		}
	}

	var payload struct {
		OwnerID string                 `json:"owner_id"`
		Slots   []storage.SnapshotSlot `json:"slots"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		c.logger.Error("invalid snapshot payload", "err", err, "topic", msg.Topic, "event_id", meta.EventID)
		return nil
	}
	if payload.OwnerID == "" {
		c.logger.Error("snapshot event without owner_id", "topic", msg.Topic, "event_id", meta.EventID)
		return nil
	}

	if err := c.handler(ctx, payload.OwnerID, payload.Slots); err != nil {
		c.logger.Error("snapshot handler error", "err", err, "owner_id", payload.OwnerID, "event_id", meta.EventID)
		return err
	}
	return nil
}
