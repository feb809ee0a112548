package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// ProgressEvent is one ingestion status update, fanned out over Redis
// pub/sub so any API instance can stream it to subscribed clients.
type ProgressEvent struct {
	DocumentSetID uuid.UUID `json:"documentSetId"`
	DocumentID    uuid.UUID `json:"documentId"`
	MemberID      uuid.UUID `json:"memberId"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	ChunksCreated int       `json:"chunksCreated,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// ProgressBus publishes and subscribes ingestion progress, keyed by
// document set. Publish failures are the caller's to log and swallow:
// progress streaming is best effort and never fails a job.
type ProgressBus interface {
	Publish(ctx context.Context, ev ProgressEvent) error
	Subscribe(ctx context.Context, documentSetID uuid.UUID) (<-chan ProgressEvent, func(), error)
	Close() error
}

type progressBus struct {
	log *logger.Logger
	rdb *redis.Client
}

func NewProgressBus(rdb *redis.Client, baseLog *logger.Logger) ProgressBus {
	return &progressBus{
		log: baseLog.With("service", "ProgressBus"),
		rdb: rdb,
	}
}

func channelFor(documentSetID uuid.UUID) string {
	return fmt.Sprintf("doc-sync:%s", documentSetID)
}

func (b *progressBus) Publish(ctx context.Context, ev ProgressEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	return b.rdb.Publish(ctx, channelFor(ev.DocumentSetID), payload).Err()
}

// Subscribe returns a channel of events for one document set. The returned
// cancel func must be called to release the underlying subscription. The
// channel closes when the context ends or cancel is called.
func (b *progressBus) Subscribe(ctx context.Context, documentSetID uuid.UUID) (<-chan ProgressEvent, func(), error) {
	sub := b.rdb.Subscribe(ctx, channelFor(documentSetID))
	// Force the subscription to establish before we return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe progress channel: %w", err)
	}

	out := make(chan ProgressEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				var ev ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("Dropping malformed progress event", "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					// Slow consumer; drop rather than block the pump.
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

func (b *progressBus) Close() error {
	return nil
}
