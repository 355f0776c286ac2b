// Package broadcast fans out UI-refresh notifications. Delivery is best
// effort: slow subscribers lose events and re-read state on reconnect.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
)

const (
	topic          = "tabroom.events"
	defaultBuffer  = 64
	defaultSubject = "tabroom.broadcast"
)

// Broadcaster publishes Events to in-process subscribers and, optionally, NATS.
type Broadcaster struct {
	pubsub  *gochannel.GoChannel
	nc      *nats.Conn
	subject string
	buffer  int
	log     logger.Logger
	closed  atomic.Bool
	dropped atomic.Int64
}

// New creates a Broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		buffer:  defaultBuffer,
		subject: defaultSubject,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Default().Named("broadcast")
	}
	b.pubsub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(b.buffer),
	}, newWatermillLogger(b.log))
	return b
}

// ConnectNATS dials the bridge connection.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("tabroom"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNATSConnect, err)
	}
	return nc, nil
}

// Publish sends ev to every subscriber of its tournament. It never blocks
// on subscribers.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := ev.validate(); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("tournament_id", ev.TournamentID)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	metrics.RecordBroadcast(string(ev.Kind))

	if b.nc != nil {
		if err := b.nc.Publish(b.subject+"."+ev.TournamentID, payload); err != nil {
			b.log.Warn(ctx, "nats republish failed", logger.String("kind", string(ev.Kind)), logger.Error(err))
		}
	}
	return nil
}

// Subscribe streams the events of one tournament until ctx ends.
func (b *Broadcaster) Subscribe(ctx context.Context, tournamentID string) (<-chan Event, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	out := make(chan Event, b.buffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			msg.Ack()
			if msg.Metadata.Get("tournament_id") != tournamentID {
				continue
			}
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Warn(ctx, "dropping undecodable event", logger.Error(err))
				continue
			}
			select {
			case out <- ev:
			default:
				b.dropped.Add(1)
			}
		}
	}()
	return out, nil
}

// Dropped counts events lost to full subscriber buffers.
func (b *Broadcaster) Dropped() int64 { return b.dropped.Load() }

// Close stops every subscription and drains the NATS bridge.
func (b *Broadcaster) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.log.Warn(context.Background(), "nats drain failed", logger.Error(err))
		}
	}
	return b.pubsub.Close()
}
