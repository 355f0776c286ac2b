package broadcast

import (
	"github.com/nats-io/nats.go"
	"github.com/okian/tabroom/pkg/logger"
)

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBuffer sets the per-subscriber buffer. Events beyond it are dropped.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets the broadcaster logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.log = l
		}
	}
}

// WithNATS republishes every event on subject.<tournament id>.
func WithNATS(conn *nats.Conn, subject string) Option {
	return func(b *Broadcaster) {
		b.nc = conn
		if subject != "" {
			b.subject = subject
		}
	}
}
