package broadcast

import "errors"

// Sentinel error kinds for this package.
var (
	ErrClosed      = errors.New("broadcaster closed")
	ErrUnknownKind = errors.New("unknown event kind")
	ErrNATSConnect = errors.New("nats connect failed")
)
