package standings

import "errors"

// ErrInvalidConfiguration reports a metric list that cannot be computed.
var ErrInvalidConfiguration = errors.New("invalid standings configuration")
