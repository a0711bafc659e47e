package ingest

import "errors"

// ErrStopped is returned by the message handler for deliveries that
// arrive after Stop has begun closing the channel.
var ErrStopped = errors.New("ingestor stopped")
