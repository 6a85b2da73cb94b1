package providers

import "time"

const (
	// shutdownTimeout bounds client setup and teardown for remote sinks.
	shutdownTimeout = 30 * time.Second
)
