// Package bus is outbound message transport.
package bus

import (
	"context"

	"github.com/temoto/dsmr-bridge/measure"
)

// Publisher owns one broker connection, from Connect to Disconnect.
// Not reusable after Disconnect or background failure.
// Publish calls are sequential, caller must not call Publish concurrently.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, m measure.Message) error
	Disconnect() error
	// Done is closed when background connection task (reader, pinger) fails.
	Done() <-chan struct{}
	// Err is the reason Done was closed, nil before that.
	Err() error
}
