package app

import (
	"context"
	"time"

	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/state"
)

const defaultPollInterval = time.Second

// StatusSource is implemented by *logtail.Reader.
type StatusSource interface {
	Status() logtail.Status
}

// TransportHealth is implemented by *presence.Handler.
type TransportHealth interface {
	Connected() bool
	Err() error
}

// RunPoller copies reader and transport status into the store at a fixed
// cadence until ctx is cancelled.
func RunPoller(ctx context.Context, store *state.Store, readers []StatusSource, transport TransportHealth, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refresh(store, readers, transport)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refresh(store *state.Store, readers []StatusSource, transport TransportHealth) {
	statuses := make([]logtail.Status, 0, len(readers))
	for _, r := range readers {
		statuses = append(statuses, r.Status())
	}
	var (
		connected bool
		err       error
	)
	if transport != nil {
		connected = transport.Connected()
		err = transport.Err()
	}
	store.Update(statuses, connected, err)
}
