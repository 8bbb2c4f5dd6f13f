package watcher

import (
	"context"
	"time"

	"github.com/mettamodeler/mettasim/pkg/logging"
)

// Debouncer batches rapid file system events so a burst of saves triggers
// one re-run instead of many
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// run accumulates events until the input goes quiet or maxWait elapses.
// Both timers start stopped so neither can fire before the first event
// arrives.
func (d *Debouncer) run(ctx context.Context) {
	var (
		accumulated []string
		seen        = make(map[string]bool)
	)

	quietTimer := time.NewTimer(d.quietPeriod)
	quietTimer.Stop()
	maxWaitTimer := time.NewTimer(d.maxWait)
	maxWaitTimer.Stop()

	flush := func() {
		quietTimer.Stop()
		maxWaitTimer.Stop()

		if len(accumulated) == 0 {
			return
		}

		logging.Debug("flushing accumulated file changes", "count", len(accumulated))

		d.output <- ChangeEvent{
			Paths:     accumulated,
			Timestamp: time.Now(),
		}

		accumulated = nil
		seen = make(map[string]bool)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			close(d.output)
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				close(d.output)
				return
			}

			first := len(accumulated) == 0
			for _, p := range event.Paths {
				if !seen[p] {
					seen[p] = true
					accumulated = append(accumulated, p)
				}
			}

			quietTimer.Reset(d.quietPeriod)
			// The max-wait clock starts with the first event of a burst and
			// is not pushed back by later ones
			if first {
				maxWaitTimer.Reset(d.maxWait)
			}

		case <-quietTimer.C:
			flush()

		case <-maxWaitTimer.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
