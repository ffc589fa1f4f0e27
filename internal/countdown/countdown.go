// Package countdown counts down the time of flight of a fired round so the
// observer knows when to expect the splash.
package countdown

import (
	"context"
	"math"
	"strconv"
	"time"
)

// DefaultAlertOffset is how long before impact the splash warning is raised.
const DefaultAlertOffset = 15 * time.Second

// Resolution is the step the countdown displays and decrements by.
const Resolution = 100 * time.Millisecond

// Event classifies a Tick.
type Event int

const (
	// Tick is a plain countdown step.
	Tick Event = iota
	// Alert is raised once when the alert offset is reached.
	Alert
	// Splash is the final step, the round lands.
	Splash
)

func (e Event) String() string {
	switch e {
	case Tick:
		return "tick"
	case Alert:
		return "alert"
	case Splash:
		return "splash"
	default:
		return "unknown"
	}
}

// Step is one update of the countdown.
type Step struct {
	Remaining time.Duration
	Event     Event
}

// Display formats the remaining time in seconds with one decimal.
func (s Step) Display() string {
	return strconv.FormatFloat(s.Remaining.Seconds(), 'f', 1, 64)
}

type config struct {
	interval    time.Duration
	alertOffset time.Duration
}

// Option configures a countdown.
type Option func(*config)

// WithInterval sets the wall-clock time between steps. Each step still
// decrements by Resolution, so a shorter interval runs the countdown faster.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithAlertOffset sets how long before impact the Alert step is sent. Zero
// disables it. Offsets under Resolution alert on the last step before Splash.
func WithAlertOffset(d time.Duration) Option {
	return func(c *config) {
		c.alertOffset = d
	}
}

// Run counts down from flightTime, rounded to Resolution, and sends a Step
// for every decrement. The first step carries the full flight time, the last
// one is a Splash. The channel is closed when the countdown ends or ctx is done.
func Run(ctx context.Context, flightTime time.Duration, opts ...Option) <-chan Step {
	cfg := &config{
		interval:    Resolution,
		alertOffset: DefaultAlertOffset,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	steps := int64(math.Round(float64(flightTime) / float64(Resolution)))
	if steps < 0 {
		steps = 0
	}
	alertAt := int64(-1)
	if cfg.alertOffset > 0 {
		alertAt = max(int64(cfg.alertOffset/Resolution), 1)
	}

	out := make(chan Step)
	go func() {
		defer close(out)

		send := func(remaining int64, e Event) bool {
			select {
			case out <- Step{Remaining: time.Duration(remaining) * Resolution, Event: e}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if steps == 0 {
			send(0, Splash)
			return
		}
		if !send(steps, Tick) {
			return
		}

		ticker := time.NewTicker(cfg.interval)
		defer ticker.Stop()

		for remaining := steps; remaining > 0; {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			remaining--
			switch {
			case remaining == 0:
				send(0, Splash)
				return
			case remaining == alertAt:
				if !send(remaining, Alert) {
					return
				}
			default:
				if !send(remaining, Tick) {
					return
				}
			}
		}
	}()

	return out
}
