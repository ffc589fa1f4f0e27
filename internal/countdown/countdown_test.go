package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Step) []Step {
	t.Helper()
	var steps []Step
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return steps
			}
			steps = append(steps, s)
		case <-timeout:
			t.Fatal("countdown did not finish")
			return steps
		}
	}
}

func TestRun_CountsDownToSplash(t *testing.T) {
	steps := collect(t, Run(context.Background(), 1500*time.Millisecond, WithInterval(time.Millisecond)))

	require.Len(t, steps, 16)
	assert.Equal(t, 1500*time.Millisecond, steps[0].Remaining)
	assert.Equal(t, "1.5", steps[0].Display())
	assert.Equal(t, Tick, steps[0].Event)

	last := steps[len(steps)-1]
	assert.Equal(t, Splash, last.Event)
	assert.Equal(t, time.Duration(0), last.Remaining)
	assert.Equal(t, "0.0", last.Display())

	for i := 1; i < len(steps); i++ {
		assert.Equal(t, steps[i-1].Remaining-Resolution, steps[i].Remaining)
	}
}

func TestRun_AlertFiresOnce(t *testing.T) {
	steps := collect(t, Run(context.Background(), 2*time.Second,
		WithInterval(time.Millisecond),
		WithAlertOffset(500*time.Millisecond),
	))

	var alerts []Step
	for _, s := range steps {
		if s.Event == Alert {
			alerts = append(alerts, s)
		}
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, 500*time.Millisecond, alerts[0].Remaining)
}

func TestRun_SubResolutionAlertOffset(t *testing.T) {
	steps := collect(t, Run(context.Background(), 500*time.Millisecond,
		WithInterval(time.Millisecond),
		WithAlertOffset(50*time.Millisecond),
	))

	var alerts []Step
	for _, s := range steps {
		if s.Event == Alert {
			alerts = append(alerts, s)
		}
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, Resolution, alerts[0].Remaining)
	assert.Equal(t, Splash, steps[len(steps)-1].Event)
}

func TestRun_NoAlertWhenFlightShorterThanOffset(t *testing.T) {
	steps := collect(t, Run(context.Background(), 300*time.Millisecond,
		WithInterval(time.Millisecond),
		WithAlertOffset(time.Second),
	))
	for _, s := range steps {
		assert.NotEqual(t, Alert, s.Event)
	}
	assert.Equal(t, Splash, steps[len(steps)-1].Event)
}

func TestRun_AlertDisabled(t *testing.T) {
	steps := collect(t, Run(context.Background(), time.Second,
		WithInterval(time.Millisecond),
		WithAlertOffset(0),
	))
	for _, s := range steps {
		assert.NotEqual(t, Alert, s.Event)
	}
}

func TestRun_RoundsToResolution(t *testing.T) {
	steps := collect(t, Run(context.Background(), 249*time.Millisecond, WithInterval(time.Millisecond)))
	require.NotEmpty(t, steps)
	assert.Equal(t, 200*time.Millisecond, steps[0].Remaining)
}

func TestRun_ZeroFlightTime(t *testing.T) {
	steps := collect(t, Run(context.Background(), 0))
	require.Len(t, steps, 1)
	assert.Equal(t, Splash, steps[0].Event)

	steps = collect(t, Run(context.Background(), -time.Second))
	require.Len(t, steps, 1)
	assert.Equal(t, Splash, steps[0].Event)
}

func TestRun_CancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Run(ctx, time.Hour, WithInterval(time.Millisecond))

	first := <-ch
	assert.Equal(t, time.Hour, first.Remaining)
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			assert.NotEqual(t, Splash, s.Event)
		case <-timeout:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "tick", Tick.String())
	assert.Equal(t, "alert", Alert.String())
	assert.Equal(t, "splash", Splash.String())
	assert.Equal(t, "unknown", Event(42).String())
}
