package dispatcher

import "go.opentelemetry.io/otel"

const instrumentationName = "github.com/OCAP2/firecontrol/internal/dispatcher"

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	return NewWithMeter(logger, otel.Meter(instrumentationName))
}
