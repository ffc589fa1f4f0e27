package handlers

import (
	"context"
	"time"

	"github.com/OCAP2/firecontrol/internal/countdown"
	"github.com/OCAP2/firecontrol/internal/dispatcher"
)

// Callback function names raised while a round is in flight.
const (
	CallbackTick   = ":COUNTDOWN:TICK:"
	CallbackAlert  = ":COUNTDOWN:ALERT:"
	CallbackSplash = ":COUNTDOWN:SPLASH:"
)

// handleCountdown starts the time-to-impact countdown for the last solved
// shot, replacing any countdown already running. Arma is told about whole
// seconds, the alert and the splash through extension callbacks.
func (s *Service) handleCountdown(dispatcher.Event) (any, error) {
	shot, ok := s.ctx.LastShot()
	if !ok {
		return nil, ErrNoShot
	}

	s.countdownMu.Lock()
	defer s.countdownMu.Unlock()
	s.stopCountdownLocked()

	opts := []countdown.Option{countdown.WithAlertOffset(s.deps.AlertOffset)}
	if s.deps.tickInterval > 0 {
		opts = append(opts, countdown.WithInterval(s.deps.tickInterval))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	steps := countdown.Run(ctx, shot.Readout.FlightTime(), opts...)

	s.cancelCountdown = cancel
	s.countdownDone = done

	go func() {
		defer close(done)
		for step := range steps {
			s.announce(step)
		}
	}()

	return shot.Readout.TimeOnTarget, nil
}

func (s *Service) handleCountdownStop(dispatcher.Event) (any, error) {
	s.stopCountdown()
	return "ok", nil
}

// stopCountdown cancels the running countdown and waits for it to finish.
func (s *Service) stopCountdown() {
	s.countdownMu.Lock()
	defer s.countdownMu.Unlock()
	s.stopCountdownLocked()
}

func (s *Service) stopCountdownLocked() {
	if s.cancelCountdown == nil {
		return
	}
	s.cancelCountdown()
	<-s.countdownDone
	s.cancelCountdown, s.countdownDone = nil, nil
}

func (s *Service) announce(step countdown.Step) {
	var function string
	switch {
	case step.Event == countdown.Splash:
		function = CallbackSplash
	case step.Event == countdown.Alert:
		function = CallbackAlert
	case step.Remaining%time.Second == 0:
		function = CallbackTick
	default:
		return
	}

	if step.Event != countdown.Tick {
		s.logger().Info("Countdown", "event", step.Event.String(), "remaining", step.Display())
	}
	if s.deps.Callback == nil {
		return
	}
	if err := s.deps.Callback(function, step.Display()); err != nil {
		s.logger().Debug("Countdown callback failed", "function", function, "error", err)
	}
}

// Close stops any running countdown.
func (s *Service) Close() {
	s.stopCountdown()
}
