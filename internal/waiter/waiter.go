// Package waiter polls the Batch service until a workload reaches a
// terminal state, a deadline passes, or the caller cancels.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

var (
	// ErrTimeout is returned when the deadline passes before the target finishes.
	ErrTimeout = errors.New("timed out waiting")
	// ErrCancelled is returned when the context is cancelled while waiting.
	ErrCancelled = errors.New("wait cancelled")
)

// State is a position in the waiter state machine:
// Pending -> Running -> {Completed, TimedOut, Failed, Cancelled}.
type State string

const (
	Pending   State = "PENDING"
	Running   State = "RUNNING"
	Completed State = "COMPLETED"
	TimedOut  State = "TIMED_OUT"
	Failed    State = "FAILED"
	Cancelled State = "CANCELLED"
)

// IsTerminal returns true for the states Poll returns with.
func (s State) IsTerminal() bool {
	switch s {
	case Completed, TimedOut, Failed, Cancelled:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// validTransitions defines the allowed moves of the state machine.
var validTransitions = map[State][]State{
	Pending: {Running, Completed, TimedOut, Failed, Cancelled},
	Running: {Completed, TimedOut, Failed, Cancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Result summarizes one wait.
type Result struct {
	Terminal bool
	Reason   State
	Polls    int
	Elapsed  time.Duration
}

// Probe queries the remote service once and reports whether the target is done.
type Probe func(ctx context.Context) (done bool, err error)

// Waiter polls at a fixed Interval until a Probe reports done or Timeout elapses.
// A zero Clock uses the system clock; a nil Logger discards output.
type Waiter struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

// New returns a Waiter on the system clock.
func New(interval, timeout time.Duration, logger *slog.Logger) Waiter {
	return Waiter{Interval: interval, Timeout: timeout, Clock: RealClock{}, Logger: logger}
}

// WithTimeout returns a copy of w with a different deadline.
func (w Waiter) WithTimeout(d time.Duration) Waiter {
	w.Timeout = d
	return w
}

func (w Waiter) clock() Clock {
	if w.Clock == nil {
		return RealClock{}
	}
	return w.Clock
}

func (w Waiter) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.Logger.With("component", "waiter")
}

// Poll calls probe until it reports done, the deadline passes, probe fails,
// or ctx is cancelled. Elapsed time is checked before every poll, and the
// sleep between polls never overshoots the deadline.
func (w Waiter) Poll(ctx context.Context, target string, probe Probe) (Result, error) {
	clock := w.clock()
	log := w.logger().With("target", target)
	start := clock.Now()
	deadline := start.Add(w.Timeout)
	state := Pending
	res := Result{}

	finish := func(reason State) Result {
		res.Terminal = true
		res.Reason = reason
		res.Elapsed = clock.Now().Sub(start)
		log.Debug("wait finished", "state", reason, "polls", res.Polls, "elapsed", res.Elapsed)
		return res
	}

	log.Info("waiting", "timeout", w.Timeout, "interval", w.Interval)
	for {
		if err := ctx.Err(); err != nil {
			return finish(Cancelled), fmt.Errorf("%s: %w: %w", target, ErrCancelled, err)
		}
		now := clock.Now()
		if !now.Before(deadline) {
			res = finish(TimedOut)
			return res, fmt.Errorf("%s: %w after %s (%d polls)", target, ErrTimeout, res.Elapsed, res.Polls)
		}

		res.Polls++
		done, err := probe(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(Cancelled), fmt.Errorf("%s: %w: %w", target, ErrCancelled, ctxErr)
			}
			return finish(Failed), fmt.Errorf("%s: %w", target, err)
		}
		if done {
			return finish(Completed), nil
		}
		if state != Running && state.CanTransitionTo(Running) {
			state = Running
			log.Debug("target running")
		}

		sleep := w.Interval
		if remaining := deadline.Sub(clock.Now()); remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return finish(Cancelled), fmt.Errorf("%s: %w: %w", target, ErrCancelled, ctx.Err())
		case <-clock.After(sleep):
		}
	}
}
