package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agendabot/internal/agenda"
	"agendabot/internal/journal"
	"agendabot/internal/models"

	"github.com/google/uuid"
)

// State is a phase of the notification loop.
type State int

const (
	StateIdle State = iota
	StateComputingNextTrigger
	StateSleeping
	StateFetching
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputingNextTrigger:
		return "computing-next-trigger"
	case StateSleeping:
		return "sleeping"
	case StateFetching:
		return "fetching"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventSource lists the events of the day containing ref.
type EventSource interface {
	TodayEvents(ctx context.Context, ref time.Time) ([]models.Event, error)
}

// Sender delivers a rendered agenda.
type Sender interface {
	Send(ctx context.Context, msg agenda.Message) error
}

// Recorder persists cycle outcomes.
type Recorder interface {
	Record(ctx context.Context, c journal.Cycle) error
}

// Notifier runs the daily fetch-format-send loop on a single goroutine.
type Notifier struct {
	logger    *slog.Logger
	source    EventSource
	sender    Sender
	formatter agenda.Formatter
	schedule  Schedule
	recorder  Recorder

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	state State
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithRecorder records every cycle.
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// WithClock replaces the wall clock and the sleep primitive.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(n *Notifier) {
		n.now = now
		n.sleep = sleep
	}
}

// New creates a Notifier.
func New(logger *slog.Logger, source EventSource, sender Sender, formatter agenda.Formatter, schedule Schedule, opts ...Option) *Notifier {
	n := &Notifier{
		logger:    logger,
		source:    source,
		sender:    sender,
		formatter: formatter,
		schedule:  schedule,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State reports the current phase. Only meaningful on the loop goroutine.
func (n *Notifier) State() State {
	return n.state
}

// Run loops until ctx is canceled. Fetch and send failures are logged,
// recorded and end only the current cycle; the loop waits for the next
// trigger. An authorization failure ends the loop and is returned, since no
// later cycle can succeed without operator action.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("Notifier started.", "schedule", n.schedule.String())
	for {
		n.setState(StateComputingNextTrigger)
		now := n.now()
		next := n.schedule.Next(now)
		wait := next.Sub(now)
		n.logger.Info("Next notification scheduled.", "at", next, "in", wait.Round(time.Second))

		n.setState(StateSleeping)
		if err := n.sleep(ctx, wait); err != nil {
			n.setState(StateIdle)
			n.logger.Info("Notifier stopped.")
			return nil
		}

		err := n.RunOnce(ctx, next)
		n.setState(StateIdle)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			n.logger.Info("Notifier stopped during a cycle.")
			return nil
		case errors.Is(err, models.ErrAuth):
			return err
		default:
			n.logger.Error("Notification cycle failed, waiting for the next trigger", "error", err)
		}
	}
}

// RunOnce performs one cycle immediately. trigger is the instant the cycle
// was scheduled for and is only recorded.
func (n *Notifier) RunOnce(ctx context.Context, trigger time.Time) error {
	cycle := journal.Cycle{
		ID:        uuid.NewString(),
		TriggerAt: trigger,
		StartedAt: n.now(),
	}
	logger := n.logger.With("cycle", cycle.ID)

	err := n.cycle(ctx, logger, &cycle)
	cycle.FinishedAt = n.now()
	cycle.Status = journal.StatusSent
	if err != nil {
		cycle.Status = journal.StatusFailed
		cycle.Error = err.Error()
	}
	if n.recorder != nil {
		// The cycle's own ctx may be canceled; recording must still land.
		if rerr := n.recorder.Record(context.WithoutCancel(ctx), cycle); rerr != nil {
			logger.Error("Failed to record cycle", "error", rerr)
		}
	}
	return err
}

func (n *Notifier) cycle(ctx context.Context, logger *slog.Logger, cycle *journal.Cycle) error {
	n.setState(StateFetching)
	events, err := n.source.TodayEvents(ctx, cycle.StartedAt)
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			return err
		}
		return fmt.Errorf("%w: %w", models.ErrFetch, err)
	}
	cycle.Events = len(events)
	logger.Info("Fetched today's events.", "count", len(events))

	msg := n.formatter.Format(events)

	n.setState(StateSending)
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrSend, err)
	}
	logger.Info("Agenda sent.", "events", len(events))
	return nil
}

func (n *Notifier) setState(s State) {
	if n.state != s {
		n.logger.Debug("Notifier state change", "from", n.state, "to", s)
		n.state = s
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
