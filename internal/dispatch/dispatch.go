// Package dispatch runs the three delivery pollers: one-off reminders and
// daily routines every minute, calendar events once a day. Each poller is
// an independent cron entry in the fixed timezone; a poller never overlaps
// itself, and no lock is held across storage or notify calls.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"manvibot/internal/schedule"
	"manvibot/internal/storage"
	logx "manvibot/pkg/logx"
)

// Store is the slice of persistence the pollers need.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]storage.Reminder, error)
	CompleteReminder(ctx context.Context, id int64) (bool, error)
	RoutinesAt(ctx context.Context, hhmm string) ([]storage.Routine, error)
	Events(ctx context.Context) ([]storage.Event, error)
}

// Notifier delivers one text to one destination.
type Notifier interface {
	Send(ctx context.Context, destination, text string) error
}

type Config struct {
	Enabled bool
	// EventTime is "HH:MM" in the fixed timezone; the daily event check.
	EventTime string
	// NotifyTimeout bounds one outbound notification.
	NotifyTimeout time.Duration
}

type Service struct {
	cfg   Config
	store Store
	notif Notifier
	loc   *time.Location
	log   logx.Logger

	mu sync.Mutex
	c  *cron.Cron

	// per-poller overlap guards
	remindersMu sync.Mutex
	routinesMu  sync.Mutex
	eventsMu    sync.Mutex
}

func New(cfg Config, store Store, notif Notifier, loc *time.Location, log logx.Logger) *Service {
	if cfg.EventTime == "" {
		cfg.EventTime = "08:00"
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, notif: notif, loc: loc, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("dispatch disabled")
		return nil
	}

	tod, err := schedule.ParseTimeOfDay(s.cfg.EventTime)
	if err != nil {
		return fmt.Errorf("dispatch.event_time: %w", err)
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc("* * * * *", func() {
		s.runGuarded(ctx, &s.remindersMu, "reminders", s.pollReminders)
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc("* * * * *", func() {
		s.runGuarded(ctx, &s.routinesMu, "routines", s.pollRoutines)
	}); err != nil {
		return err
	}
	eventSpec := fmt.Sprintf("%d %d * * *", tod.Minute, tod.Hour)
	if _, err := c.AddFunc(eventSpec, func() {
		s.runGuarded(ctx, &s.eventsMu, "events", s.pollEvents)
	}); err != nil {
		return err
	}

	s.c = c
	c.Start()
	s.log.Info("dispatch started",
		logx.String("tz", s.loc.String()),
		logx.String("event_time", tod.HHMM()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("dispatch stopped")
}

// runGuarded skips the tick when the same poller is still running; different
// pollers stay independent.
func (s *Service) runGuarded(ctx context.Context, mu *sync.Mutex, name string, poll func(ctx context.Context, now time.Time)) {
	if !mu.TryLock() {
		s.log.Warn("poll still running, skipping tick", logx.String("poller", name))
		return
	}
	defer mu.Unlock()
	poll(ctx, time.Now())
}
