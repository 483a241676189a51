package dispatch

import (
	"context"
	"fmt"
	"time"

	"manvibot/internal/schedule"
	logx "manvibot/pkg/logx"
)

// pollReminders delivers every pending reminder whose due instant has
// passed, then transitions it to completed. Delivery is at-least-once: a
// failed notify leaves the row pending for the next cycle, and a completed
// row is never picked up again. The completion update is guarded (only rows
// still pending transition), so a concurrent or repeated poll cannot
// double-notify through this path.
func (s *Service) pollReminders(ctx context.Context, now time.Time) {
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		s.log.Warn("reminder poll read failed, skipping cycle", logx.Err(err))
		return
	}
	for _, r := range due {
		text := fmt.Sprintf("✨ Reminder: %s", r.Message)
		nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		err := s.notif.Send(nctx, r.Destination, text)
		cancel()
		if err != nil {
			// stays pending; retried next cycle
			s.log.Warn("reminder notify failed",
				logx.Int64("id", r.ID),
				logx.String("destination", r.Destination),
				logx.Err(err))
			continue
		}
		done, err := s.store.CompleteReminder(ctx, r.ID)
		if err != nil {
			// Notified but not marked: the next cycle re-notifies. Accepted
			// at-least-once behavior.
			s.log.Warn("reminder completion not persisted", logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		if !done {
			s.log.Debug("reminder already completed elsewhere", logx.Int64("id", r.ID))
			continue
		}
		s.log.Info("reminder delivered", logx.Int64("id", r.ID), logx.Time("due", r.DueAt))
	}
}

// pollRoutines fires every active routine whose time-of-day equals the
// current minute in the fixed timezone. The match is exact-minute equality;
// a prefix match would re-fire when two ticks observe the same minute.
// Routines carry no status and fire again tomorrow.
func (s *Service) pollRoutines(ctx context.Context, now time.Time) {
	minute := schedule.MinuteKey(now, s.loc)
	routines, err := s.store.RoutinesAt(ctx, minute)
	if err != nil {
		s.log.Warn("routine poll read failed, skipping cycle", logx.Err(err))
		return
	}
	for _, r := range routines {
		text := fmt.Sprintf("🔄 Routine check: Time to %s!", r.TaskName)
		nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		err := s.notif.Send(nctx, r.Destination, text)
		cancel()
		if err != nil {
			s.log.Warn("routine notify failed", logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		s.log.Info("routine fired", logx.Int64("id", r.ID), logx.String("at", minute))
	}
}

// pollEvents runs once a day: every stored event whose month and day match
// today (year ignored) gets announced. At most one firing per event per
// year follows from the daily cadence.
func (s *Service) pollEvents(ctx context.Context, now time.Time) {
	events, err := s.store.Events(ctx)
	if err != nil {
		s.log.Warn("event poll read failed, skipping cycle", logx.Err(err))
		return
	}
	for _, e := range events {
		if !schedule.SameMonthDay(e.EventDate, now, s.loc) {
			continue
		}
		text := fmt.Sprintf("🎉 Hey! Just a heads up, today is %s's %s!", e.PersonName, e.EventType)
		nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		err := s.notif.Send(nctx, e.Destination, text)
		cancel()
		if err != nil {
			s.log.Warn("event notify failed", logx.Int64("id", e.ID), logx.Err(err))
			continue
		}
		s.log.Info("event announced", logx.Int64("id", e.ID), logx.String("person", e.PersonName))
	}
}
