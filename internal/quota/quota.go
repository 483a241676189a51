// Package quota meters primary-provider usage against a per-day ceiling.
//
// The counter row is the one piece of state requiring coordinated mutation;
// it is only touched through TryConsume, which maps to a single conditional
// update in storage. The raw count is never exposed to other components.
package quota

import (
	"context"
	"sync"
	"time"

	"manvibot/internal/schedule"
	logx "manvibot/pkg/logx"
)

// Store is the slice of persistence the counter needs.
type Store interface {
	TryConsumeUsage(ctx context.Context, day string, ceiling int) (allowed bool, remaining int, err error)
}

type Service struct {
	store Store
	loc   *time.Location
	log   logx.Logger

	mu      sync.Mutex
	ceiling int

	nowFn func() time.Time
}

func New(store Store, ceiling int, loc *time.Location, log logx.Logger) *Service {
	if ceiling <= 0 {
		ceiling = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, ceiling: ceiling, loc: loc, log: log, nowFn: time.Now}
}

// Apply updates the ceiling at runtime (config hot reload).
func (s *Service) Apply(ceiling int) {
	if ceiling <= 0 {
		return
	}
	s.mu.Lock()
	s.ceiling = ceiling
	s.mu.Unlock()
}

// TryConsume spends one primary-provider call if today's ceiling allows it.
// Today is computed in the fixed timezone, so the counter resets at that
// timezone's midnight regardless of where the process runs.
//
// A storage failure surfaces as an error; callers treat it as "not allowed"
// and route to the fallback provider.
func (s *Service) TryConsume(ctx context.Context) (allowed bool, remaining int, err error) {
	s.mu.Lock()
	ceiling := s.ceiling
	s.mu.Unlock()

	day := schedule.DayKey(s.nowFn(), s.loc)
	allowed, remaining, err = s.store.TryConsumeUsage(ctx, day, ceiling)
	if err != nil {
		s.log.Warn("usage counter unavailable", logx.String("day", day), logx.Err(err))
		return false, 0, err
	}
	if !allowed {
		s.log.Debug("primary quota exhausted", logx.String("day", day), logx.Int("ceiling", ceiling))
	}
	return allowed, remaining, nil
}
