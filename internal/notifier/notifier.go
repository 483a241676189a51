// Package notifier delivers outbound text to a destination address.
//
// Destinations are plain strings: "tg:<chatID>" routes through the Telegram
// driver, anything else is treated as a WhatsApp phone number. Sends are
// synchronous: callers (the dispatch pollers especially) need the outcome
// to decide whether a record stays pending.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "manvibot/pkg/logx"
)

// Driver performs the actual network delivery for one channel.
type Driver interface {
	SendText(ctx context.Context, destination, text string) error
}

var ErrNoDriver = errors.New("no driver for destination")

type Config struct {
	RatePerSec int
	RetryMax   int
	RetryBase  time.Duration
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	telegram Driver
	whatsapp Driver

	log logx.Logger

	hmu     sync.Mutex
	history []HistoryItem
}

type HistoryItem struct {
	At          time.Time
	Destination string
	Error       string
}

func New(cfg Config, whatsapp, telegram Driver, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{whatsapp: whatsapp, telegram: telegram, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers text to destination, retrying transient failures up to
// RetryMax times. A timeout on ctx counts as a failure; the caller decides
// what that means for its own records.
func (s *Service) Send(ctx context.Context, destination, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	drv := s.driverFor(destination)
	if drv == nil {
		return fmt.Errorf("%w: %q", ErrNoDriver, destination)
	}

	var err error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(cfg.RetryBase * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				s.appendHistory(destination, ctx.Err())
				return ctx.Err()
			case <-t.C:
			}
		}
		if werr := lim.Wait(ctx); werr != nil {
			s.appendHistory(destination, werr)
			return werr
		}
		err = drv.SendText(ctx, destination, text)
		if err == nil {
			s.appendHistory(destination, nil)
			return nil
		}
		s.log.Warn("send failed",
			logx.String("destination", destination),
			logx.Int("attempt", attempt+1),
			logx.Err(err))
	}

	s.appendHistory(destination, err)
	return err
}

func (s *Service) driverFor(destination string) Driver {
	if strings.HasPrefix(destination, "tg:") {
		return s.telegram
	}
	return s.whatsapp
}

// History returns a copy of the recent delivery outcomes, newest last.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) appendHistory(destination string, err error) {
	item := HistoryItem{At: time.Now(), Destination: destination}
	if err != nil {
		item.Error = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > 300 {
		s.history = s.history[len(s.history)-300:]
	}
	s.hmu.Unlock()
}
