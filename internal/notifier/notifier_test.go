package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "manvibot/pkg/logx"
)

type fakeDriver struct {
	sent     []string // "destination|text"
	failNext int
}

func (d *fakeDriver) SendText(_ context.Context, destination, text string) error {
	if d.failNext > 0 {
		d.failNext--
		return errors.New("transient")
	}
	d.sent = append(d.sent, destination+"|"+text)
	return nil
}

func TestSendRoutesByDestinationPrefix(t *testing.T) {
	t.Parallel()
	wa := &fakeDriver{}
	tg := &fakeDriver{}
	s := New(Config{RatePerSec: 100}, wa, tg, logx.Nop())
	ctx := context.Background()

	if err := s.Send(ctx, "911234567890", "hello wa"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send(ctx, "tg:42", "hello tg"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(wa.sent) != 1 || wa.sent[0] != "911234567890|hello wa" {
		t.Fatalf("whatsapp sent = %v", wa.sent)
	}
	if len(tg.sent) != 1 || tg.sent[0] != "tg:42|hello tg" {
		t.Fatalf("telegram sent = %v", tg.sent)
	}
}

func TestSendNoDriver(t *testing.T) {
	t.Parallel()
	s := New(Config{RatePerSec: 100}, nil, nil, logx.Nop())
	if err := s.Send(context.Background(), "911234567890", "x"); !errors.Is(err, ErrNoDriver) {
		t.Fatalf("err = %v, want ErrNoDriver", err)
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	wa := &fakeDriver{failNext: 1}
	s := New(Config{RatePerSec: 100, RetryMax: 1, RetryBase: time.Millisecond}, wa, nil, logx.Nop())

	if err := s.Send(context.Background(), "911234567890", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(wa.sent) != 1 {
		t.Fatalf("sent = %v", wa.sent)
	}
}

func TestSendGivesUpAfterRetryMax(t *testing.T) {
	t.Parallel()
	wa := &fakeDriver{failNext: 10}
	s := New(Config{RatePerSec: 100, RetryMax: 2, RetryBase: time.Millisecond}, wa, nil, logx.Nop())

	if err := s.Send(context.Background(), "911234567890", "hello"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// 7 failures remain unconsumed: 10 - (1 initial + 2 retries).
	if wa.failNext != 7 {
		t.Fatalf("attempts consumed = %d, want 3", 10-wa.failNext)
	}
}

func TestSendHonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()
	wa := &fakeDriver{failNext: 10}
	s := New(Config{RatePerSec: 100, RetryMax: 3, RetryBase: time.Minute}, wa, nil, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Send(ctx, "911234567890", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Send did not honor context cancellation during backoff")
	}
}

func TestHistoryRecordsOutcomes(t *testing.T) {
	t.Parallel()
	wa := &fakeDriver{failNext: 10}
	s := New(Config{RatePerSec: 100, RetryMax: 0}, wa, nil, logx.Nop())
	ctx := context.Background()

	_ = s.Send(ctx, "911234567890", "fails")
	wa.failNext = 0
	_ = s.Send(ctx, "911234567890", "succeeds")

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("history = %d items, want 2", len(h))
	}
	if h[0].Error == "" {
		t.Fatal("first item should carry the error")
	}
	if h[1].Error != "" {
		t.Fatalf("second item unexpectedly failed: %s", h[1].Error)
	}
}
