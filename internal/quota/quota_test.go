package quota

import (
	"context"
	"testing"
	"time"

	"manvibot/internal/storage"
	logx "manvibot/pkg/logx"
)

// fakeStore counts per-day usage in memory with the same conditional
// increment semantics as the sqlite layer.
type fakeStore struct {
	counts map[string]int
	err    error

	lastDay     string
	lastCeiling int
}

func (f *fakeStore) TryConsumeUsage(_ context.Context, day string, ceiling int) (bool, int, error) {
	f.lastDay, f.lastCeiling = day, ceiling
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	if f.counts[day] >= ceiling {
		return false, 0, nil
	}
	f.counts[day]++
	return true, ceiling - f.counts[day], nil
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestTryConsumeSpendsAgainstCeiling(t *testing.T) {
	t.Parallel()
	fs := &fakeStore{}
	svc := New(fs, 2, kolkata(t), logx.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := svc.TryConsume(ctx)
		if err != nil || !allowed {
			t.Fatalf("call %d: allowed=%v err=%v", i+1, allowed, err)
		}
	}
	allowed, _, err := svc.TryConsume(ctx)
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if allowed {
		t.Fatal("third call: expected denied")
	}
	if fs.lastCeiling != 2 {
		t.Fatalf("ceiling passed through = %d", fs.lastCeiling)
	}
}

func TestTryConsumeDayBoundaryInFixedTimezone(t *testing.T) {
	t.Parallel()
	loc := kolkata(t)
	fs := &fakeStore{}
	svc := New(fs, 5, loc, logx.Nop())

	// 19:00 UTC on Feb 9 is already 00:30 on Feb 10 in Kolkata.
	svc.nowFn = func() time.Time { return time.Date(2026, 2, 9, 19, 0, 0, 0, time.UTC) }
	if _, _, err := svc.TryConsume(context.Background()); err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if fs.lastDay != "2026-02-10" {
		t.Fatalf("day key = %q, want 2026-02-10", fs.lastDay)
	}
}

func TestTryConsumeStorageFailure(t *testing.T) {
	t.Parallel()
	fs := &fakeStore{err: storage.ErrUnavailable}
	svc := New(fs, 5, kolkata(t), logx.Nop())

	allowed, _, err := svc.TryConsume(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if allowed {
		t.Fatal("storage failure must not allow a spend")
	}
}

func TestApplyIgnoresNonPositive(t *testing.T) {
	t.Parallel()
	fs := &fakeStore{}
	svc := New(fs, 0, kolkata(t), logx.Nop()) // 0 falls back to default 20

	svc.Apply(-1)
	if _, _, err := svc.TryConsume(context.Background()); err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if fs.lastCeiling != 20 {
		t.Fatalf("ceiling = %d, want default 20", fs.lastCeiling)
	}

	svc.Apply(7)
	if _, _, err := svc.TryConsume(context.Background()); err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if fs.lastCeiling != 7 {
		t.Fatalf("ceiling = %d, want 7", fs.lastCeiling)
	}
}
