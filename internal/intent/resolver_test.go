package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "manvibot/pkg/logx"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Classify(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeGate allows a fixed number of spends, like the daily ceiling.
type fakeGate struct {
	left int
	err  error
}

func (f *fakeGate) TryConsume(context.Context) (bool, int, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.left <= 0 {
		return false, 0, nil
	}
	f.left--
	return true, f.left, nil
}

const chatJSON = `{"intent":"chat","taskOrMessage":"hi"}`

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestResolveQuotaRouting(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", reply: chatJSON}
	fallback := &fakeProvider{name: "openai", reply: chatJSON}
	r := NewResolver(primary, fallback, &fakeGate{left: 2}, time.Second, testLoc(t), logx.Nop())
	ctx := context.Background()
	now := time.Now()

	// Two calls within the ceiling go to the primary.
	for i := 0; i < 2; i++ {
		in := r.Resolve(ctx, "hello", now)
		if in.Kind != KindChat {
			t.Fatalf("call %d: Kind = %q", i+1, in.Kind)
		}
		if !strings.HasPrefix(in.ProviderTag, "primary") {
			t.Fatalf("call %d: ProviderTag = %q", i+1, in.ProviderTag)
		}
	}
	// The third is over the ceiling and routes to the fallback, with no
	// primary call spent.
	in := r.Resolve(ctx, "hello", now)
	if in.ProviderTag != "fallback" {
		t.Fatalf("ProviderTag = %q, want fallback", in.ProviderTag)
	}
	if primary.calls != 2 {
		t.Fatalf("primary calls = %d, want 2", primary.calls)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.calls)
	}
}

func TestResolvePrimaryFailureFallsBack(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", err: errors.New("upstream 500")}
	fallback := &fakeProvider{name: "openai", reply: chatJSON}
	r := NewResolver(primary, fallback, &fakeGate{left: 10}, time.Second, testLoc(t), logx.Nop())

	in := r.Resolve(context.Background(), "hello", time.Now())
	if in.Kind != KindChat {
		t.Fatalf("Kind = %q", in.Kind)
	}
	if in.ProviderTag != "fallback (after earlier failure)" {
		t.Fatalf("ProviderTag = %q", in.ProviderTag)
	}
}

func TestResolveMalformedPrimaryResponseFallsBack(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", reply: "no json here"}
	fallback := &fakeProvider{name: "openai", reply: chatJSON}
	r := NewResolver(primary, fallback, &fakeGate{left: 10}, time.Second, testLoc(t), logx.Nop())

	in := r.Resolve(context.Background(), "hello", time.Now())
	if in.Kind != KindChat || !strings.Contains(in.ProviderTag, "after earlier failure") {
		t.Fatalf("unexpected intent: %+v", in)
	}
}

func TestResolveDegradesWhenAllFail(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", err: errors.New("down")}
	fallback := &fakeProvider{name: "openai", err: errors.New("also down")}
	r := NewResolver(primary, fallback, &fakeGate{left: 10}, time.Second, testLoc(t), logx.Nop())

	in := r.Resolve(context.Background(), "hello", time.Now())
	if in.Kind != KindProviderError {
		t.Fatalf("Kind = %q, want provider_error", in.Kind)
	}
	if in.TargetName != TargetSelf {
		t.Fatalf("TargetName = %q", in.TargetName)
	}
	if in.Payload == "" {
		t.Fatal("expected a human-readable degraded reply")
	}
}

func TestResolveGateErrorSkipsPrimary(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", reply: chatJSON}
	fallback := &fakeProvider{name: "openai", reply: chatJSON}
	r := NewResolver(primary, fallback, &fakeGate{err: errors.New("db locked")}, time.Second, testLoc(t), logx.Nop())

	in := r.Resolve(context.Background(), "hello", time.Now())
	if in.ProviderTag != "fallback" {
		t.Fatalf("ProviderTag = %q", in.ProviderTag)
	}
	if primary.calls != 0 {
		t.Fatalf("primary called %d times despite gate error", primary.calls)
	}
}

func TestResolveCeilingTwoThreeCallsFailingFallback(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", reply: chatJSON}
	fallback := &fakeProvider{name: "openai", reply: chatJSON}
	r := NewResolver(primary, fallback, &fakeGate{left: 2}, time.Second, testLoc(t), logx.Nop())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 2; i++ {
		if in := r.Resolve(ctx, "hello", now); !strings.HasPrefix(in.ProviderTag, "primary") {
			t.Fatalf("call %d routed to %q", i+1, in.ProviderTag)
		}
	}

	// Third call: over the ceiling and the fallback breaks too.
	fallback.err = errors.New("down")
	in := r.Resolve(ctx, "hello", now)
	if in.Kind != KindProviderError {
		t.Fatalf("call 3: Kind = %q, want provider_error", in.Kind)
	}
	if primary.calls != 2 || fallback.calls != 1 {
		t.Fatalf("primary=%d fallback=%d calls", primary.calls, fallback.calls)
	}
}
