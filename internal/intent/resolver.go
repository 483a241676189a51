package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	logx "manvibot/pkg/logx"
)

// Provider is one external classification backend.
type Provider interface {
	Name() string
	// Classify sends the prompt and returns the raw response text. The
	// primary provider may wrap JSON in prose; the fallback is expected to
	// return a bare JSON object.
	Classify(ctx context.Context, prompt string) (string, error)
}

// QuotaGate meters primary-provider calls.
type QuotaGate interface {
	TryConsume(ctx context.Context) (allowed bool, remaining int, err error)
}

// degradedReply is the payload of the terminal provider_error intent.
const degradedReply = "Both the primary and the fallback AI are currently unavailable. Please try again in a bit."

// strategy is one entry of the ordered provider chain. gate decides whether
// the provider may be tried at all and supplies the providerTag on success.
type strategy struct {
	provider Provider
	gate     func(ctx context.Context) (allowed bool, tag string)
}

// Resolver routes classification between providers. It never returns an
// error: every failure degrades to a well-formed Intent.
type Resolver struct {
	chain   []strategy
	timeout time.Duration
	loc     *time.Location
	log     logx.Logger
}

// NewResolver builds the standard two-entry chain: the metered primary
// gated by quota, then the ungated fallback. The quota check runs before a
// primary call is spent, never after.
func NewResolver(primary, fallback Provider, quota QuotaGate, timeout time.Duration, loc *time.Location, log logx.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Resolver{timeout: timeout, loc: loc, log: log}

	r.chain = append(r.chain, strategy{
		provider: primary,
		gate: func(ctx context.Context) (bool, string) {
			allowed, remaining, err := quota.TryConsume(ctx)
			if err != nil || !allowed {
				return false, ""
			}
			return true, fmt.Sprintf("primary, remaining=%d", remaining)
		},
	})
	r.chain = append(r.chain, strategy{
		provider: fallback,
		gate: func(context.Context) (bool, string) {
			return true, "fallback"
		},
	})
	return r
}

// Resolve classifies text as observed at now. Relative time expressions are
// resolved against now (embedded in the prompt), which keeps resolution
// deterministic regardless of provider latency.
func (r *Resolver) Resolve(ctx context.Context, text string, now time.Time) Intent {
	prompt := BuildPrompt(text, now, r.loc)
	reqID := uuid.NewString()[:8]
	log := r.log.With(logx.String("req", reqID))

	failedEarlier := false
	for _, st := range r.chain {
		name := st.provider.Name()
		allowed, tag := st.gate(ctx)
		if !allowed {
			log.Debug("provider skipped by gate", logx.String("provider", name))
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		raw, err := st.provider.Classify(cctx, prompt)
		cancel()
		if err != nil {
			log.Warn("provider call failed", logx.String("provider", name), logx.Err(err))
			failedEarlier = true
			continue
		}

		in, err := ExtractIntent(raw)
		if err != nil {
			log.Warn("provider response rejected", logx.String("provider", name), logx.Err(err))
			failedEarlier = true
			continue
		}

		if failedEarlier {
			tag += " (after earlier failure)"
		}
		in.ProviderTag = tag
		log.Debug("intent resolved",
			logx.String("provider", name),
			logx.String("kind", string(in.Kind)),
			logx.String("target", in.TargetName))
		return in
	}

	log.Warn("all providers unavailable")
	return Intent{
		Kind:       KindProviderError,
		TargetName: TargetSelf,
		Payload:    degradedReply,
	}
}
