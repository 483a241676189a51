// Package router turns inbound messages into actions: it resolves the
// intent, looks up addressees, persists temporal records, and replies.
package router

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"manvibot/internal/intent"
	"manvibot/internal/storage"
	"manvibot/internal/transport"
	logx "manvibot/pkg/logx"
)

// Store is the slice of persistence the router needs.
type Store interface {
	ContactByName(ctx context.Context, name string) (*storage.Contact, error)
	ContactByDestination(ctx context.Context, dest string) (*storage.Contact, error)
	Contacts(ctx context.Context) ([]storage.Contact, error)

	InsertReminder(ctx context.Context, r storage.Reminder) (int64, error)
	UpcomingReminders(ctx context.Context, after time.Time) ([]storage.Reminder, error)
	RemindersBetween(ctx context.Context, from, to time.Time) ([]storage.Reminder, error)
	DeleteReminderLike(ctx context.Context, text string) (*storage.Reminder, error)

	InsertRoutine(ctx context.Context, r storage.Routine) (int64, error)
	ActiveRoutines(ctx context.Context) ([]storage.Routine, error)
	DeleteRoutineLike(ctx context.Context, text string) (*storage.Routine, error)

	InsertEvent(ctx context.Context, e storage.Event) (int64, error)
	Events(ctx context.Context) ([]storage.Event, error)
	EventsOnDate(ctx context.Context, date string) ([]storage.Event, error)
	EventByPerson(ctx context.Context, person, eventType string) (*storage.Event, error)
	DeleteEventLike(ctx context.Context, person string) (*storage.Event, error)

	AppendInteraction(ctx context.Context, e storage.Interaction) error
}

// Resolver classifies free text.
type Resolver interface {
	Resolve(ctx context.Context, text string, now time.Time) intent.Intent
}

// Notifier delivers outbound text.
type Notifier interface {
	Send(ctx context.Context, destination, text string) error
}

type Config struct {
	// OwnerDestination is where "self"-targeted actions land.
	OwnerDestination string
	OwnerName        string
	AssistantName    string
}

type Service struct {
	cfg      Config
	store    Store
	resolver Resolver
	notif    Notifier
	loc      *time.Location
	log      logx.Logger

	nowFn func() time.Time
}

func New(cfg Config, store Store, resolver Resolver, notif Notifier, loc *time.Location, log logx.Logger) *Service {
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Manvi"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg, store: store, resolver: resolver, notif: notif,
		loc: loc, log: log, nowFn: time.Now,
	}
}

// Run consumes updates until ctx is cancelled.
func (s *Service) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			s.Handle(ctx, up)
		}
	}
}

// Handle processes one inbound message end to end.
func (s *Service) Handle(ctx context.Context, up transport.Update) {
	text := strings.TrimSpace(up.Text)
	if text == "" {
		return
	}
	now := s.nowFn()

	senderName, isOwner := s.identify(ctx, up)

	// Greeting fast path: no provider call, no quota spent.
	switch strings.ToLower(text) {
	case "hi", "hello", "hey":
		s.replyAndLog(ctx, up.From, senderName, text, s.greeting(senderName, isOwner))
		return
	}

	res := s.resolver.Resolve(ctx, text, now)

	respond := func(reply string) {
		if tag := strings.TrimSpace(res.ProviderTag); tag != "" {
			reply = reply + "\n\n_" + tag + "_"
		}
		s.replyAndLog(ctx, up.From, senderName, text, reply)
	}

	// Address book: map the intent's target onto a destination.
	targetDest := s.cfg.OwnerDestination
	targetName := "you"
	if res.TargetName != "" && res.TargetName != intent.TargetSelf {
		contact, err := s.store.ContactByName(ctx, res.TargetName)
		if err != nil {
			respond(dbErrorReply)
			return
		}
		if contact == nil {
			respond("I couldn't find \"" + res.TargetName + "\" in the address book. Please check the spelling!")
			return
		}
		targetDest = contact.Destination
		targetName = titleCase(contact.Name)
	}

	s.dispatchIntent(ctx, res, dispatchEnv{
		now:        now,
		raw:        text,
		sender:     up.From,
		senderName: senderName,
		isOwner:    isOwner,
		targetDest: targetDest,
		targetName: targetName,
		respond:    respond,
	})
}

type dispatchEnv struct {
	now        time.Time
	raw        string
	sender     string
	senderName string
	isOwner    bool
	targetDest string
	targetName string
	respond    func(string)
}

func (s *Service) identify(ctx context.Context, up transport.Update) (name string, isOwner bool) {
	if up.From == s.cfg.OwnerDestination {
		return s.ownerName(), true
	}
	contact, err := s.store.ContactByDestination(ctx, up.From)
	if err == nil && contact != nil {
		return titleCase(contact.Name), false
	}
	if n := strings.TrimSpace(up.Name); n != "" {
		return n, false
	}
	return "Guest", false
}

func (s *Service) ownerName() string {
	if s.cfg.OwnerName != "" {
		return s.cfg.OwnerName
	}
	return "boss"
}

func (s *Service) greeting(senderName string, isOwner bool) string {
	if isOwner {
		return "Hi " + senderName + "! 👋 I'm " + s.cfg.AssistantName + ". You can talk to me naturally:\n" +
			"📌 \"Remind me at 4 PM to review the draft\"\n" +
			"🔄 \"Set a daily routine to take medicine at 9 AM\"\n" +
			"🎉 \"Manu's birthday is on Feb 9th 2026\"\n" +
			"✉️ \"Shoot a message to dad that I'll be 10 minutes late\""
	}
	return "Hi " + senderName + "! 👋 I'm " + s.cfg.AssistantName + ", a personal assistant. " +
		"If you want me to pass on a message or save a reminder, just let me know!"
}

func (s *Service) replyAndLog(ctx context.Context, dest, senderName, incoming, reply string) {
	if err := s.notif.Send(ctx, dest, reply); err != nil {
		s.log.Warn("reply send failed", logx.String("destination", dest), logx.Err(err))
	}
	if err := s.store.AppendInteraction(ctx, storage.Interaction{
		SenderName:  senderName,
		SenderDest:  dest,
		Message:     incoming,
		BotResponse: reply,
	}); err != nil {
		s.log.Warn("interaction log failed", logx.Err(err))
	}
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
