// Package intent turns free-text messages into structured intents using a
// quota-gated chain of classification providers.
package intent

import "errors"

// Kind selects the downstream action for a message.
type Kind string

const (
	KindReminder       Kind = "reminder"
	KindRoutine        Kind = "routine"
	KindEvent          Kind = "event"
	KindInstantMessage Kind = "instant_message"
	KindChat           Kind = "chat"
	KindQueryBirthday  Kind = "query_birthday"
	KindQuerySchedule  Kind = "query_schedule"
	KindQueryRoutines  Kind = "query_routines"
	KindQueryContacts  Kind = "query_contacts"
	KindQueryReminders Kind = "query_reminders"
	KindQueryEvents    Kind = "query_events"
	KindDeleteTask     Kind = "delete_task"
	KindProviderError  Kind = "provider_error"
	KindUnknown        Kind = "unknown"
)

// TargetSelf is the sentinel addressee meaning "the owner".
const TargetSelf = "self"

var validKinds = map[Kind]bool{
	KindReminder: true, KindRoutine: true, KindEvent: true,
	KindInstantMessage: true, KindChat: true,
	KindQueryBirthday: true, KindQuerySchedule: true, KindQueryRoutines: true,
	KindQueryContacts: true, KindQueryReminders: true, KindQueryEvents: true,
	KindDeleteTask: true, KindUnknown: true,
}

// Intent is the structured interpretation of one inbound message.
// It is transient: produced per message, consumed immediately by the router,
// never persisted.
type Intent struct {
	Kind       Kind
	TargetName string // resolved addressee, or TargetSelf
	Time       string // optional "HH:MM:SS", fixed timezone
	Date       string // optional "YYYY-MM-DD"
	// Payload is the task description or message body. For chat intents it
	// is the final reply text itself and must not be reinterpreted.
	Payload string
	// ProviderTag is a diagnostic annotation (which provider answered,
	// remaining quota). Advisory only; it never affects routing.
	ProviderTag string
}

var (
	// ErrProviderUnavailable covers network failures, rate-limit rejections
	// and timeouts from a classification provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse covers non-JSON or schema-violating provider
	// output. The resolver treats it the same as ErrProviderUnavailable.
	ErrMalformedResponse = errors.New("malformed provider response")
)
