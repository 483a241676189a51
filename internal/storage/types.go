package storage

import (
	"errors"
	"time"
)

// ErrUnavailable wraps persistence failures. Callers treat it as "degrade,
// don't crash": the resolver routes to the fallback provider, pollers skip
// the cycle.
var ErrUnavailable = errors.New("storage unavailable")

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Reminder statuses. A reminder transitions pending -> completed exactly
// once and is never re-evaluated afterward.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Reminder is a one-off scheduled message.
type Reminder struct {
	ID          int64
	Destination string
	Message     string
	DueAt       time.Time
	Status      string
	GroupLabel  string // optional; empty when the reminder is for the owner
}

// Routine is a daily recurring task reminder. No status: it fires at
// TimeOfDay every day for as long as it is active.
type Routine struct {
	ID          int64
	Destination string
	TaskName    string
	TimeOfDay   string // "HH:MM", fixed timezone
	Active      bool
}

// Event is a yearly calendar trigger (birthday, anniversary, ...).
// EventDate's year is informational; only month and day gate firing.
type Event struct {
	ID          int64
	Destination string
	PersonName  string
	EventType   string
	EventDate   string // "YYYY-MM-DD"
}

// Contact is one address-book entry.
type Contact struct {
	ID          int64
	Name        string
	Destination string
}

// Interaction records both sides of one exchange.
type Interaction struct {
	At          time.Time
	SenderName  string
	SenderDest  string
	Message     string
	BotResponse string
}
