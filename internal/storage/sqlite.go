package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "manvibot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the sqlite-backed persistence layer.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// wrap tags driver failures so callers can branch on ErrUnavailable.
// sql.ErrNoRows is not a failure and passes through untouched.
func wrap(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// ---- usage counter ----

// TryConsumeUsage performs the whole "read count, compare to ceiling,
// increment" sequence as one conditional UPDATE so concurrent resolvers
// cannot jointly blow past the ceiling. The day row is created lazily.
func (s *Store) TryConsumeUsage(ctx context.Context, day string, ceiling int) (allowed bool, remaining int, err error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO api_usage(day, count) VALUES(?, 0) ON CONFLICT(day) DO NOTHING`, day); err != nil {
		return false, 0, wrap(err)
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`UPDATE api_usage SET count = count + 1 WHERE day = ? AND count < ? RETURNING count`,
		day, ceiling).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, wrap(err)
	}
	return true, ceiling - count, nil
}

// UsageCount reports today's consumed calls; 0 when the day row does not exist.
func (s *Store) UsageCount(ctx context.Context, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM api_usage WHERE day = ?`, day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, wrap(err)
}

// ---- reminders ----

func (s *Store) InsertReminder(ctx context.Context, r Reminder) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(destination, message, due_at, status, group_label) VALUES(?,?,?,?,?)`,
		r.Destination, r.Message, r.DueAt.Unix(), StatusPending, nullStr(r.GroupLabel))
	if err != nil {
		return 0, wrap(err)
	}
	id, err := res.LastInsertId()
	return id, wrap(err)
}

// DueReminders returns pending reminders with due_at <= now.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, message, due_at, status, COALESCE(group_label,'')
		   FROM reminders WHERE status = ? AND due_at <= ?`,
		StatusPending, now.Unix())
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// CompleteReminder transitions one reminder pending -> completed.
// It reports false when the row was already completed (or deleted), which
// lets the poller skip a duplicate notification.
func (s *Store) CompleteReminder(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ? WHERE id = ? AND status = ?`,
		StatusCompleted, id, StatusPending)
	if err != nil {
		return false, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err)
	}
	return n == 1, nil
}

// UpcomingReminders lists pending reminders strictly after the given instant,
// soonest first.
func (s *Store) UpcomingReminders(ctx context.Context, after time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, message, due_at, status, COALESCE(group_label,'')
		   FROM reminders WHERE status = ? AND due_at > ? ORDER BY due_at ASC`,
		StatusPending, after.Unix())
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// RemindersBetween lists pending reminders due in [from, to).
func (s *Store) RemindersBetween(ctx context.Context, from, to time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, message, due_at, status, COALESCE(group_label,'')
		   FROM reminders WHERE status = ? AND due_at >= ? AND due_at < ? ORDER BY due_at ASC`,
		StatusPending, from.Unix(), to.Unix())
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// DeleteReminderLike removes the first pending reminder whose message
// contains the given text. Returns nil when nothing matched.
func (s *Store) DeleteReminderLike(ctx context.Context, text string) (*Reminder, error) {
	r, err := s.firstReminderLike(ctx, text)
	if err != nil || r == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, r.ID); err != nil {
		return nil, wrap(err)
	}
	return r, nil
}

func (s *Store) firstReminderLike(ctx context.Context, text string) (*Reminder, error) {
	var r Reminder
	var due int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, destination, message, due_at, status, COALESCE(group_label,'')
		   FROM reminders WHERE status = ? AND message LIKE ? LIMIT 1`,
		StatusPending, "%"+text+"%").
		Scan(&r.ID, &r.Destination, &r.Message, &due, &r.Status, &r.GroupLabel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	r.DueAt = time.Unix(due, 0)
	return &r, nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		var r Reminder
		var due int64
		if err := rows.Scan(&r.ID, &r.Destination, &r.Message, &due, &r.Status, &r.GroupLabel); err != nil {
			return nil, wrap(err)
		}
		r.DueAt = time.Unix(due, 0)
		out = append(out, r)
	}
	return out, wrap(rows.Err())
}

// ---- routines ----

func (s *Store) InsertRoutine(ctx context.Context, r Routine) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO routines(destination, task_name, time_of_day, active) VALUES(?,?,?,1)`,
		r.Destination, r.TaskName, r.TimeOfDay)
	if err != nil {
		return 0, wrap(err)
	}
	id, err := res.LastInsertId()
	return id, wrap(err)
}

// RoutinesAt returns active routines whose time_of_day equals the given
// minute exactly. Equality (not prefix match) keeps a routine from firing
// twice when two poll ticks land inside the same minute.
func (s *Store) RoutinesAt(ctx context.Context, hhmm string) ([]Routine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, task_name, time_of_day, active FROM routines
		  WHERE active = 1 AND time_of_day = ?`, hhmm)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanRoutines(rows)
}

func (s *Store) ActiveRoutines(ctx context.Context) ([]Routine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, task_name, time_of_day, active FROM routines
		  WHERE active = 1 ORDER BY time_of_day ASC`)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanRoutines(rows)
}

func (s *Store) DeleteRoutineLike(ctx context.Context, text string) (*Routine, error) {
	var r Routine
	err := s.db.QueryRowContext(ctx,
		`SELECT id, destination, task_name, time_of_day, active FROM routines
		  WHERE task_name LIKE ? LIMIT 1`, "%"+text+"%").
		Scan(&r.ID, &r.Destination, &r.TaskName, &r.TimeOfDay, &r.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM routines WHERE id = ?`, r.ID); err != nil {
		return nil, wrap(err)
	}
	return &r, nil
}

func scanRoutines(rows *sql.Rows) ([]Routine, error) {
	var out []Routine
	for rows.Next() {
		var r Routine
		if err := rows.Scan(&r.ID, &r.Destination, &r.TaskName, &r.TimeOfDay, &r.Active); err != nil {
			return nil, wrap(err)
		}
		out = append(out, r)
	}
	return out, wrap(rows.Err())
}

// ---- events ----

func (s *Store) InsertEvent(ctx context.Context, e Event) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events(destination, person_name, event_type, event_date) VALUES(?,?,?,?)`,
		e.Destination, e.PersonName, e.EventType, e.EventDate)
	if err != nil {
		return 0, wrap(err)
	}
	id, err := res.LastInsertId()
	return id, wrap(err)
}

func (s *Store) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, person_name, event_type, event_date FROM events ORDER BY event_date ASC`)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsOnDate returns events whose stored date matches exactly (used by
// schedule queries, where the year matters).
func (s *Store) EventsOnDate(ctx context.Context, date string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination, person_name, event_type, event_date FROM events WHERE event_date = ?`, date)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventByPerson finds one event by person name (case-insensitive) and type.
func (s *Store) EventByPerson(ctx context.Context, person, eventType string) (*Event, error) {
	var e Event
	err := s.db.QueryRowContext(ctx,
		`SELECT id, destination, person_name, event_type, event_date FROM events
		  WHERE person_name = ? AND event_type = ? LIMIT 1`, person, eventType).
		Scan(&e.ID, &e.Destination, &e.PersonName, &e.EventType, &e.EventDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &e, nil
}

func (s *Store) DeleteEventLike(ctx context.Context, person string) (*Event, error) {
	var e Event
	err := s.db.QueryRowContext(ctx,
		`SELECT id, destination, person_name, event_type, event_date FROM events
		  WHERE person_name LIKE ? LIMIT 1`, "%"+person+"%").
		Scan(&e.ID, &e.Destination, &e.PersonName, &e.EventType, &e.EventDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, e.ID); err != nil {
		return nil, wrap(err)
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Destination, &e.PersonName, &e.EventType, &e.EventDate); err != nil {
			return nil, wrap(err)
		}
		out = append(out, e)
	}
	return out, wrap(rows.Err())
}

// ---- contacts ----

func (s *Store) UpsertContact(ctx context.Context, c Contact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(name, destination) VALUES(?,?)
		 ON CONFLICT(name) DO UPDATE SET destination=excluded.destination`,
		c.Name, c.Destination)
	return wrap(err)
}

func (s *Store) ContactByName(ctx context.Context, name string) (*Contact, error) {
	var c Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, destination FROM contacts WHERE name = ? LIMIT 1`, name).
		Scan(&c.ID, &c.Name, &c.Destination)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &c, nil
}

func (s *Store) ContactByDestination(ctx context.Context, dest string) (*Contact, error) {
	var c Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, destination FROM contacts WHERE destination = ? LIMIT 1`, dest).
		Scan(&c.ID, &c.Name, &c.Destination)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &c, nil
}

func (s *Store) Contacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, destination FROM contacts ORDER BY name ASC`)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Destination); err != nil {
			return nil, wrap(err)
		}
		out = append(out, c)
	}
	return out, wrap(rows.Err())
}

// ---- interaction log ----

func (s *Store) AppendInteraction(ctx context.Context, e Interaction) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions(at, sender_name, sender_dest, message, bot_response) VALUES(?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), nullStr(e.SenderName), nullStr(e.SenderDest),
		nullStr(e.Message), nullStr(e.BotResponse))
	return wrap(err)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
