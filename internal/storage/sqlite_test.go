package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "manvibot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTryConsumeUsageCeiling(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const ceiling = 3
	for i := 0; i < ceiling; i++ {
		allowed, remaining, err := s.TryConsumeUsage(ctx, "2026-02-09", ceiling)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if want := ceiling - (i + 1); remaining != want {
			t.Fatalf("call %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}

	// Ceiling reached: denied without error, counter stays put.
	allowed, _, err := s.TryConsumeUsage(ctx, "2026-02-09", ceiling)
	if err != nil {
		t.Fatalf("over-ceiling call: %v", err)
	}
	if allowed {
		t.Fatal("over-ceiling call: expected denied")
	}
	if n, err := s.UsageCount(ctx, "2026-02-09"); err != nil || n != ceiling {
		t.Fatalf("UsageCount = %d, %v; want %d", n, err, ceiling)
	}

	// A new day starts fresh.
	allowed, remaining, err := s.TryConsumeUsage(ctx, "2026-02-10", ceiling)
	if err != nil || !allowed || remaining != ceiling-1 {
		t.Fatalf("next day: allowed=%v remaining=%d err=%v", allowed, remaining, err)
	}
}

func TestReminderLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	id, err := s.InsertReminder(ctx, Reminder{
		Destination: "911234567890",
		Message:     "join standup",
		DueAt:       now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("InsertReminder: %v", err)
	}
	// Not yet due.
	if _, err := s.InsertReminder(ctx, Reminder{
		Destination: "911234567890",
		Message:     "future thing",
		DueAt:       now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertReminder: %v", err)
	}

	due, err := s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("DueReminders = %+v, want one row id=%d", due, id)
	}
	if due[0].Status != StatusPending {
		t.Fatalf("status = %q", due[0].Status)
	}

	ok, err := s.CompleteReminder(ctx, id)
	if err != nil || !ok {
		t.Fatalf("CompleteReminder = %v, %v; want true", ok, err)
	}
	// Second completion loses the guard.
	ok, err = s.CompleteReminder(ctx, id)
	if err != nil {
		t.Fatalf("CompleteReminder(again): %v", err)
	}
	if ok {
		t.Fatal("expected false on already-completed reminder")
	}

	due, err = s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("completed reminder still due: %+v", due)
	}

	upcoming, err := s.UpcomingReminders(ctx, now)
	if err != nil {
		t.Fatalf("UpcomingReminders: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].Message != "future thing" {
		t.Fatalf("UpcomingReminders = %+v", upcoming)
	}
}

func TestRemindersBetween(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{
		base.Add(-time.Hour),     // day before
		base.Add(10 * time.Hour), // inside
		base.Add(25 * time.Hour), // day after
	} {
		if _, err := s.InsertReminder(ctx, Reminder{Destination: "d", Message: "m", DueAt: at}); err != nil {
			t.Fatalf("InsertReminder: %v", err)
		}
	}

	got, err := s.RemindersBetween(ctx, base, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("RemindersBetween: %v", err)
	}
	if len(got) != 1 || !got[0].DueAt.Equal(base.Add(10*time.Hour)) {
		t.Fatalf("RemindersBetween = %+v", got)
	}
}

func TestRoutinesExactMinute(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertRoutine(ctx, Routine{Destination: "d", TaskName: "take medicine", TimeOfDay: "09:00"}); err != nil {
		t.Fatalf("InsertRoutine: %v", err)
	}
	if _, err := s.InsertRoutine(ctx, Routine{Destination: "d", TaskName: "evening walk", TimeOfDay: "09:05"}); err != nil {
		t.Fatalf("InsertRoutine: %v", err)
	}

	got, err := s.RoutinesAt(ctx, "09:00")
	if err != nil {
		t.Fatalf("RoutinesAt: %v", err)
	}
	if len(got) != 1 || got[0].TaskName != "take medicine" {
		t.Fatalf("RoutinesAt(09:00) = %+v", got)
	}

	// "09:0" must not prefix-match both rows.
	got, err = s.RoutinesAt(ctx, "09:0")
	if err != nil {
		t.Fatalf("RoutinesAt: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("RoutinesAt(09:0) = %+v, want none", got)
	}
}

func TestEventByPersonCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertEvent(ctx, Event{
		Destination: "d", PersonName: "manu", EventType: "birthday", EventDate: "2026-02-09",
	}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	ev, err := s.EventByPerson(ctx, "Manu", "birthday")
	if err != nil {
		t.Fatalf("EventByPerson: %v", err)
	}
	if ev == nil || ev.EventDate != "2026-02-09" {
		t.Fatalf("EventByPerson = %+v", ev)
	}

	ev, err = s.EventByPerson(ctx, "manu", "anniversary")
	if err != nil {
		t.Fatalf("EventByPerson: %v", err)
	}
	if ev != nil {
		t.Fatalf("unexpected match for wrong type: %+v", ev)
	}
}

func TestDeleteLikeHelpers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertReminder(ctx, Reminder{Destination: "d", Message: "water the plants", DueAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("InsertReminder: %v", err)
	}
	r, err := s.DeleteReminderLike(ctx, "plants")
	if err != nil || r == nil {
		t.Fatalf("DeleteReminderLike = %+v, %v", r, err)
	}
	if r2, err := s.DeleteReminderLike(ctx, "plants"); err != nil || r2 != nil {
		t.Fatalf("second DeleteReminderLike = %+v, %v; want nil, nil", r2, err)
	}

	if _, err := s.InsertRoutine(ctx, Routine{Destination: "d", TaskName: "morning yoga", TimeOfDay: "06:30"}); err != nil {
		t.Fatalf("InsertRoutine: %v", err)
	}
	if rt, err := s.DeleteRoutineLike(ctx, "yoga"); err != nil || rt == nil {
		t.Fatalf("DeleteRoutineLike = %+v, %v", rt, err)
	}

	if _, err := s.InsertEvent(ctx, Event{Destination: "d", PersonName: "dad", EventType: "birthday", EventDate: "2026-06-01"}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if ev, err := s.DeleteEventLike(ctx, "dad"); err != nil || ev == nil {
		t.Fatalf("DeleteEventLike = %+v, %v", ev, err)
	}
}

func TestContacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertContact(ctx, Contact{Name: "mom", Destination: "911111111111"}); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	// Case-insensitive unique name: update, not duplicate.
	if err := s.UpsertContact(ctx, Contact{Name: "mom", Destination: "922222222222"}); err != nil {
		t.Fatalf("UpsertContact(update): %v", err)
	}

	c, err := s.ContactByName(ctx, "Mom")
	if err != nil {
		t.Fatalf("ContactByName: %v", err)
	}
	if c == nil || c.Destination != "922222222222" {
		t.Fatalf("ContactByName = %+v", c)
	}

	c, err = s.ContactByDestination(ctx, "922222222222")
	if err != nil || c == nil || c.Name != "mom" {
		t.Fatalf("ContactByDestination = %+v, %v", c, err)
	}

	all, err := s.Contacts(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("Contacts = %+v, %v", all, err)
	}
}

func TestAppendInteraction(t *testing.T) {
	s := openTestStore(t)
	if err := s.AppendInteraction(context.Background(), Interaction{
		SenderName: "boss", SenderDest: "911234567890",
		Message: "hi", BotResponse: "hello!",
	}); err != nil {
		t.Fatalf("AppendInteraction: %v", err)
	}
}
