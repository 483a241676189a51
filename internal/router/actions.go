package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"manvibot/internal/intent"
	"manvibot/internal/schedule"
	"manvibot/internal/storage"
	logx "manvibot/pkg/logx"
)

const (
	dbErrorReply   = "Oops, I ran into a database error trying to save that. 🚨"
	ownerOnlyReply = "Sorry, only my boss can ask me that. 🙈"
)

func (s *Service) dispatchIntent(ctx context.Context, res intent.Intent, env dispatchEnv) {
	switch res.Kind {
	case intent.KindChat:
		env.respond(res.Payload)

	case intent.KindProviderError:
		env.respond(res.Payload)

	case intent.KindDeleteTask:
		if !env.isOwner {
			env.respond(ownerOnlyReply)
			return
		}
		s.deleteTask(ctx, res.Payload, env)

	case intent.KindQueryContacts:
		if !env.isOwner {
			env.respond(ownerOnlyReply)
			return
		}
		s.listContacts(ctx, env)

	case intent.KindQueryReminders:
		if !env.isOwner {
			env.respond(ownerOnlyReply)
			return
		}
		s.listReminders(ctx, env)

	case intent.KindQueryRoutines:
		if !env.isOwner {
			env.respond(ownerOnlyReply)
			return
		}
		s.listRoutines(ctx, env)

	case intent.KindQueryEvents:
		if !env.isOwner {
			env.respond(ownerOnlyReply)
			return
		}
		s.listEvents(ctx, env)

	case intent.KindQueryBirthday:
		person := env.targetName
		if person == "you" {
			person = s.ownerName()
		}
		ev, err := s.store.EventByPerson(ctx, person, "birthday")
		if err != nil {
			env.respond(dbErrorReply)
			return
		}
		if ev == nil {
			env.respond("I don't have a birthday saved for " + person + " yet. 🤔")
			return
		}
		env.respond(fmt.Sprintf("🎂 %s's birthday is on %s!", titleCase(ev.PersonName), formatEventDate(ev.EventDate)))

	case intent.KindQuerySchedule:
		if res.Date == "" {
			env.respond("Which date do you want the schedule for? 📅")
			return
		}
		s.daySchedule(ctx, res.Date, env)

	case intent.KindEvent:
		if res.Date == "" {
			env.respond("What date is that on? I need a date to save the event. 📅")
			return
		}
		eventType := strings.TrimSpace(res.Payload)
		if eventType == "" {
			eventType = "event"
		}
		person := env.targetName
		if person == "you" {
			person = s.ownerName()
		}
		_, err := s.store.InsertEvent(ctx, storage.Event{
			Destination: env.targetDest,
			PersonName:  person,
			EventType:   eventType,
			EventDate:   res.Date,
		})
		if err != nil {
			env.respond(dbErrorReply)
			return
		}
		env.respond(fmt.Sprintf("🎉 Noted! %s's %s on %s. I'll remember it every year.",
			titleCase(person), eventType, formatEventDate(res.Date)))

	case intent.KindRoutine:
		if res.Time == "" {
			env.respond("What time every day? I need a time to set the routine. ⏰")
			return
		}
		tod, err := schedule.ParseTimeOfDay(res.Time)
		if err != nil {
			env.respond("I couldn't make sense of that time. Try something like \"9:30 AM\".")
			return
		}
		task := strings.TrimSpace(res.Payload)
		if task == "" {
			task = "your routine"
		}
		if _, err := s.store.InsertRoutine(ctx, storage.Routine{
			Destination: env.targetDest,
			TaskName:    task,
			TimeOfDay:   tod.HHMM(),
			Active:      true,
		}); err != nil {
			env.respond(dbErrorReply)
			return
		}
		env.respond(fmt.Sprintf("🔄 Routine set! I'll remind %s to %s every day at %s.",
			env.targetName, task, tod.HHMM()))

	case intent.KindInstantMessage:
		s.forwardMessage(ctx, res, env)

	case intent.KindReminder:
		s.createReminder(ctx, res, env)

	default:
		env.respond("I'm not sure what you meant there. Could you rephrase? 🙏")
	}
}

func (s *Service) createReminder(ctx context.Context, res intent.Intent, env dispatchEnv) {
	due, ok := s.reminderDue(res, env)
	if !ok {
		env.respond("Sure! What time should I set the reminder for? ⏰")
		return
	}
	label := ""
	if env.targetName != "you" {
		label = env.targetName
	}
	msg := strings.TrimSpace(res.Payload)
	if msg == "" {
		msg = schedule.CleanReminderText(env.raw, label)
	}
	if _, err := s.store.InsertReminder(ctx, storage.Reminder{
		Destination: env.targetDest,
		Message:     msg,
		DueAt:       due,
		Status:      storage.StatusPending,
		GroupLabel:  label,
	}); err != nil {
		env.respond(dbErrorReply)
		return
	}
	env.respond(fmt.Sprintf("⏰ Got it! I'll remind %s at %s.",
		env.targetName, due.In(s.loc).Format("3:04 PM on Jan 2")))
}

// reminderDue resolves the due instant for a reminder request. The
// provider's time field wins; failing that the raw text is scanned for a
// clock phrase before giving up and asking.
func (s *Service) reminderDue(res intent.Intent, env dispatchEnv) (time.Time, bool) {
	if res.Time != "" {
		if tod, err := schedule.ParseTimeOfDay(res.Time); err == nil {
			return schedule.NextInstant(tod, env.now, s.loc), true
		}
	}
	if due, ok := schedule.ExtractClockTime(env.raw, env.now, s.loc); ok {
		return due, true
	}
	return time.Time{}, false
}

func (s *Service) forwardMessage(ctx context.Context, res intent.Intent, env dispatchEnv) {
	msg := strings.TrimSpace(res.Payload)
	if msg == "" {
		msg = env.raw
	}
	if env.targetDest == env.sender {
		env.respond(msg)
		return
	}
	out := fmt.Sprintf("✉️ Message from %s: %s", env.senderName, msg)
	if err := s.notif.Send(ctx, env.targetDest, out); err != nil {
		s.log.Warn("forward failed",
			logx.String("destination", env.targetDest), logx.Err(err))
		env.respond("I couldn't deliver that message right now. 😕 Please try again in a bit.")
		return
	}
	env.respond(fmt.Sprintf("Sent! ✅ Your message is on its way to %s.", env.targetName))
}

func (s *Service) deleteTask(ctx context.Context, hint string, env dispatchEnv) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		env.respond("Which task should I delete? Give me a few words from it. 🗑️")
		return
	}
	if r, err := s.store.DeleteReminderLike(ctx, hint); err != nil {
		env.respond(dbErrorReply)
		return
	} else if r != nil {
		env.respond(fmt.Sprintf("🗑️ Deleted the reminder: \"%s\".", r.Message))
		return
	}
	if rt, err := s.store.DeleteRoutineLike(ctx, hint); err != nil {
		env.respond(dbErrorReply)
		return
	} else if rt != nil {
		env.respond(fmt.Sprintf("🗑️ Deleted the daily routine: \"%s\".", rt.TaskName))
		return
	}
	if ev, err := s.store.DeleteEventLike(ctx, hint); err != nil {
		env.respond(dbErrorReply)
		return
	} else if ev != nil {
		env.respond(fmt.Sprintf("🗑️ Deleted %s's %s.", titleCase(ev.PersonName), ev.EventType))
		return
	}
	env.respond("I couldn't find a matching task to delete. 🤔")
}

func (s *Service) listContacts(ctx context.Context, env dispatchEnv) {
	contacts, err := s.store.Contacts(ctx)
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	if len(contacts) == 0 {
		env.respond("The address book is empty.")
		return
	}
	var b strings.Builder
	b.WriteString("📒 Saved contacts:\n")
	for _, c := range contacts {
		fmt.Fprintf(&b, "• %s — %s\n", titleCase(c.Name), c.Destination)
	}
	env.respond(strings.TrimRight(b.String(), "\n"))
}

func (s *Service) listReminders(ctx context.Context, env dispatchEnv) {
	items, err := s.store.UpcomingReminders(ctx, env.now)
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	if len(items) == 0 {
		env.respond("No upcoming reminders. You're all clear! ✨")
		return
	}
	var b strings.Builder
	b.WriteString("📌 Upcoming reminders:\n")
	for _, r := range items {
		msg := r.Message
		if r.GroupLabel != "" {
			msg = "[" + r.GroupLabel + "] " + msg
		}
		fmt.Fprintf(&b, "• %s at %s\n", msg, r.DueAt.In(s.loc).Format("3:04 PM, Jan 2"))
	}
	env.respond(strings.TrimRight(b.String(), "\n"))
}

func (s *Service) listRoutines(ctx context.Context, env dispatchEnv) {
	items, err := s.store.ActiveRoutines(ctx)
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	if len(items) == 0 {
		env.respond("No daily routines set up yet.")
		return
	}
	var b strings.Builder
	b.WriteString("🔄 Daily routines:\n")
	for _, rt := range items {
		fmt.Fprintf(&b, "• %s at %s\n", rt.TaskName, rt.TimeOfDay)
	}
	env.respond(strings.TrimRight(b.String(), "\n"))
}

func (s *Service) listEvents(ctx context.Context, env dispatchEnv) {
	items, err := s.store.Events(ctx)
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	if len(items) == 0 {
		env.respond("No saved events yet.")
		return
	}
	var b strings.Builder
	b.WriteString("🎉 Saved events:\n")
	for _, ev := range items {
		fmt.Fprintf(&b, "• %s's %s on %s\n",
			titleCase(ev.PersonName), ev.EventType, formatEventDate(ev.EventDate))
	}
	env.respond(strings.TrimRight(b.String(), "\n"))
}

func (s *Service) daySchedule(ctx context.Context, date string, env dispatchEnv) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		env.respond("I couldn't read that date. Try something like \"2026-02-09\".")
		return
	}
	events, err := s.store.EventsOnDate(ctx, date)
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	reminders, err := s.store.RemindersBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		env.respond(dbErrorReply)
		return
	}
	if len(events) == 0 && len(reminders) == 0 {
		env.respond(fmt.Sprintf("Nothing on the calendar for %s. 🌴", day.Format("Jan 2")))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ Schedule for %s:\n", day.Format("Jan 2"))
	for _, ev := range events {
		fmt.Fprintf(&b, "• %s's %s\n", titleCase(ev.PersonName), ev.EventType)
	}
	for _, r := range reminders {
		fmt.Fprintf(&b, "• %s at %s\n", r.Message, r.DueAt.In(s.loc).Format("3:04 PM"))
	}
	env.respond(strings.TrimRight(b.String(), "\n"))
}

// formatEventDate renders "YYYY-MM-DD" as a human date, falling back to
// the raw string when it does not parse.
func formatEventDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("January 2")
}
