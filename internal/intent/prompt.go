package intent

import (
	"fmt"
	"strings"
	"time"
)

// BuildPrompt assembles the single classification request sent to every
// provider in the chain. It embeds the current instant (so relative times
// like "in 5 minutes" resolve against the caller's now, not the provider's
// response time), the output schema, and one worked example per kind.
func BuildPrompt(text string, now time.Time, loc *time.Location) string {
	current := now.In(loc).Format("Monday, 02 Jan 2006 15:04:05 MST")

	var b strings.Builder
	b.WriteString(`You are the brain of a personal messaging assistant.

CRITICAL CONTEXT:
The current date and time right now is: `)
	b.WriteString(current)
	b.WriteString(`.
If the user asks for a relative time like "in 5 minutes", use this current time to calculate the exact HH:MM:SS.

Read the user's message and extract the intent.
You MUST respond with ONLY a valid, raw JSON object. No markdown, no conversational text.

Use this exact JSON structure:
{
  "intent": "reminder" | "routine" | "event" | "instant_message" | "chat" | "query_birthday" | "query_schedule" | "query_routines" | "query_contacts" | "query_reminders" | "query_events" | "delete_task" | "unknown",
  "targetName": "self" (when the message concerns the owner) OR the extracted name,
  "time": "HH:MM:SS" (24-hour, when a time is mentioned or calculated; null otherwise),
  "date": "YYYY-MM-DD" (when a specific date is mentioned or calculated; null otherwise),
  "taskOrMessage": "the cleaned up task or message; for chat, the reply text itself; for deletions, what to delete"
}

Examples:
`)
	for _, ex := range promptExamples {
		fmt.Fprintf(&b, "Message: %q\nJSON: %s\n\n", ex.message, ex.json)
	}

	fmt.Fprintf(&b, "Now, analyze this message:\nMessage: %q\n", text)
	return b.String()
}

// One worked example per kind; few-shot guidance only, never parsed.
var promptExamples = []struct {
	message string
	json    string
}{
	{"Remind me in 5 minutes to check logs",
		`{"intent": "reminder", "targetName": "self", "time": "14:12:00", "date": null, "taskOrMessage": "check logs"}`},
	{"Set a daily routine to drink water at 9 AM",
		`{"intent": "routine", "targetName": "self", "time": "09:00:00", "date": null, "taskOrMessage": "drink water"}`},
	{"Manu's birthday is on Feb 9th 2026",
		`{"intent": "event", "targetName": "manu", "time": null, "date": "2026-02-09", "taskOrMessage": "birthday"}`},
	{"Shoot a message to dad that I will be 10 minutes late",
		`{"intent": "instant_message", "targetName": "dad", "time": null, "date": null, "taskOrMessage": "I will be 10 minutes late"}`},
	{"Tell me a joke",
		`{"intent": "chat", "targetName": null, "time": null, "date": null, "taskOrMessage": "Why do programmers prefer dark mode? Because light attracts bugs!"}`},
	{"When is Manu's birthday?",
		`{"intent": "query_birthday", "targetName": "manu", "time": null, "date": null, "taskOrMessage": null}`},
	{"What is my schedule for tomorrow?",
		`{"intent": "query_schedule", "targetName": "self", "time": null, "date": "2026-02-28", "taskOrMessage": null}`},
	{"List my daily routines",
		`{"intent": "query_routines", "targetName": "self", "time": null, "date": null, "taskOrMessage": null}`},
	{"What contacts do you have?",
		`{"intent": "query_contacts", "targetName": "self", "time": null, "date": null, "taskOrMessage": null}`},
	{"Show me all active reminders",
		`{"intent": "query_reminders", "targetName": "self", "time": null, "date": null, "taskOrMessage": null}`},
	{"What are my special events?",
		`{"intent": "query_events", "targetName": "self", "time": null, "date": null, "taskOrMessage": null}`},
	{"Delete the reminder to drink water",
		`{"intent": "delete_task", "targetName": "self", "time": null, "date": null, "taskOrMessage": "drink water"}`},
}
