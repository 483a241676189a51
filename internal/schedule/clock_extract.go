package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// clockRe matches "3:55 PM", "3.55pm", "11:05 AM" and the like.
var clockRe = regexp.MustCompile(`(?i)(\d{1,2})[:.](\d{2})\s?(AM|PM)`)

var timePhraseRe = regexp.MustCompile(`(?i)(at\s+)?\d{1,2}[:.]\d{2}\s?(AM|PM)`)
var remindRe = regexp.MustCompile(`(?i)remind\s*(me)?`)
var leadGrammarRe = regexp.MustCompile(`(?i)^(to|that|about|for)\s+`)
var spacesRe = regexp.MustCompile(`\s+`)

// ExtractClockTime pulls an "H:MM AM/PM" phrase out of free text and turns
// it into the next matching instant in loc, moved one minute earlier so the
// reminder lands before the named moment. Returns ok=false when the text has
// no recognizable clock time.
//
// This is the no-provider fallback for reminder creation; the resolver's
// providers normally do this job.
func ExtractClockTime(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 12 || minute > 59 {
		return time.Time{}, false
	}
	period := strings.ToUpper(m[3])
	if period == "PM" && hour != 12 {
		hour += 12
	}
	if period == "AM" && hour == 12 {
		hour = 0
	}

	at := NextInstant(TimeOfDay{Hour: hour, Minute: minute}, now, loc)
	return at.Add(-time.Minute), true
}

// CleanReminderText strips the scheduling scaffolding ("remind me", the
// clock phrase, an optional group name, leading grammar words) and leaves
// the task description.
func CleanReminderText(text, groupName string) string {
	cleaned := remindRe.ReplaceAllString(text, "")
	if g := strings.TrimSpace(groupName); g != "" {
		if re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(g) + `\b`); err == nil {
			cleaned = re.ReplaceAllString(cleaned, "")
		}
	}
	cleaned = timePhraseRe.ReplaceAllString(cleaned, "")
	cleaned = leadGrammarRe.ReplaceAllString(strings.TrimSpace(cleaned), "")
	cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return "You have a scheduled reminder!"
	}
	return cleaned
}
