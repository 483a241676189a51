package telegram

import "testing"

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()
	d := Destination(-1001234567890)
	if d != "tg:-1001234567890" {
		t.Fatalf("Destination = %q", d)
	}
	id, err := ParseDestination(d)
	if err != nil {
		t.Fatalf("ParseDestination: %v", err)
	}
	if id != -1001234567890 {
		t.Fatalf("id = %d", id)
	}
}

func TestParseDestinationRejectsForeign(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"911234567890", "tg:", "tg:abc", ""} {
		if _, err := ParseDestination(raw); err == nil {
			t.Fatalf("ParseDestination(%q): expected error", raw)
		}
	}
}
