package intent

import (
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
)

// ExtractIntent pulls one JSON object out of raw provider output. Providers
// (the primary especially) may wrap the object in prose or markdown fences,
// so the search is permissive: take the widest {...} span, and when that is
// not valid JSON, run it through jsonrepair before giving up.
func ExtractIntent(raw string) (Intent, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Intent{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	candidate := raw[start : end+1]

	if !gjson.Valid(candidate) {
		fixed, err := jsonrepair.JSONRepair(candidate)
		if err != nil || !gjson.Valid(fixed) {
			return Intent{}, fmt.Errorf("%w: unparseable JSON object", ErrMalformedResponse)
		}
		candidate = fixed
	}

	doc := gjson.Parse(candidate)
	kindField := doc.Get("intent")
	if !kindField.Exists() {
		return Intent{}, fmt.Errorf("%w: missing intent field", ErrMalformedResponse)
	}
	kind := Kind(strings.TrimSpace(kindField.String()))
	if !validKinds[kind] {
		return Intent{}, fmt.Errorf("%w: unknown intent %q", ErrMalformedResponse, kind)
	}

	in := Intent{
		Kind:       kind,
		TargetName: strings.TrimSpace(doc.Get("targetName").String()),
		Time:       strings.TrimSpace(doc.Get("time").String()),
		Date:       strings.TrimSpace(doc.Get("date").String()),
		Payload:    doc.Get("taskOrMessage").String(),
	}
	if in.TargetName == "" || strings.EqualFold(in.TargetName, "you") {
		in.TargetName = TargetSelf
	}
	return in, nil
}
