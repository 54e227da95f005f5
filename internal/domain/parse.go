package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidSnapshot means the payload as a whole could not be read as a
	// snapshot. The caller should keep its previous snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrMalformedEntry marks a single item or hazard that was skipped.
	ErrMalformedEntry = errors.New("malformed snapshot entry")
)

// EntryError describes one skipped item or hazard.
type EntryError struct {
	Section string // "items" or "hazards"
	Index   int    // position within the section
	Key     string // item id or hazard event id, when known
	Err     error
}

func (e *EntryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s[%d] %q: %v", e.Section, e.Index, e.Key, e.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", e.Section, e.Index, e.Err)
}

func (e *EntryError) Unwrap() []error {
	return []error{ErrMalformedEntry, e.Err}
}

type wireItem struct {
	ID            string  `json:"id"`
	State         *string `json:"state"`
	ReportCount   *int    `json:"report_count"`
	LocationLabel string  `json:"location_label"`
	Name          string  `json:"name"`
}

type wireHazard struct {
	EventID   string `json:"event_id"`
	IssueType string `json:"issue_type"`
	Severity  *int   `json:"severity"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
}

// ParseSnapshot decodes a full-state payload. Malformed items and hazards
// are skipped and returned as EntryErrors; only a payload that is not a JSON
// object, or whose items/hazards containers have the wrong shape, yields an
// error wrapping ErrInvalidSnapshot. Unknown top-level fields are ignored.
func ParseSnapshot(data []byte) (Snapshot, []*EntryError, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Snapshot{}, nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if fields == nil {
		return Snapshot{}, nil, fmt.Errorf("%w: payload is null", ErrInvalidSnapshot)
	}

	var (
		snap   Snapshot
		issues []*EntryError
	)

	items, itemIssues, err := parseItems(fields["items"])
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap.Items = items
	issues = append(issues, itemIssues...)

	hazards, hazardIssues, err := parseHazards(fields["hazards"])
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap.Hazards = hazards
	issues = append(issues, hazardIssues...)

	snap.Aux = Aux{
		RainfallMMHr:   floatOrZero(fields["rainfall_mm_hr"]),
		CityWasteIndex: floatOrZero(fields["city_waste_index"]),
		CityRoadIndex:  floatOrZero(fields["city_road_index"]),
	}
	snap.ObservedAt = parseTimestamp(fields["timestamp"])

	return snap, issues, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseItems accepts either an object keyed by item id, whose key order is
// preserved, or an array of item objects carrying their own id.
func parseItems(raw json.RawMessage) ([]ItemState, []*EntryError, error) {
	if isNull(raw) {
		return nil, nil, nil
	}

	type keyed struct {
		key string
		raw json.RawMessage
	}
	var entries []keyed

	switch bytes.TrimSpace(raw)[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, nil, fmt.Errorf("%w: items: %w", ErrInvalidSnapshot, err)
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: items: %w", ErrInvalidSnapshot, err)
			}
			key, _ := tok.(string)
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return nil, nil, fmt.Errorf("%w: items: %w", ErrInvalidSnapshot, err)
			}
			entries = append(entries, keyed{key: key, raw: v})
		}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, nil, fmt.Errorf("%w: items: %w", ErrInvalidSnapshot, err)
		}
		for _, v := range list {
			entries = append(entries, keyed{raw: v})
		}
	default:
		return nil, nil, fmt.Errorf("%w: items must be an object or array", ErrInvalidSnapshot)
	}

	items := make([]ItemState, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	var issues []*EntryError

	for i, e := range entries {
		it, err := parseItem(e.key, e.raw)
		if err != nil {
			issues = append(issues, &EntryError{Section: "items", Index: i, Key: firstNonEmpty(e.key, it.ID), Err: err})
			continue
		}
		if _, dup := seen[it.ID]; dup {
			issues = append(issues, &EntryError{Section: "items", Index: i, Key: it.ID, Err: errors.New("duplicate item id")})
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
	}
	return items, issues, nil
}

// parseItem decodes one item. When the item came from an object, key is the
// authoritative id.
func parseItem(key string, raw json.RawMessage) (ItemState, error) {
	var w wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return ItemState{}, err
	}

	id := strings.TrimSpace(firstNonEmpty(key, w.ID))
	it := ItemState{ID: id, LocationLabel: firstNonEmpty(w.LocationLabel, w.Name)}
	if id == "" {
		return it, errors.New("missing id")
	}
	if w.State == nil {
		return it, errors.New("missing state")
	}
	st, err := ParseState(*w.State)
	if err != nil {
		return it, err
	}
	if w.ReportCount == nil {
		return it, errors.New("missing report_count")
	}
	if *w.ReportCount < 0 {
		return it, fmt.Errorf("negative report_count %d", *w.ReportCount)
	}
	it.State = st
	it.ReportCount = *w.ReportCount
	return it, nil
}

func parseHazards(raw json.RawMessage) ([]Hazard, []*EntryError, error) {
	if isNull(raw) {
		return nil, nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil, fmt.Errorf("%w: hazards: %w", ErrInvalidSnapshot, err)
	}

	hazards := make([]Hazard, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	var issues []*EntryError

	for i, v := range list {
		h, err := parseHazard(v)
		if err != nil {
			issues = append(issues, &EntryError{Section: "hazards", Index: i, Key: h.EventID, Err: err})
			continue
		}
		if _, dup := seen[h.EventID]; dup {
			issues = append(issues, &EntryError{Section: "hazards", Index: i, Key: h.EventID, Err: errors.New("duplicate event_id")})
			continue
		}
		seen[h.EventID] = struct{}{}
		hazards = append(hazards, h)
	}
	return hazards, issues, nil
}

func parseHazard(raw json.RawMessage) (Hazard, error) {
	var w wireHazard
	if err := json.Unmarshal(raw, &w); err != nil {
		return Hazard{}, err
	}
	h := Hazard{
		EventID:   strings.TrimSpace(w.EventID),
		IssueType: w.IssueType,
		FromID:    w.FromID,
		ToID:      w.ToID,
	}
	if h.EventID == "" {
		return h, errors.New("missing event_id")
	}
	if w.Severity == nil {
		return h, errors.New("missing severity")
	}
	if *w.Severity < 1 || *w.Severity > 5 {
		return h, fmt.Errorf("severity %d out of range 1..5", *w.Severity)
	}
	h.Severity = *w.Severity
	return h, nil
}

// floatOrZero reads an auxiliary number; anything else reads as zero.
func floatOrZero(raw json.RawMessage) float64 {
	var v float64
	if isNull(raw) || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	return v
}

// parseTimestamp accepts RFC 3339 with or without a zone; the upstream
// server emits naive ISO timestamps, which are read as UTC.
func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
