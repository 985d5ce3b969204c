package domain

import (
	"math"
	"time"
)

// Item represents a single entry of a shared list.
type Item struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Checked bool     `json:"checked"`
	Tags    []string `json:"tags"`
	// Pos orders items for display. Clients may send fractional values to
	// insert between neighbours; every write renumbers to 0..N-1.
	Pos float64 `json:"pos"`
	// UpdatedAt is the client supplied logical clock in epoch milliseconds.
	UpdatedAt int64 `json:"updated_at"`
}

// NowMillis converts t to epoch milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// NormalizeItem coerces a decoded JSON record into an Item.
//
// raw is expected to be the generic form produced by a JSON decoder
// (map[string]any, float64 numbers). Missing or invalid positions fall back to
// fallbackPos and missing or invalid timestamps to now.
func NormalizeItem(raw any, fallbackPos int, now int64) (Item, error) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return Item{}, &ValidationError{Kind: KindNotAnObject, Index: fallbackPos}
	}

	id, ok := rec["id"].(string)
	if !ok || id == "" {
		return Item{}, &ValidationError{Kind: KindMissingID, Index: fallbackPos}
	}
	label, ok := rec["label"].(string)
	if !ok {
		return Item{}, &ValidationError{Kind: KindMissingLabel, Index: fallbackPos, ItemID: id}
	}
	checked, ok := rec["checked"].(bool)
	if !ok {
		return Item{}, &ValidationError{Kind: KindMissingChecked, Index: fallbackPos, ItemID: id}
	}

	item := Item{
		ID:        id,
		Label:     label,
		Checked:   checked,
		Tags:      normalizeTags(rec["tags"]),
		Pos:       float64(fallbackPos),
		UpdatedAt: now,
	}
	if pos, ok := finiteNumber(rec["pos"]); ok {
		item.Pos = pos
	}
	if ts, ok := finiteNumber(rec["updated_at"]); ok && ts > 0 {
		if ms := int64(ts); ms > 0 {
			item.UpdatedAt = ms
		}
	}
	return item, nil
}

func normalizeTags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(list))
	for _, entry := range list {
		if s, ok := entry.(string); ok && s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}

func finiteNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
