package domain

import (
	"sort"
	"time"
)

// FallbackID identifies the placeholder outage served when no data is available.
const FallbackID = "fallback-1"

// FallbackWarningPrefix starts the warning attached to fallback responses.
const FallbackWarningPrefix = "Using fallback data due to error: "

// Dedup keeps the first outage of every (area, start, end, description) group.
func Dedup(outages []Outage) []Outage {
	seen := make(map[string]struct{}, len(outages))
	out := make([]Outage, 0, len(outages))
	for _, o := range outages {
		key := o.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}

// SortNewestFirst orders outages by timestamp descending, in place.
// Outages with unparseable timestamps go last and keep their relative order.
func SortNewestFirst(outages []Outage) {
	times := make(map[string]time.Time, len(outages))
	for _, o := range outages {
		if t, ok := ParseTimestamp(o.Timestamp); ok {
			times[o.Timestamp] = t
		}
	}
	sort.SliceStable(outages, func(i, j int) bool {
		ti, okI := times[outages[i].Timestamp]
		tj, okJ := times[outages[j].Timestamp]
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// FallbackOutages returns the single placeholder record shown when every
// source fails.
func FallbackOutages(now time.Time) []Outage {
	return []Outage{{
		ID:          FallbackID,
		Source:      "Софийска вода",
		Area:        "кв. Център - тестова зона",
		Type:        TypeEmergency,
		Category:    CategoryEmergency,
		Description: "Тестово аварийно прекъсване",
		Start:       "Днес, 10:00 ч.",
		End:         "Днес, 16:00 ч.",
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		ServiceType: ServiceWater,
		District:    "Център",
		Severity:    SeverityHigh,
	}}
}
