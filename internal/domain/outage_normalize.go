package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// ============================================================
// Normalization: heterogeneous upstream JSON → Outage
// ============================================================

var sofiaLocation = loadSofiaLocation()

func loadSofiaLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Sofia")
	if err != nil {
		return time.FixedZone("EET", 2*60*60)
	}
	return loc
}

var bgMonths = [...]string{
	"януари", "февруари", "март", "април", "май", "юни",
	"юли", "август", "септември", "октомври", "ноември", "декември",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeOutage maps one loosely-typed upstream record onto the canonical
// Outage shape. It never fails: absent fields get placeholder values.
func NormalizeOutage(raw map[string]any) Outage {
	location, _ := raw["location"].(map[string]any)

	category := strings.ToLower(firstString(raw["category"]))
	rawType := firstString(raw["type"])

	outageType := TypeScheduled
	switch {
	case category == CategoryEmergency:
		outageType = TypeEmergency
	case category == "" && strings.Contains(strings.ToLower(rawType), emergencyToken):
		outageType = TypeEmergency
		category = CategoryEmergency
	case category == "":
		category = CategoryScheduled
	}

	serviceType, ok := ParseServiceType(firstString(raw["serviceType"], raw["service_type"], rawType))
	if !ok {
		serviceType = ServiceWater
	}

	severity, ok := ParseSeverity(firstString(raw["severity"]))
	if !ok {
		if severity, ok = ParseSeverity(firstString(raw["priority"])); !ok {
			severity = SeverityMedium
		}
	}

	startRaw := firstString(raw["startTime"], raw["start_time"], raw["start"])
	endRaw := firstString(raw["endTime"], raw["end_time"], raw["end"])

	o := Outage{
		ID:          firstString(raw["id"]),
		Source:      orDefault(firstString(raw["source"]), UnknownValue),
		Area:        orDefault(firstString(raw["affectedArea"], nested(location, "address"), raw["area"]), UnknownArea),
		Type:        outageType,
		Category:    category,
		Description: firstString(raw["description"]),
		Start:       orDefault(FormatDisplayTime(startRaw), UnknownValue),
		End:         orDefault(FormatDisplayTime(endRaw), UnknownValue),
		Timestamp:   firstString(raw["startTime"], raw["start_time"], raw["timestamp"], raw["start"]),
		ServiceType: serviceType,
		District:    orDefault(firstString(nested(location, "district"), raw["district"]), UnknownValue),
		Severity:    severity,
	}
	if o.ID == "" {
		o.ID = contentID(o)
	}
	return o
}

// NormalizeOutages applies NormalizeOutage to every record.
func NormalizeOutages(raw []map[string]any) []Outage {
	out := make([]Outage, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeOutage(r))
	}
	return out
}

// ParseTimestamp parses the upstream timestamp formats. Times without a zone
// are read as Sofia local time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, sofiaLocation)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDisplayTime renders s as a Bulgarian date, e.g.
// "15 януари 2025 г., 10:00 ч.". Unparseable input is returned unchanged.
func FormatDisplayTime(s string) string {
	t, ok := ParseTimestamp(s)
	if !ok {
		return s
	}
	t = t.In(sofiaLocation)
	return fmt.Sprintf("%d %s %d г., %02d:%02d ч.",
		t.Day(), bgMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// DedupKey identifies outages that describe the same event.
func (o Outage) DedupKey() string {
	return o.Area + "\x00" + o.Start + "\x00" + o.End + "\x00" + o.Description
}

func contentID(o Outage) string {
	sum := sha256.Sum256([]byte(o.DedupKey()))
	return hex.EncodeToString(sum[:8])
}

func nested(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

// firstString returns the first value that renders to a non-empty string.
func firstString(values ...any) string {
	for _, v := range values {
		if s := toString(v); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
