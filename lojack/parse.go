package lojack

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Spireon mixes HDOP, literal meters, and qualitative labels for GPS
// accuracy depending on endpoint and device firmware. Values at or below
// the threshold look like HDOP figures and are scaled; larger values are
// taken as meters.
const (
	hdopMeterScale   = 5.0
	hdopMaxPlausible = 15.0
)

var gpsQualityMeters = map[string]float64{
	"EXCELLENT": 5,
	"GOOD":      10,
	"MODERATE":  25,
	"FAIR":      25,
	"POOR":      50,
	"BAD":       100,
	"VERYPOOR":  100,
	"NOFIX":     200,
}

// optionalFloat coerces a JSON value to a float, returning nil for anything
// that is not a number or a numeric string.
func optionalFloat(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return &f
		}
	}
	return nil
}

func optionalInt(v any) *int {
	if f := optionalFloat(v); f != nil {
		i := int(*f)
		return &i
	}
	return nil
}

func optionalString(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

func optionalBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

// Epoch values at or above this magnitude cannot be seconds for any
// plausible calendar date and are read as milliseconds.
const epochMillisCutoff = 1e12

// parseTimestamp converts the timestamp representations the vendor emits
// (ISO-8601 with Z or offset, space-separated date-time, Unix seconds or
// milliseconds, or an already-typed instant) into a UTC instant. Unparseable
// or out-of-range input yields nil, never an error.
func parseTimestamp(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		t := val.UTC()
		return &t
	case *time.Time:
		if val == nil {
			return nil
		}
		t := val.UTC()
		return &t
	case string:
		return parseTimestampString(val)
	default:
		if f := optionalFloat(v); f != nil {
			return parseEpoch(*f)
		}
	}
	return nil
}

func parseEpoch(v float64) *time.Time {
	if v >= epochMillisCutoff || v <= -epochMillisCutoff {
		v /= 1000
	}
	// Reject magnitudes no calendar library can represent.
	if v >= epochMillisCutoff || v <= -epochMillisCutoff {
		return nil
	}
	t := time.Unix(int64(v), 0).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return nil
	}
	return &t
}

var timestampLayouts = []string{
	time.RFC3339, // 2024-01-15T10:30:00Z, explicit colon offsets
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700", // Spireon event format: .999+0000
	"2006-01-02T15:04:05-0700",     // numeric offset without colon
	"2006-01-02 15:04:05",          // space-separated date-time
	"2006-01-02T15:04:05",          // bare ISO, assume UTC
	"2006-01-02",
}

func parseTimestampString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// resolveAccuracy turns the vendor's GPS quality signals into meters.
// Precedence: explicit HDOP, then a numeric accuracy (HDOP-scale at or
// below the threshold, meters above it), then a categorical label found in
// the accuracy slot, then the separate quality label.
func resolveAccuracy(accuracy, hdop any, quality string) *float64 {
	if h := optionalFloat(hdop); h != nil && *h > 0 {
		m := *h * hdopMeterScale
		return &m
	}
	if a := optionalFloat(accuracy); a != nil {
		if *a > 0 {
			if *a <= hdopMaxPlausible {
				m := *a * hdopMeterScale
				return &m
			}
			m := *a
			return &m
		}
	} else if s, ok := accuracy.(string); ok {
		if m := qualityLabelMeters(s); m != nil {
			return m
		}
	}
	return qualityLabelMeters(quality)
}

func qualityLabelMeters(label string) *float64 {
	key := strings.ToUpper(label)
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, " ", "")
	if m, ok := gpsQualityMeters[key]; ok {
		return &m
	}
	return nil
}

// firstValue returns the first non-nil value among the given keys.
func firstValue(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := data[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func childObject(data map[string]any, key string) map[string]any {
	if m, ok := data[key].(map[string]any); ok {
		return m
	}
	return nil
}
