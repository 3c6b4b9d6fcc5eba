package lojack

import (
	"testing"
	"time"
)

func TestResolveAccuracy(t *testing.T) {
	cases := []struct {
		name     string
		accuracy any
		hdop     any
		quality  string
		want     *float64
	}{
		{"hdop scaled", nil, 2.0, "", f(10)},
		{"hdop one", nil, 1.0, "", f(5)},
		{"hdop string", nil, "2.0", "", f(10)},
		{"hdop wins over accuracy", 25.0, 2.0, "", f(10)},
		{"small accuracy treated as hdop", 2.0, nil, "", f(10)},
		{"accuracy at threshold", 15.0, nil, "", f(75)},
		{"large accuracy is meters", 25.0, nil, "", f(25)},
		{"meters as string", "25.0", nil, "", f(25)},
		{"zero accuracy ignored", 0.0, nil, "", nil},
		{"negative accuracy ignored", -3.0, nil, "", nil},
		{"zero hdop falls through", 25.0, 0.0, "", f(25)},
		{"label in accuracy slot", "GOOD", nil, "", f(10)},
		{"quality good", nil, nil, "GOOD", f(10)},
		{"quality lowercase", nil, nil, "good", f(10)},
		{"quality poor", nil, nil, "POOR", f(50)},
		{"quality excellent", nil, nil, "EXCELLENT", f(5)},
		{"quality underscored", nil, nil, "very_poor", f(100)},
		{"quality spaced", nil, nil, "No Fix", f(200)},
		{"unknown label", nil, nil, "UNHEARD_OF", nil},
		{"nothing", nil, nil, "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveAccuracy(tc.accuracy, tc.hdop, tc.quality)
			if !floatPtrEq(got, tc.want) {
				t.Errorf("resolveAccuracy(%v, %v, %q) = %v, want %v",
					tc.accuracy, tc.hdop, tc.quality, fv(got), fv(tc.want))
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	utc := func(y int, mo time.Month, d, h, mi, s int) *time.Time {
		ts := time.Date(y, mo, d, h, mi, s, 0, time.UTC)
		return &ts
	}
	cases := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"rfc3339 z", "2024-01-15T10:30:00Z", utc(2024, 1, 15, 10, 30, 0)},
		{"rfc3339 offset", "2024-01-15T05:30:00-05:00", utc(2024, 1, 15, 10, 30, 0)},
		{"spireon event format", "2024-01-15T10:30:00.000+0000", utc(2024, 1, 15, 10, 30, 0)},
		{"numeric offset no colon", "2024-01-15T11:30:00+0100", utc(2024, 1, 15, 10, 30, 0)},
		{"space separated", "2024-01-15 10:30:00", utc(2024, 1, 15, 10, 30, 0)},
		{"bare iso", "2024-01-15T10:30:00", utc(2024, 1, 15, 10, 30, 0)},
		{"date only", "2024-01-15", utc(2024, 1, 15, 0, 0, 0)},
		{"epoch seconds", float64(1705314600), utc(2024, 1, 15, 10, 30, 0)},
		{"epoch millis", float64(1705314600000), utc(2024, 1, 15, 10, 30, 0)},
		{"epoch int", 1705314600, utc(2024, 1, 15, 10, 30, 0)},
		{"nil", nil, nil},
		{"garbage string", "not a date", nil},
		{"empty string", "", nil},
		{"out of range epoch", 1e15, nil},
		{"bool", true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTimestamp(tc.in)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("parseTimestamp(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if got != nil && !got.Equal(*tc.want) {
				t.Errorf("parseTimestamp(%v) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseTimestampPassthrough(t *testing.T) {
	in := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	got := parseTimestamp(in)
	if got == nil || !got.Equal(in) {
		t.Fatalf("expected passthrough instant, got %v", got)
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC normalization, got %v", got.Location())
	}

	if got := parseTimestamp(&in); got == nil || !got.Equal(in) {
		t.Errorf("expected pointer passthrough, got %v", got)
	}
	var nilPtr *time.Time
	if got := parseTimestamp(nilPtr); got != nil {
		t.Errorf("expected nil for nil pointer, got %v", got)
	}
}

func TestOptionalFloat(t *testing.T) {
	if v := optionalFloat("3.5"); v == nil || *v != 3.5 {
		t.Errorf("expected 3.5 from string, got %v", fv(v))
	}
	if v := optionalFloat(" 7 "); v == nil || *v != 7 {
		t.Errorf("expected trimmed parse, got %v", fv(v))
	}
	if v := optionalFloat("abc"); v != nil {
		t.Errorf("expected nil for non-numeric string, got %v", *v)
	}
	if v := optionalFloat(nil); v != nil {
		t.Errorf("expected nil for nil, got %v", *v)
	}
	if v := optionalFloat(int64(4)); v == nil || *v != 4 {
		t.Errorf("expected 4 from int64, got %v", fv(v))
	}
}

func f(v float64) *float64 { return &v }

func s(v string) *string { return &v }

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fv(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
