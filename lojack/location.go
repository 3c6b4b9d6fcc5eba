package lojack

import (
	"strings"
	"time"
)

// Location is a single position fix with whatever telemetry accompanied it.
// It is a value: fields are nil when the vendor payload did not carry them,
// and the original payload is preserved verbatim in Raw.
type Location struct {
	Latitude  *float64
	Longitude *float64
	Timestamp *time.Time

	Speed    *float64
	Heading  *float64
	Accuracy *float64

	Odometer       *float64
	BatteryVoltage *float64
	EngineHours    *float64
	DistanceDriven *float64
	SignalStrength *float64
	GPSFixQuality  *string

	EventType *string
	EventID   *string

	Address *string

	Raw map[string]any
}

// LocationFromAPI normalizes an asset lastLocation payload. Malformed or
// missing fields degrade to nil; the constructor never fails.
func LocationFromAPI(data map[string]any) Location {
	if data == nil {
		data = map[string]any{}
	}
	coords := childObject(data, "coordinates")

	loc := Location{Raw: data}
	loc.Latitude = coordValue(data, coords, "latitude", "lat")
	loc.Longitude = coordValue(data, coords, "longitude", "lng", "lon")
	loc.Timestamp = parseTimestamp(firstValue(data, "timestamp", "time", "dateTime", "fixTime"))
	loc.Speed = optionalFloat(firstValue(data, "speed"))
	loc.Heading = optionalFloat(firstValue(data, "heading", "bearing", "direction"))
	loc.Accuracy = resolveAccuracy(
		firstValue(data, "accuracy", "gpsAccuracy"),
		firstValue(data, "hdop"),
		stringValue(firstValue(data, "fixQuality", "gpsQuality")),
	)
	loc.Address = addressValue(firstValue(data, "address", "formattedAddress"))
	return loc
}

// LocationFromEvent normalizes a discrete event payload, which carries the
// same position fields plus event identity and telemetry.
func LocationFromEvent(data map[string]any) Location {
	if data == nil {
		data = map[string]any{}
	}
	// Events sometimes nest the fix under a location container.
	base := data
	if nested := childObject(data, "location"); nested != nil {
		merged := make(map[string]any, len(nested)+len(data))
		for k, v := range nested {
			merged[k] = v
		}
		for k, v := range data {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
		base = merged
	}

	loc := LocationFromAPI(base)
	loc.Raw = data

	if loc.Timestamp == nil {
		loc.Timestamp = parseTimestamp(firstValue(data, "eventDateTime", "messageDateTime", "date"))
	}
	loc.EventID = optionalString(firstValue(data, "id", "eventId"))
	loc.EventType = optionalString(firstValue(data, "eventType", "type", "name"))

	attrs := childObject(data, "attributes")
	loc.Odometer = telemetryValue(data, attrs, "odometer", "odo")
	loc.BatteryVoltage = telemetryValue(data, attrs, "batteryVoltage", "battery_voltage", "extVolts")
	loc.EngineHours = telemetryValue(data, attrs, "engineHours", "engine_hours")
	loc.DistanceDriven = telemetryValue(data, attrs, "distanceDriven", "tripDistance")
	loc.SignalStrength = telemetryValue(data, attrs, "signalStrength", "rssi")
	if loc.GPSFixQuality == nil {
		loc.GPSFixQuality = optionalString(firstValue(data, "fixQuality", "gpsFixQuality", "gpsQuality"))
	}
	return loc
}

// EnrichLocation merges telemetry into base and returns the merged value.
// A telemetry field is adopted only where base has none; the timestamp is
// the one exception and is adopted whenever telemetry's is strictly later.
// The vendor's polled asset state has fresh coordinates but stale or
// missing telemetry, while the latest event has rich telemetry that may
// reflect an older fix.
func EnrichLocation(base, telemetry Location) Location {
	merged := base
	if merged.Speed == nil {
		merged.Speed = telemetry.Speed
	}
	if merged.Heading == nil {
		merged.Heading = telemetry.Heading
	}
	if merged.Odometer == nil {
		merged.Odometer = telemetry.Odometer
	}
	if merged.BatteryVoltage == nil {
		merged.BatteryVoltage = telemetry.BatteryVoltage
	}
	if merged.EngineHours == nil {
		merged.EngineHours = telemetry.EngineHours
	}
	if merged.DistanceDriven == nil {
		merged.DistanceDriven = telemetry.DistanceDriven
	}
	if merged.SignalStrength == nil {
		merged.SignalStrength = telemetry.SignalStrength
	}
	if merged.GPSFixQuality == nil {
		merged.GPSFixQuality = telemetry.GPSFixQuality
	}
	if merged.EventType == nil {
		merged.EventType = telemetry.EventType
	}
	if merged.EventID == nil {
		merged.EventID = telemetry.EventID
	}
	if merged.Address == nil {
		merged.Address = telemetry.Address
	}
	if telemetry.Timestamp != nil {
		if merged.Timestamp == nil || telemetry.Timestamp.After(*merged.Timestamp) {
			merged.Timestamp = telemetry.Timestamp
		}
	}
	return merged
}

// HasFix reports whether the location carries coordinates.
func (l Location) HasFix() bool {
	return l.Latitude != nil && l.Longitude != nil
}

func coordValue(data, coords map[string]any, keys ...string) *float64 {
	if v := optionalFloat(firstValue(data, keys...)); v != nil {
		return v
	}
	if coords != nil {
		return optionalFloat(firstValue(coords, keys...))
	}
	return nil
}

func telemetryValue(data, attrs map[string]any, keys ...string) *float64 {
	if v := optionalFloat(firstValue(data, keys...)); v != nil {
		return v
	}
	if attrs != nil {
		return optionalFloat(firstValue(attrs, keys...))
	}
	return nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// addressValue accepts either a preformatted address string or a component
// object with line1/city/stateOrProvince/postalCode parts.
func addressValue(v any) *string {
	switch val := v.(type) {
	case string:
		if val != "" {
			return &val
		}
	case map[string]any:
		return assembleAddress(val)
	}
	return nil
}

// assembleAddress builds one display string from address components:
// line and city groups join with ", ", state and zip with a single space.
// An object with no populated parts yields nil, not an empty string.
func assembleAddress(addr map[string]any) *string {
	if formatted := optionalString(firstValue(addr, "formattedAddress", "address")); formatted != nil {
		return formatted
	}
	var groups []string
	if line1 := optionalString(firstValue(addr, "line1", "street")); line1 != nil {
		groups = append(groups, *line1)
	}
	if city := optionalString(firstValue(addr, "city")); city != nil {
		groups = append(groups, *city)
	}
	var stateZip []string
	if state := optionalString(firstValue(addr, "stateOrProvince", "state")); state != nil {
		stateZip = append(stateZip, *state)
	}
	if zip := optionalString(firstValue(addr, "postalCode", "zip")); zip != nil {
		stateZip = append(stateZip, *zip)
	}
	if len(stateZip) > 0 {
		groups = append(groups, strings.Join(stateZip, " "))
	}
	if len(groups) == 0 {
		return nil
	}
	out := strings.Join(groups, ", ")
	return &out
}
