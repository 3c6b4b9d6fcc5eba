package lojack

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// trackerServices serves an asset snapshot with fresh coordinates and an
// event stream with older but telemetry-rich fixes.
func trackerServices(t *testing.T, locateAccepted bool) func(method, path string, body any, headers http.Header) (any, error) {
	return func(method, path string, body any, headers http.Header) (any, error) {
		switch {
		case method == http.MethodGet && path == "/assets/dev-1":
			return map[string]any{
				"id":                   "dev-1",
				"name":                 "Tracker",
				"locationLastReported": "2024-01-15T11:00:00Z",
				"lastLocation":         map[string]any{"lat": 37.1, "lng": -122.1},
			}, nil
		case method == http.MethodGet && path == "/assets/dev-1/events":
			return map[string]any{"content": []any{map[string]any{
				"eventDateTime": "2024-01-15T10:00:00.000+0000",
				"eventType":     "IGNITION_ON",
				"location":      map[string]any{"lat": 37.0, "lng": -122.0},
				"attributes":    map[string]any{"batteryVoltage": 12.7, "odometer": 8000.0},
			}}}, nil
		case method == http.MethodPost && path == "/assets/dev-1/commands":
			if locateAccepted {
				return map[string]any{"id": "cmd-1"}, nil
			}
			return map[string]any{}, nil
		}
		t.Fatalf("unexpected request %s %s", method, path)
		return nil, nil
	}
}

func TestDeviceRefreshMergesSnapshotAndEvent(t *testing.T) {
	client, services := newTestClient(t, trackerServices(t, true))
	asset, err := client.GetDevice(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	device := asset.(*Device)

	loc, err := device.Location(context.Background(), false)
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc == nil || !loc.HasFix() {
		t.Fatal("expected a fix")
	}
	// Coordinates come from the fresher snapshot.
	if *loc.Latitude != 37.1 || *loc.Longitude != -122.1 {
		t.Errorf("expected snapshot coordinates, got %v,%v", *loc.Latitude, *loc.Longitude)
	}
	// Telemetry comes from the event.
	if loc.BatteryVoltage == nil || *loc.BatteryVoltage != 12.7 {
		t.Errorf("expected event battery voltage, got %v", fv(loc.BatteryVoltage))
	}
	if loc.Odometer == nil || *loc.Odometer != 8000 {
		t.Errorf("expected event odometer, got %v", fv(loc.Odometer))
	}
	if loc.EventType == nil || *loc.EventType != "IGNITION_ON" {
		t.Errorf("expected event type adopted, got %v", loc.EventType)
	}
	// The snapshot timestamp is later and wins.
	want := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	if loc.Timestamp == nil || !loc.Timestamp.Equal(want) {
		t.Errorf("expected snapshot timestamp, got %v", loc.Timestamp)
	}

	// A second call without force serves the cache.
	before := services.calls.Load()
	if _, err := device.Location(context.Background(), false); err != nil {
		t.Fatalf("cached location: %v", err)
	}
	if services.calls.Load() != before {
		t.Error("expected cached location without requests")
	}
	if device.LastRefresh() == nil {
		t.Error("expected last refresh recorded")
	}

	// Force bypasses the cache.
	if _, err := device.Location(context.Background(), true); err != nil {
		t.Fatalf("forced location: %v", err)
	}
	if services.calls.Load() == before {
		t.Error("expected forced refresh to hit the api")
	}
}

func TestDeviceRefreshEventOnly(t *testing.T) {
	client, _ := newTestClient(t, func(method, path string, body any, headers http.Header) (any, error) {
		switch {
		case method == http.MethodGet && path == "/assets/dev-1/events":
			return []any{map[string]any{
				"lat": 37.0, "lng": -122.0,
				"eventDateTime": "2024-01-15T10:00:00Z",
			}}, nil
		case method == http.MethodGet && path == "/assets/dev-1":
			// No lastLocation on the asset.
			return map[string]any{"id": "dev-1"}, nil
		}
		return nil, nil
	})
	device := newDevice(client, DeviceInfo{ID: "dev-1"})

	loc, err := device.Location(context.Background(), false)
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc == nil || !loc.HasFix() || *loc.Latitude != 37.0 {
		t.Fatalf("expected event fix, got %v", loc)
	}
}

func TestRequestLocationUpdateRejected(t *testing.T) {
	client, _ := newTestClient(t, trackerServices(t, false))
	device := newDevice(client, DeviceInfo{ID: "dev-1"})

	err := device.RequestLocationUpdate(context.Background())
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.Command != "locate" || cmdErr.DeviceID != "dev-1" {
		t.Errorf("unexpected command error %+v", cmdErr)
	}

	client, _ = newTestClient(t, trackerServices(t, true))
	device = newDevice(client, DeviceInfo{ID: "dev-1"})
	if err := device.RequestLocationUpdate(context.Background()); err != nil {
		t.Fatalf("expected accepted command, got %v", err)
	}
}

func TestRequestFreshLocation(t *testing.T) {
	client, services := newTestClient(t, trackerServices(t, true))
	device := newDevice(client, DeviceInfo{ID: "dev-1"})

	baseline, err := device.RequestFreshLocation(context.Background())
	if err != nil {
		t.Fatalf("request fresh location: %v", err)
	}
	want := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	if baseline == nil || !baseline.Equal(want) {
		t.Errorf("expected baseline from current fix, got %v", baseline)
	}
	last := services.lastRequest()
	if last.method != http.MethodPost || last.path != "/assets/dev-1/commands" {
		t.Errorf("expected locate command sent, got %s %s", last.method, last.path)
	}
}

func TestRequestFreshLocationLocateFailureKeepsBaseline(t *testing.T) {
	client, _ := newTestClient(t, func(method, path string, body any, headers http.Header) (any, error) {
		switch {
		case method == http.MethodGet && path == "/assets/dev-1":
			return map[string]any{
				"id":                   "dev-1",
				"locationLastReported": "2024-01-15T11:00:00Z",
				"lastLocation":         map[string]any{"lat": 37.1, "lng": -122.1},
			}, nil
		case method == http.MethodPost:
			return nil, &APIError{Message: "http 500", StatusCode: 500}
		}
		return nil, nil
	})
	device := newDevice(client, DeviceInfo{ID: "dev-1"})

	baseline, err := device.RequestFreshLocation(context.Background())
	if err != nil {
		t.Fatalf("expected locate failure swallowed, got %v", err)
	}
	if baseline == nil {
		t.Error("expected baseline despite command failure")
	}
}

func TestVehicleMaintenanceWithoutVIN(t *testing.T) {
	client, services := newTestClient(t, nil)
	vehicle := newVehicle(client, VehicleInfo{DeviceInfo: DeviceInfo{ID: "veh-1"}})

	schedule, err := vehicle.MaintenanceSchedule(context.Background())
	if err != nil || schedule != nil {
		t.Errorf("expected nil,nil without vin, got %v, %v", schedule, err)
	}
	if services.calls.Load() != 0 {
		t.Error("expected no request without vin")
	}
}

func TestVehicleRepairOrdersQuery(t *testing.T) {
	client, services := newTestClient(t, func(method, path string, body any, headers http.Header) (any, error) {
		return map[string]any{"content": []any{}}, nil
	})
	vin := "1HGCM82633A004352"
	vehicle := newVehicle(client, VehicleInfo{
		DeviceInfo: DeviceInfo{ID: "veh-1"},
		VIN:        &vin,
	})

	if _, err := vehicle.RepairOrders(context.Background()); err != nil {
		t.Fatalf("repair orders: %v", err)
	}
	params := services.lastRequest().params
	if params.Get("vin") != vin || params.Get("assetId") != "veh-1" {
		t.Errorf("unexpected selectors %v", params)
	}
	if params.Get("sort") != "openDate:desc" {
		t.Errorf("expected default sort, got %q", params.Get("sort"))
	}
}
