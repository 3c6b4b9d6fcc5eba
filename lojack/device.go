package lojack

import (
	"context"
	"sync"
	"time"
)

// Asset is either a *Device or a *Vehicle. The variant is decided once
// when the payload is parsed; callers type-switch for vehicle-specific
// operations.
type Asset interface {
	ID() string
	Name() *string
	Kind() AssetKind
	Location(ctx context.Context, force bool) (*Location, error)
}

// Device wraps a tracked asset with high-level helpers and a single cached
// most-recent location.
type Device struct {
	client *Client
	info   DeviceInfo

	mu          sync.Mutex
	cached      *Location
	lastRefresh *time.Time
}

func newDevice(client *Client, info DeviceInfo) *Device {
	return &Device{client: client, info: info}
}

// ID returns the asset id.
func (d *Device) ID() string { return d.info.ID }

// Name returns the asset name, if known.
func (d *Device) Name() *string { return d.info.Name }

// Kind reports the asset variant.
func (d *Device) Kind() AssetKind { return AssetDevice }

// Info returns the normalized device record.
func (d *Device) Info() DeviceInfo { return d.info }

// LastSeen returns when the device last reported.
func (d *Device) LastSeen() *time.Time { return d.info.LastSeen }

// CachedLocation returns the cached location, which may be stale or nil.
func (d *Device) CachedLocation() *Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cached
}

// LastRefresh returns when the cached location was last fetched.
func (d *Device) LastRefresh() *time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRefresh
}

// Refresh fetches the current location and enriches it with telemetry from
// the most recent event. The asset snapshot has the freshest coordinates
// but little telemetry; the latest event carries rich telemetry that may
// reflect an older fix. Without force a previously cached value is kept.
func (d *Device) Refresh(ctx context.Context, force bool) error {
	d.mu.Lock()
	if !force && d.cached != nil {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	snapshot, err := d.client.GetCurrentLocation(ctx, d.info.ID)
	if err != nil {
		return err
	}
	events, err := d.client.GetLocations(ctx, d.info.ID, LocationQuery{Limit: 1})
	if err != nil {
		return err
	}
	var latest *Location
	if len(events) > 0 {
		latest = &events[0]
	}

	var next *Location
	switch {
	case snapshot != nil && snapshot.Latitude != nil:
		merged := *snapshot
		if latest != nil {
			merged = EnrichLocation(merged, *latest)
		}
		next = &merged
	case latest != nil:
		// The event fix is all there is; it already has the telemetry.
		next = latest
	}

	now := time.Now().UTC()
	d.mu.Lock()
	d.cached = next
	d.lastRefresh = &now
	d.mu.Unlock()
	return nil
}

// Location returns the device's current location, fetching it when the
// cache is empty or force is set.
func (d *Device) Location(ctx context.Context, force bool) (*Location, error) {
	d.mu.Lock()
	cached := d.cached
	d.mu.Unlock()
	if !force && cached != nil {
		return cached, nil
	}
	if err := d.Refresh(ctx, force); err != nil {
		return nil, err
	}
	return d.CachedLocation(), nil
}

// LocationTimestamp returns the timestamp of the cached location, if any.
func (d *Device) LocationTimestamp() *time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		return nil
	}
	return d.cached.Timestamp
}

// History returns location history events for this device.
func (d *Device) History(ctx context.Context, query LocationQuery) ([]Location, error) {
	return d.client.GetLocations(ctx, d.info.ID, query)
}

// SendCommand sends a raw command to the device.
func (d *Device) SendCommand(ctx context.Context, command string) (bool, error) {
	return d.client.SendCommand(ctx, d.info.ID, command)
}

// RequestLocationUpdate asks the device to report its position. A command
// the vendor did not accept is reported as CommandError.
func (d *Device) RequestLocationUpdate(ctx context.Context) error {
	accepted, err := d.SendCommand(ctx, "locate")
	if err != nil {
		return err
	}
	if !accepted {
		return &CommandError{Command: "locate", DeviceID: d.info.ID, Reason: "not accepted"}
	}
	return nil
}

// RequestFreshLocation sends a locate command and returns the current
// location timestamp as a baseline. Poll Location with force afterwards
// and compare timestamps to detect when fresh data lands; the locate
// command itself is fire-and-forget and its failure does not void the
// baseline.
func (d *Device) RequestFreshLocation(ctx context.Context) (*time.Time, error) {
	current, err := d.client.GetCurrentLocation(ctx, d.info.ID)
	if err != nil {
		return nil, err
	}
	var baseline *time.Time
	if current != nil {
		baseline = current.Timestamp
	}
	if _, err := d.SendCommand(ctx, "locate"); err != nil {
		d.client.log.WithField("device_id", d.info.ID).WithError(err).Debug("locate command failed")
	}
	return baseline, nil
}

// Update updates device information.
func (d *Device) Update(ctx context.Context, update AssetUpdate) error {
	return d.client.UpdateAsset(ctx, d.info.ID, update)
}

// ListGeofences lists geofences attached to this device.
func (d *Device) ListGeofences(ctx context.Context) ([]Geofence, error) {
	return d.client.ListGeofences(ctx, d.info.ID, GeofenceQuery{})
}

// GetGeofence fetches one geofence; nil when it does not exist.
func (d *Device) GetGeofence(ctx context.Context, geofenceID string) (*Geofence, error) {
	return d.client.GetGeofence(ctx, d.info.ID, geofenceID)
}

// CreateGeofence creates a geofence for this device.
func (d *Device) CreateGeofence(ctx context.Context, spec GeofenceSpec) (*Geofence, error) {
	return d.client.CreateGeofence(ctx, d.info.ID, spec)
}

// UpdateGeofence updates one of this device's geofences.
func (d *Device) UpdateGeofence(ctx context.Context, geofenceID string, update GeofenceUpdate) error {
	return d.client.UpdateGeofence(ctx, d.info.ID, geofenceID, update)
}

// DeleteGeofence deletes one of this device's geofences.
func (d *Device) DeleteGeofence(ctx context.Context, geofenceID string) error {
	return d.client.DeleteGeofence(ctx, d.info.ID, geofenceID)
}

// Vehicle is a Device with vehicle attributes and the vehicle-only
// operations (maintenance schedule, repair orders).
type Vehicle struct {
	Device
	vinfo VehicleInfo
}

func newVehicle(client *Client, info VehicleInfo) *Vehicle {
	return &Vehicle{
		Device: Device{client: client, info: info.DeviceInfo},
		vinfo:  info,
	}
}

// Kind reports the asset variant.
func (v *Vehicle) Kind() AssetKind { return AssetVehicle }

// VehicleInfo returns the normalized vehicle record.
func (v *Vehicle) VehicleInfo() VehicleInfo { return v.vinfo }

// VIN returns the vehicle identification number, if known.
func (v *Vehicle) VIN() *string { return v.vinfo.VIN }

// Make returns the vehicle make.
func (v *Vehicle) Make() *string { return v.vinfo.Make }

// Model returns the vehicle model.
func (v *Vehicle) Model() *string { return v.vinfo.Model }

// Year returns the vehicle model year.
func (v *Vehicle) Year() *int { return v.vinfo.Year }

// LicensePlate returns the vehicle license plate.
func (v *Vehicle) LicensePlate() *string { return v.vinfo.LicensePlate }

// Odometer returns the vehicle odometer reading.
func (v *Vehicle) Odometer() *float64 { return v.vinfo.Odometer }

// MaintenanceSchedule fetches this vehicle's maintenance schedule; nil
// when the vehicle has no VIN or the vendor has no schedule for it.
func (v *Vehicle) MaintenanceSchedule(ctx context.Context) (*MaintenanceSchedule, error) {
	if v.vinfo.VIN == nil {
		return nil, nil
	}
	return v.client.GetMaintenanceSchedule(ctx, *v.vinfo.VIN)
}

// RepairOrders fetches repair orders for this vehicle.
func (v *Vehicle) RepairOrders(ctx context.Context) ([]RepairOrder, error) {
	query := RepairOrderQuery{AssetID: v.info.ID}
	if v.vinfo.VIN != nil {
		query.VIN = *v.vinfo.VIN
	}
	return v.client.GetRepairOrders(ctx, query)
}
