package lojack

import "time"

// AssetKind tags a payload as a plain tracked device or a vehicle. The
// decision is made once at parse time instead of re-checking VIN fields at
// every call site.
type AssetKind int

const (
	AssetDevice AssetKind = iota
	AssetVehicle
)

// ClassifyAsset decides whether a payload describes a vehicle. A VIN
// anywhere the normalizer looks (top level or nested attributes), or an
// explicit vehicle type marker, makes it a vehicle.
func ClassifyAsset(data map[string]any) AssetKind {
	if optionalString(firstValue(data, "vin")) != nil {
		return AssetVehicle
	}
	if attrs := childObject(data, "attributes"); attrs != nil {
		if optionalString(firstValue(attrs, "vin")) != nil {
			return AssetVehicle
		}
	}
	if kind := optionalString(firstValue(data, "type", "assetType")); kind != nil && *kind == "vehicle" {
		return AssetVehicle
	}
	return AssetDevice
}

// DeviceInfo is the normalized record for a tracked asset.
type DeviceInfo struct {
	ID         string
	Name       *string
	Status     *string
	DeviceType *string
	LastSeen   *time.Time
	Raw        map[string]any
}

// DeviceInfoFromAPI normalizes an asset payload into a DeviceInfo.
// Missing or malformed fields degrade to nil; ID is empty when absent.
func DeviceInfoFromAPI(data map[string]any) DeviceInfo {
	if data == nil {
		data = map[string]any{}
	}
	attrs := childObject(data, "attributes")

	info := DeviceInfo{Raw: data}
	if id := optionalString(firstValue(data, "id", "device_id", "deviceId", "assetId")); id != nil {
		info.ID = *id
	}
	info.Name = optionalString(firstValue(data, "name", "device_name", "deviceName"))
	if info.Name == nil && attrs != nil {
		info.Name = optionalString(firstValue(attrs, "name"))
	}
	info.Status = optionalString(firstValue(data, "status", "state"))
	info.DeviceType = optionalString(firstValue(data, "type", "device_type", "deviceType"))
	info.LastSeen = parseTimestamp(firstValue(data, "last_seen", "lastSeen", "lastReported"))
	return info
}

// VehicleInfo is DeviceInfo plus vehicle attributes. A capability superset,
// not an inheritance relationship: plain devices never carry these fields.
type VehicleInfo struct {
	DeviceInfo

	VIN          *string
	Make         *string
	Model        *string
	Year         *int
	LicensePlate *string
	Odometer     *float64
}

// VehicleInfoFromAPI normalizes an asset payload into a VehicleInfo,
// looking for vehicle attributes both at the top level and nested under
// attributes.
func VehicleInfoFromAPI(data map[string]any) VehicleInfo {
	if data == nil {
		data = map[string]any{}
	}
	attrs := childObject(data, "attributes")

	info := VehicleInfo{DeviceInfo: DeviceInfoFromAPI(data)}
	info.VIN = nestedString(data, attrs, "vin")
	info.Make = nestedString(data, attrs, "make")
	info.Model = nestedString(data, attrs, "model")
	info.LicensePlate = nestedString(data, attrs, "license_plate", "licensePlate", "plate")
	if v := firstValue(data, "year"); v != nil {
		info.Year = optionalInt(v)
	} else if attrs != nil {
		info.Year = optionalInt(firstValue(attrs, "year"))
	}
	if v := firstValue(data, "odometer", "mileage"); v != nil {
		info.Odometer = optionalFloat(v)
	} else if attrs != nil {
		info.Odometer = optionalFloat(firstValue(attrs, "odometer", "mileage"))
	}
	return info
}

func nestedString(data, attrs map[string]any, keys ...string) *string {
	if s := optionalString(firstValue(data, keys...)); s != nil {
		return s
	}
	if attrs != nil {
		return optionalString(firstValue(attrs, keys...))
	}
	return nil
}
