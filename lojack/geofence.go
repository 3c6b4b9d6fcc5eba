package lojack

// Geofence is a circular fence attached to an asset. AssetID is set by the
// owning call and is not always present in the payload itself.
type Geofence struct {
	ID        *string
	Name      *string
	Latitude  *float64
	Longitude *float64
	Radius    *float64
	Address   *string
	Active    *bool
	AssetID   *string
	Raw       map[string]any
}

// GeofenceFromAPI normalizes a geofence payload. Coordinates may appear at
// the top level or nested under location.coordinates; the address may be a
// string or a component object under location.address.
func GeofenceFromAPI(data map[string]any, assetID string) Geofence {
	if data == nil {
		data = map[string]any{}
	}
	location := childObject(data, "location")
	var coords map[string]any
	if location != nil {
		coords = childObject(location, "coordinates")
	}

	fence := Geofence{Raw: data}
	fence.ID = optionalString(firstValue(data, "id", "geofenceId", "geofence_id"))
	fence.Name = optionalString(firstValue(data, "name", "label"))
	fence.Latitude = coordValue(data, coords, "latitude", "lat")
	fence.Longitude = coordValue(data, coords, "longitude", "lng", "lon")
	fence.Radius = optionalFloat(firstValue(data, "radius"))
	if fence.Radius == nil && location != nil {
		fence.Radius = optionalFloat(firstValue(location, "radius"))
	}
	fence.Address = addressValue(firstValue(data, "address"))
	if fence.Address == nil && location != nil {
		fence.Address = addressValue(firstValue(location, "address"))
	}
	fence.Active = optionalBool(firstValue(data, "active", "enabled"))
	if assetID != "" {
		fence.AssetID = &assetID
	}
	return fence
}

// ToAPIPayload builds the request body shape the vendor expects for
// geofence create and update calls.
func (g Geofence) ToAPIPayload() map[string]any {
	payload := map[string]any{}
	if g.Name != nil {
		payload["name"] = *g.Name
	}
	if g.Active != nil {
		payload["active"] = *g.Active
	}
	location := map[string]any{}
	if g.Latitude != nil || g.Longitude != nil {
		coords := map[string]any{}
		if g.Latitude != nil {
			coords["lat"] = *g.Latitude
		}
		if g.Longitude != nil {
			coords["lng"] = *g.Longitude
		}
		location["coordinates"] = coords
	}
	if g.Radius != nil {
		location["radius"] = *g.Radius
	}
	if g.Address != nil {
		location["address"] = map[string]any{"line1": *g.Address}
	}
	if len(location) > 0 {
		payload["location"] = location
	}
	return payload
}
