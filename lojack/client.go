package lojack

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Spireon's event endpoints expect this exact date format.
const spireonDateFormat = "2006-01-02T15:04:05.000+0000"

// Client is the high-level client for the Spireon LoJack API. The vendor
// splits authentication (identity service) from asset management (services
// API); the client holds one transport per base URL and a session manager
// that keeps the bearer token current.
type Client struct {
	identity Transport
	services Transport
	auth     *SessionManager
	log      logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger attaches a logger used by the client and propagated to the
// session manager.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithIdentityTransport replaces the identity transport (tests use this).
func WithIdentityTransport(t Transport) ClientOption {
	return func(c *Client) { c.identity = t }
}

// WithServicesTransport replaces the services transport.
func WithServicesTransport(t Transport) ClientOption {
	return func(c *Client) { c.services = t }
}

// NewClient builds a client from config. No network I/O happens here;
// authentication is lazy unless Login is called explicitly.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{log: discardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	if c.identity == nil {
		c.identity = NewHTTPTransport(cfg.IdentityURL,
			WithTimeout(cfg.Timeout()), WithTransportLogger(c.log))
	}
	if c.services == nil {
		c.services = NewHTTPTransport(cfg.ServicesURL,
			WithTimeout(cfg.Timeout()), WithTransportLogger(c.log))
	}
	c.auth = NewSessionManager(c.identity, cfg.Username, cfg.Password,
		WithRefreshMargin(cfg.RefreshMargin()),
		WithAppToken(cfg.AppToken),
		WithSessionLogger(c.log))
	return c
}

// NewClientFromArtifacts builds a client resuming a previously exported
// session, without credentials. The token is used as-is; once it expires
// the client fails with AuthenticationError until credentials are supplied.
func NewClientFromArtifacts(cfg Config, artifacts SessionArtifacts, opts ...ClientOption) *Client {
	c := NewClient(cfg, opts...)
	c.auth.Import(artifacts)
	return c
}

// Login authenticates eagerly. Most callers can skip this and let the
// first operation trigger it.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.auth.Login(ctx)
	return err
}

// IsAuthenticated reports whether the client holds a non-expired token.
func (c *Client) IsAuthenticated() bool { return c.auth.IsAuthenticated() }

// UserID returns the authenticated user id, if known.
func (c *Client) UserID() string { return c.auth.UserID() }

// ExportAuth returns session artifacts for persistence, or nil when the
// client never authenticated.
func (c *Client) ExportAuth() *SessionArtifacts { return c.auth.Export() }

// ImportAuth restores session artifacts exported by a previous process.
func (c *Client) ImportAuth(artifacts SessionArtifacts) { c.auth.Import(artifacts) }

// Logout drops the session state. No server call is made; the vendor has
// no revocation endpoint.
func (c *Client) Logout() { c.auth.Clear() }

func (c *Client) authHeaders(ctx context.Context) (http.Header, error) {
	if _, err := c.auth.Token(ctx); err != nil {
		return nil, err
	}
	return c.auth.AuthHeaders(), nil
}

// ListDevices lists all assets on the account, classified once at parse
// time into devices and vehicles.
func (c *Client) ListDevices(ctx context.Context) ([]Asset, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/assets", nil, nil, headers)
	if err != nil {
		return nil, err
	}

	var assets []Asset
	for _, item := range objectList(data, "content", "devices", "assets", "vehicles") {
		assets = append(assets, assetFromPayload(c, item))
	}
	return assets, nil
}

// GetDevice fetches a single asset. A 404 is reported as
// DeviceNotFoundError carrying the id.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (Asset, error) {
	if deviceID == "" {
		return nil, &InvalidParameterError{Parameter: "deviceID", Value: deviceID, Reason: "must not be empty"}
	}
	item, err := c.fetchAsset(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &DeviceNotFoundError{DeviceID: deviceID}
	}
	return assetFromPayload(c, item), nil
}

func (c *Client) fetchAsset(ctx context.Context, deviceID string) (map[string]any, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/assets/"+deviceID, nil, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, &DeviceNotFoundError{DeviceID: deviceID}
		}
		return nil, err
	}
	payload, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}
	if nested := childObject(payload, "content"); nested != nil {
		return nested, nil
	}
	if nested := childObject(payload, "asset"); nested != nil {
		return nested, nil
	}
	return payload, nil
}

// LocationQuery filters a location history request.
type LocationQuery struct {
	// Limit caps the number of events; zero or negative means all.
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
	// SkipEmpty drops events that carry no coordinates.
	SkipEmpty bool
}

// GetLocations returns location history events for a device, newest first
// per the vendor's default ordering.
func (c *Client) GetLocations(ctx context.Context, deviceID string, query LocationQuery) ([]Location, error) {
	if deviceID == "" {
		return nil, &InvalidParameterError{Parameter: "deviceID", Value: deviceID, Reason: "must not be empty"}
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.StartTime != nil {
		params.Set("startDate", query.StartTime.UTC().Format(spireonDateFormat))
	}
	if query.EndTime != nil {
		params.Set("endDate", query.EndTime.UTC().Format(spireonDateFormat))
	}

	data, err := c.services.Request(ctx, http.MethodGet, "/assets/"+deviceID+"/events", params, nil, headers)
	if err != nil {
		return nil, err
	}

	var locations []Location
	for _, item := range objectList(data, "content", "events", "locations", "history") {
		loc := LocationFromEvent(item)
		if query.SkipEmpty && !loc.HasFix() {
			continue
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// GetCurrentLocation returns the asset's lastLocation, which is more
// current than the newest event but carries little telemetry. Missing or
// failed asset data yields nil without error; auth failures still surface.
func (c *Client) GetCurrentLocation(ctx context.Context, deviceID string) (*Location, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/assets/"+deviceID, nil, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}
	payload, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}
	last := childObject(payload, "lastLocation")
	if last == nil {
		return nil, nil
	}

	loc := LocationFromAPI(last)
	if loc.Timestamp == nil {
		loc.Timestamp = parseTimestamp(firstValue(payload, "locationLastReported"))
	}
	if loc.Speed == nil {
		loc.Speed = optionalFloat(firstValue(payload, "speed"))
	}
	return &loc, nil
}

// SendCommand submits a command to a device and reports whether the vendor
// accepted it. Execution is asynchronous on the vendor side; acceptance is
// all this call can observe.
func (c *Client) SendCommand(ctx context.Context, deviceID, command string) (bool, error) {
	if command == "" {
		return false, &InvalidParameterError{Parameter: "command", Value: command, Reason: "must not be empty"}
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return false, err
	}

	body := map[string]any{
		"command":          strings.ToUpper(command),
		"responseStrategy": "ASYNC",
	}
	data, err := c.services.Request(ctx, http.MethodPost, "/assets/"+deviceID+"/commands", nil, body, headers)
	if err != nil {
		return false, err
	}

	payload, ok := data.(map[string]any)
	if !ok {
		return true, nil
	}
	if firstValue(payload, "id", "commandId") != nil {
		return true, nil
	}
	for _, key := range []string{"ok", "accepted", "success"} {
		if b, isBool := payload[key].(bool); isBool && b {
			return true, nil
		}
	}
	if status := optionalString(firstValue(payload, "status")); status != nil {
		switch *status {
		case "ok", "PENDING", "SUBMITTED":
			return true, nil
		}
	}
	return false, nil
}

// AssetUpdate carries the mutable asset fields; nil fields are left alone.
type AssetUpdate struct {
	Name     *string
	Color    *string
	Make     *string
	Model    *string
	Year     *int
	VIN      *string
	Odometer *float64
}

func (u AssetUpdate) payload() map[string]any {
	payload := map[string]any{}
	if u.Name != nil {
		payload["name"] = *u.Name
	}
	if u.Color != nil {
		payload["color"] = *u.Color
	}
	if u.Make != nil {
		payload["make"] = *u.Make
	}
	if u.Model != nil {
		payload["model"] = *u.Model
	}
	if u.Year != nil {
		payload["year"] = *u.Year
	}
	if u.VIN != nil {
		payload["vin"] = *u.VIN
	}
	if u.Odometer != nil {
		payload["odometer"] = *u.Odometer
	}
	return payload
}

// UpdateAsset updates asset information. An update with no fields set is a
// no-op and performs no request.
func (c *Client) UpdateAsset(ctx context.Context, deviceID string, update AssetUpdate) error {
	payload := update.payload()
	if len(payload) == 0 {
		return nil
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	_, err = c.services.Request(ctx, http.MethodPut, "/assets/"+deviceID, nil, payload, headers)
	return err
}

// GeofenceQuery paginates a geofence listing.
type GeofenceQuery struct {
	Limit  int
	Offset int
}

// ListGeofences lists geofences attached to a device.
func (c *Client) ListGeofences(ctx context.Context, deviceID string, query GeofenceQuery) ([]Geofence, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/assets/"+deviceID+"/geofences", params, nil, headers)
	if err != nil {
		return nil, err
	}

	var fences []Geofence
	for _, item := range objectList(data, "content", "geofences", "items") {
		fences = append(fences, GeofenceFromAPI(item, deviceID))
	}
	return fences, nil
}

// GetGeofence fetches one geofence; nil when it does not exist.
func (c *Client) GetGeofence(ctx context.Context, deviceID, geofenceID string) (*Geofence, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/assets/"+deviceID+"/geofences/"+geofenceID, nil, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	payload, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}
	fence := GeofenceFromAPI(payload, deviceID)
	return &fence, nil
}

// GeofenceSpec describes a geofence to create.
type GeofenceSpec struct {
	Name      string
	Latitude  float64
	Longitude float64
	// Radius in meters; zero falls back to 100.
	Radius  float64
	Address string
}

// CreateGeofence creates a geofence for a device and returns the created
// record, or nil when the vendor returned nothing usable.
func (c *Client) CreateGeofence(ctx context.Context, deviceID string, spec GeofenceSpec) (*Geofence, error) {
	if spec.Name == "" {
		return nil, &InvalidParameterError{Parameter: "spec.Name", Value: spec.Name, Reason: "must not be empty"}
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	radius := spec.Radius
	if radius <= 0 {
		radius = 100
	}
	active := true
	fence := Geofence{
		Name:      &spec.Name,
		Latitude:  &spec.Latitude,
		Longitude: &spec.Longitude,
		Radius:    &radius,
		Active:    &active,
	}
	if spec.Address != "" {
		fence.Address = &spec.Address
	}

	data, err := c.services.Request(ctx, http.MethodPost, "/assets/"+deviceID+"/geofences", nil, fence.ToAPIPayload(), headers)
	if err != nil {
		return nil, err
	}
	payload, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}
	created := GeofenceFromAPI(payload, deviceID)
	return &created, nil
}

// GeofenceUpdate carries mutable geofence fields; nil fields are left
// alone.
type GeofenceUpdate struct {
	Name      *string
	Latitude  *float64
	Longitude *float64
	Radius    *float64
	Address   *string
	Active    *bool
}

// UpdateGeofence updates an existing geofence. An empty update performs no
// request.
func (c *Client) UpdateGeofence(ctx context.Context, deviceID, geofenceID string, update GeofenceUpdate) error {
	fence := Geofence{
		Name:      update.Name,
		Latitude:  update.Latitude,
		Longitude: update.Longitude,
		Radius:    update.Radius,
		Address:   update.Address,
		Active:    update.Active,
	}
	payload := fence.ToAPIPayload()
	if len(payload) == 0 {
		return nil
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	_, err = c.services.Request(ctx, http.MethodPut, "/assets/"+deviceID+"/geofences/"+geofenceID, nil, payload, headers)
	return err
}

// DeleteGeofence deletes a geofence.
func (c *Client) DeleteGeofence(ctx context.Context, deviceID, geofenceID string) error {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	_, err = c.services.Request(ctx, http.MethodDelete, "/assets/"+deviceID+"/geofences/"+geofenceID, nil, nil, headers)
	return err
}

// GetMaintenanceSchedule fetches the maintenance schedule for a VIN; nil
// when the vendor has none.
func (c *Client) GetMaintenanceSchedule(ctx context.Context, vin string) (*MaintenanceSchedule, error) {
	if vin == "" {
		return nil, &InvalidParameterError{Parameter: "vin", Value: vin, Reason: "must not be empty"}
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("vin", vin)

	data, err := c.services.Request(ctx, http.MethodGet, "/automotive/maintenanceSchedule", params, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	payload, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}
	schedule := MaintenanceScheduleFromAPI(payload, vin)
	return &schedule, nil
}

// RepairOrderQuery selects repair orders by VIN and/or asset id.
type RepairOrderQuery struct {
	VIN     string
	AssetID string
	// Sort defaults to "openDate:desc".
	Sort string
}

// GetRepairOrders fetches repair orders. At least one of VIN and AssetID
// must be set; otherwise the result is empty without a request.
func (c *Client) GetRepairOrders(ctx context.Context, query RepairOrderQuery) ([]RepairOrder, error) {
	if query.VIN == "" && query.AssetID == "" {
		return nil, nil
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	sort := query.Sort
	if sort == "" {
		sort = "openDate:desc"
	}
	params.Set("sort", sort)
	if query.VIN != "" {
		params.Set("vin", query.VIN)
	}
	if query.AssetID != "" {
		params.Set("assetId", query.AssetID)
	}

	data, err := c.services.Request(ctx, http.MethodGet, "/repairOrders", params, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var orders []RepairOrder
	for _, item := range objectList(data, "content", "repairOrders", "orders") {
		orders = append(orders, RepairOrderFromAPI(item))
	}
	return orders, nil
}

// GetUserInfo returns the authenticated user's profile, or nil when the
// endpoint is unavailable.
func (c *Client) GetUserInfo(ctx context.Context) (map[string]any, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/identity", nil, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}
	if payload, ok := data.(map[string]any); ok {
		return payload, nil
	}
	return nil, nil
}

// GetAccounts returns all accounts associated with the user.
func (c *Client) GetAccounts(ctx context.Context) ([]map[string]any, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.services.Request(ctx, http.MethodGet, "/accounts", nil, nil, headers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}
	return objectList(data, "content", "accounts"), nil
}

// objectList unwraps the vendor's response envelopes: either a bare JSON
// array or an object holding the array under one of several known keys.
func objectList(data any, keys ...string) []map[string]any {
	var items []any
	switch val := data.(type) {
	case []any:
		items = val
	case map[string]any:
		for _, key := range keys {
			if list, ok := val[key].([]any); ok {
				items = list
				break
			}
		}
	}
	var out []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func assetFromPayload(c *Client, item map[string]any) Asset {
	if ClassifyAsset(item) == AssetVehicle {
		return newVehicle(c, VehicleInfoFromAPI(item))
	}
	return newDevice(c, DeviceInfoFromAPI(item))
}
