package lojack

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Spireon header scheme.
const (
	headerAppToken      = "X-Nspire-Apptoken"
	headerUserToken     = "X-Nspire-Usertoken"
	headerCorrelationID = "X-Nspire-Correlationid"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"

	// Tokens with no advertised expiry get this lifetime so the manager
	// still refreshes them proactively.
	defaultTokenLifetime = time.Hour
)

// SessionArtifacts is the exportable subset of authentication state needed
// to resume a client without re-entering a password.
type SessionArtifacts struct {
	AccessToken  string     `json:"access_token" yaml:"access_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	UserID       string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// session is the full authentication state. It is swapped wholesale under
// the manager's mutex: a cancelled refresh can never leave a token paired
// with the wrong expiry.
type session struct {
	accessToken  string
	refreshToken string
	expiresAt    *time.Time
	userID       string
}

func (s session) valid(now time.Time, margin time.Duration) bool {
	if s.accessToken == "" {
		return false
	}
	if s.expiresAt == nil {
		return true
	}
	return now.Before(s.expiresAt.Add(-margin))
}

// SessionManager owns the bearer token lifecycle: login, proactive refresh
// inside the safety margin, fallback to full re-login, and export/import
// for persistence across process restarts. Concurrent callers racing past
// an expired token share a single login/refresh round-trip.
type SessionManager struct {
	transport Transport
	username  string
	password  string
	appToken  string
	margin    time.Duration
	log       logrus.FieldLogger
	now       func() time.Time

	mu      sync.Mutex
	current session

	flight singleflight.Group
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithRefreshMargin overrides the safety margin before expiry at which the
// manager refreshes instead of returning the cached token.
func WithRefreshMargin(margin time.Duration) SessionOption {
	return func(m *SessionManager) { m.margin = margin }
}

// WithAppToken sets the vendor application token sent on every request.
func WithAppToken(token string) SessionOption {
	return func(m *SessionManager) { m.appToken = token }
}

// WithSessionLogger attaches a logger for token lifecycle events.
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(m *SessionManager) { m.log = log }
}

// withClock injects a clock for tests.
func withClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager builds a session manager over the identity transport.
// Username and password may be empty when the caller intends to import a
// previously exported session.
func NewSessionManager(transport Transport, username, password string, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		transport: transport,
		username:  username,
		password:  password,
		margin:    DefaultRefreshMargin,
		log:       discardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAuthenticated reports whether a token is held and not past its expiry.
// No margin is applied here; a token inside the margin is still valid.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s.accessToken == "" {
		return false
	}
	if s.expiresAt == nil {
		return true
	}
	return m.now().Before(*s.expiresAt)
}

// UserID returns the authenticated user id, if the server reported one.
func (m *SessionManager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.userID
}

// Clear drops all authentication state.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	m.current = session{}
	m.mu.Unlock()
}

// Export returns the current session artifacts, or nil when no token is
// held.
func (m *SessionManager) Export() *SessionArtifacts {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s.accessToken == "" {
		return nil
	}
	return &SessionArtifacts{
		AccessToken:  s.accessToken,
		ExpiresAt:    s.expiresAt,
		RefreshToken: s.refreshToken,
		UserID:       s.userID,
	}
}

// Import restores a previously exported session. Authentication state is
// derived purely from the presence of a token and the expiry check; the
// server is not contacted.
func (m *SessionManager) Import(artifacts SessionArtifacts) {
	m.mu.Lock()
	m.current = session{
		accessToken:  artifacts.AccessToken,
		refreshToken: artifacts.RefreshToken,
		expiresAt:    artifacts.ExpiresAt,
		userID:       artifacts.UserID,
	}
	m.mu.Unlock()
}

// AuthHeaders returns the vendor headers for an authenticated services
// request. Call Token first to make sure the token is current.
func (m *SessionManager) AuthHeaders() http.Header {
	m.mu.Lock()
	token := m.current.accessToken
	m.mu.Unlock()

	headers := http.Header{}
	if m.appToken != "" {
		headers.Set(headerAppToken, m.appToken)
	}
	if token != "" {
		headers.Set(headerUserToken, token)
	}
	return headers
}

// Token returns a valid access token, logging in or refreshing as needed.
// While the cached token is outside the refresh margin this performs no
// I/O. Concurrent callers that all find the token expired share one
// round-trip through a single-flight group.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s.valid(m.now(), m.margin) {
		recordTokenCacheHit()
		return s.accessToken, nil
	}

	v, err, _ := m.flight.Do("token", func() (any, error) {
		// Re-check: another caller in the same flight may have renewed it.
		m.mu.Lock()
		s := m.current
		m.mu.Unlock()
		if s.valid(m.now(), m.margin) {
			return s.accessToken, nil
		}
		if s.accessToken == "" {
			return m.login(ctx)
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Login authenticates with username and password and replaces the session
// wholesale.
func (m *SessionManager) Login(ctx context.Context) (string, error) {
	return m.login(ctx)
}

// Refresh renews the access token, falling back to a full login when no
// refresh token is held or the refresh is rejected as unauthenticated.
func (m *SessionManager) Refresh(ctx context.Context) (string, error) {
	return m.refresh(ctx)
}

func (m *SessionManager) login(ctx context.Context) (string, error) {
	if m.username == "" || m.password == "" {
		return "", &AuthenticationError{Message: "username and password are required for login"}
	}

	body := map[string]any{
		"username": m.username,
		"password": m.password,
	}
	headers := http.Header{}
	if m.appToken != "" {
		headers.Set(headerAppToken, m.appToken)
	}
	headers.Set("Authorization", "Basic "+encodeBasicAuth(m.username, m.password))

	data, err := m.transport.Request(ctx, http.MethodPost, loginPath, url.Values{}, body, headers)
	if err != nil {
		recordLogin("error")
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", &AuthenticationError{Message: "login failed", Err: err}
	}

	next, err := m.sessionFromResponse(data, "")
	if err != nil {
		recordLogin("error")
		return "", err
	}

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
	recordLogin("success")
	m.log.WithField("user_id", next.userID).Debug("logged in")
	return next.accessToken, nil
}

func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s.refreshToken == "" {
		return m.login(ctx)
	}

	body := map[string]any{"refresh_token": s.refreshToken}
	headers := http.Header{}
	if m.appToken != "" {
		headers.Set(headerAppToken, m.appToken)
	}

	data, err := m.transport.Request(ctx, http.MethodPost, refreshPath, url.Values{}, body, headers)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			// The refresh token itself was rejected; fall back to a
			// full login.
			recordRefresh("fallback")
			return m.login(ctx)
		}
		recordRefresh("error")
		return "", &AuthenticationError{Message: "token refresh failed", Err: err}
	}

	next, err := m.sessionFromResponse(data, s.refreshToken)
	if err != nil {
		recordRefresh("fallback")
		return m.login(ctx)
	}
	next.userID = s.userID
	if next.userID == "" {
		next.userID = userIDFromResponse(data)
	}

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
	recordRefresh("success")
	m.log.Debug("token refreshed")
	return next.accessToken, nil
}

// sessionFromResponse assembles a complete session value from a login or
// refresh response. keepRefresh carries the previous refresh token forward
// when the server does not issue a new one.
func (m *SessionManager) sessionFromResponse(data any, keepRefresh string) (session, error) {
	payload, ok := data.(map[string]any)
	if !ok {
		return session{}, &AuthenticationError{Message: "invalid login response"}
	}

	token := optionalString(firstValue(payload, "access_token", "token"))
	if token == nil {
		msg := "no token in response"
		if detail := optionalString(firstValue(payload, "error", "message")); detail != nil {
			msg = *detail
		}
		return session{}, &AuthenticationError{Message: "login failed: " + msg}
	}

	next := session{
		accessToken:  *token,
		refreshToken: keepRefresh,
		userID:       userIDFromResponse(payload),
	}
	if refresh := optionalString(firstValue(payload, "refresh_token", "refreshToken")); refresh != nil {
		next.refreshToken = *refresh
	}
	next.expiresAt = m.expiryFromResponse(payload, *token)
	return next, nil
}

func userIDFromResponse(data any) string {
	if payload, ok := data.(map[string]any); ok {
		if id := optionalString(firstValue(payload, "user_id", "userId")); id != nil {
			return *id
		}
	}
	return ""
}

// expiryFromResponse resolves token expiry in priority order: a relative
// expires_in seconds-delta, then an absolute expires_at (epoch or ISO),
// then the exp claim of the token itself, then a fixed default lifetime.
// When both relative and absolute values are present the relative one wins.
func (m *SessionManager) expiryFromResponse(payload map[string]any, token string) *time.Time {
	if seconds := optionalFloat(firstValue(payload, "expires_in", "expiresIn")); seconds != nil {
		at := m.now().UTC().Add(time.Duration(*seconds) * time.Second)
		return &at
	}
	if at := parseTimestamp(firstValue(payload, "expires_at", "expiresAt")); at != nil {
		return at
	}
	if at := jwtExpiry(token); at != nil {
		return at
	}
	at := m.now().UTC().Add(defaultTokenLifetime)
	return &at
}

// jwtExpiry reads the exp claim off a JWT access token without verifying
// the signature. Spireon tokens are JWTs; opaque tokens simply yield nil.
func jwtExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	at := exp.Time.UTC()
	return &at
}

func encodeBasicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
