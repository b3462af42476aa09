// Package baas implements the domain.AuthProvider against the hosted
// identity service's REST API.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
	"github.com/sectorlens/sectorlens/internal/security"
)

// stateKeySession is the provider-internal durable key for the session.
const stateKeySession = "auth.provider_session"

// ProviderError is an error reported by the identity service
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth provider returned status %d", e.Status)
}

// Client talks to the identity service and holds the current session. It
// implements domain.AuthProvider. The session survives restarts through the
// optional state store.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	state      domain.StateStore
	log        zerolog.Logger

	mu        sync.Mutex
	session   *domain.AuthSession
	listeners map[int]func(domain.AuthEvent)
	nextSub   int
}

// NewClient creates an identity service client. state may be nil, in which
// case the session lives only in memory.
func NewClient(baseURL, anonKey string, state domain.StateStore, log zerolog.Logger) *Client {
	c := &Client{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		state:      state,
		log:        log,
		listeners:  make(map[int]func(domain.AuthEvent)),
	}
	c.loadPersisted()
	return c
}

// Subscribe registers a lifecycle listener. Listeners run synchronously in
// registration order.
func (c *Client) Subscribe(fn func(domain.AuthEvent)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// GetSession returns the currently held session, or nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	out := *c.session
	return &out, nil
}

// SignInWithPassword performs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	sess, err := c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.setSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// SignUp registers a new account. When the service auto-confirms, the
// returned session is adopted and a signed_in event fires; otherwise the
// session is nil pending email confirmation.
func (c *Client) SignUp(ctx context.Context, input domain.SignUpInput) (*domain.AuthSession, error) {
	body := map[string]any{
		"email":    input.Email,
		"password": input.Password,
	}
	if input.FullName != "" {
		body["data"] = map[string]string{"full_name": input.FullName}
	}

	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/signup", body, "", &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}

	sess := resp.toSession()
	c.setSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// SignOut revokes the session server-side and always clears it locally,
// even when the revoke call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.mu.Unlock()

	var apiErr error
	if token != "" {
		apiErr = c.post(ctx, "/auth/v1/logout", nil, token, nil)
	}
	c.setSession(nil, domain.AuthSignedOut)
	return apiErr
}

// RefreshSession exchanges the refresh token for a new pair. On failure the
// held session is left untouched.
func (c *Client) RefreshSession(ctx context.Context) (*domain.AuthSession, error) {
	c.mu.Lock()
	refresh := ""
	if c.session != nil {
		refresh = c.session.RefreshToken
	}
	c.mu.Unlock()

	if refresh == "" {
		return nil, &ProviderError{Status: http.StatusUnauthorized, Message: "no session to refresh"}
	}

	sess, err := c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refresh,
	})
	if err != nil {
		return nil, err
	}
	c.setSession(sess, domain.AuthTokenRefreshed)
	return sess, nil
}

// AuthorizeURL builds the OAuth entry point for an external provider.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// ExchangeCode trades an OAuth authorization code for a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.AuthSession, error) {
	sess, err := c.tokenGrant(ctx, "authorization_code", map[string]string{
		"auth_code": code,
	})
	if err != nil {
		return nil, err
	}
	c.setSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// NotifyPasswordRecovery emits the password_recovery lifecycle event. The
// OAuth callback calls this when the provider flags a recovery flow.
func (c *Client) NotifyPasswordRecovery() {
	c.mu.Lock()
	sess := c.session
	listeners := c.listenersLocked()
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(domain.AuthEvent{Type: domain.AuthPasswordRecovery, Session: sess})
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	} `json:"user"`
}

func (r *tokenResponse) toSession() *domain.AuthSession {
	expires := time.Time{}
	switch {
	case r.ExpiresAt > 0:
		expires = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		expires = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		expires = security.TokenExpiry(r.AccessToken)
	}

	user := domain.AuthUser{
		ID:       r.User.ID,
		Email:    r.User.Email,
		Metadata: r.User.UserMetadata,
	}
	if name, ok := r.User.UserMetadata["full_name"].(string); ok {
		user.FullName = name
	}
	if avatar, ok := r.User.UserMetadata["avatar_url"].(string); ok {
		user.AvatarURL = avatar
	}
	if user.ID == "" || user.Email == "" {
		// Some grants omit the user object; fall back to token claims.
		if claims, err := security.InspectToken(r.AccessToken); err == nil {
			if user.ID == "" {
				user.ID = claims.UserID()
			}
			if user.Email == "" {
				user.Email = claims.Email
			}
		}
	}

	return &domain.AuthSession{
		User:         user,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expires,
	}
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (*domain.AuthSession, error) {
	var resp tokenResponse
	path := "/auth/v1/token?grant_type=" + url.QueryEscape(grantType)
	if err := c.post(ctx, path, body, "", &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &ProviderError{Status: http.StatusBadGateway, Message: "token response missing access token"}
	}
	return resp.toSession(), nil
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeProviderError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeProviderError(resp *http.Response) error {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	msg := payload.ErrorDescription
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = payload.Error
	}
	code := payload.ErrorCode
	if code == "" {
		code = payload.Error
	}
	return &ProviderError{Status: resp.StatusCode, Code: code, Message: msg}
}

// setSession swaps the held session, persists it and notifies listeners.
func (c *Client) setSession(sess *domain.AuthSession, event domain.AuthEventType) {
	c.mu.Lock()
	c.session = sess
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.persist(sess)
	for _, fn := range listeners {
		fn(domain.AuthEvent{Type: event, Session: sess})
	}
}

func (c *Client) listenersLocked() []func(domain.AuthEvent) {
	out := make([]func(domain.AuthEvent), 0, len(c.listeners))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (c *Client) persist(sess *domain.AuthSession) {
	if c.state == nil {
		return
	}
	if sess == nil {
		if err := c.state.Delete(stateKeySession); err != nil {
			c.log.Error().Err(err).Msg("failed to delete persisted auth session")
		}
		return
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to marshal auth session")
		return
	}
	if err := c.state.Set(stateKeySession, string(raw)); err != nil {
		c.log.Error().Err(err).Msg("failed to persist auth session")
	}
}

func (c *Client) loadPersisted() {
	if c.state == nil {
		return
	}
	raw, ok, err := c.state.Get(stateKeySession)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to read persisted auth session")
		return
	}
	if !ok {
		return
	}
	var sess domain.AuthSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		c.log.Warn().Err(err).Msg("discarding unreadable persisted auth session")
		return
	}
	c.session = &sess
}
