// Package auth bridges the hosted identity provider and the app's notion of
// "am I signed in, and does this route require it".
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// State is the explicit auth lifecycle state. There is no implicit
// "loading" boolean: until initialization finishes the state is
// Uninitialized, afterwards it is exactly one of the other two.
type State int

const (
	StateUninitialized State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "uninitialized"
	}
}

// Well-known routes
const (
	LoginPath         = "/login"
	DashboardPath     = "/dashboard"
	ResetPasswordPath = "/reset-password"
)

// DefaultRefreshInterval is how often an authenticated session is refreshed
// in the background.
const DefaultRefreshInterval = 5 * time.Minute

// publicRoutes are exact paths reachable without a session.
var publicRoutes = map[string]struct{}{
	"/":                {},
	"/login":           {},
	"/signup":          {},
	"/forgot-password": {},
	"/reset-password":  {},
	"/pricing":         {},
	"/about":           {},
	"/blog":            {},
	"/contact":         {},
}

// publicPrefixes are route sub-trees reachable without a session.
var publicPrefixes = []string{
	"/auth/",
	"/domains/",
	"/solutions/",
	"/blog/",
	"/share/",
}

// IsPublicPath reports whether a route is reachable without a session.
func IsPublicPath(path string) bool {
	if _, ok := publicRoutes[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Navigator is the routing surface the manager drives. The UI shell
// supplies the implementation.
type Navigator interface {
	CurrentPath() string
	Redirect(path string)
}

// Manager owns the auth session lifecycle: initialization, background
// refresh, provider event handling and route guarding.
type Manager struct {
	provider     domain.AuthProvider
	nav          Navigator
	flags        domain.StateStore
	log          zerolog.Logger
	validate     *validator.Validate
	refreshEvery time.Duration
	callbackURL  string

	mu          sync.Mutex
	state       State
	session     *domain.AuthSession
	started     bool
	unsubscribe func()
	stop        chan struct{}
}

// NewManager creates an auth manager. callbackURL is where the provider
// sends OAuth redirects. A non-positive refresh interval falls back to
// DefaultRefreshInterval.
func NewManager(provider domain.AuthProvider, nav Navigator, flags domain.StateStore, callbackURL string, refreshEvery time.Duration, log zerolog.Logger) *Manager {
	if refreshEvery <= 0 {
		refreshEvery = DefaultRefreshInterval
	}
	return &Manager{
		provider:     provider,
		nav:          nav,
		flags:        flags,
		log:          log,
		validate:     validator.New(),
		refreshEvery: refreshEvery,
		callbackURL:  callbackURL,
		state:        StateUninitialized,
		stop:         make(chan struct{}),
	}
}

// Start initializes the manager: it subscribes to provider events, reads
// the existing session and begins background refresh. It runs at most once
// per manager; later calls are no-ops. The subscription is established
// before the session read so no event firing during initialization is lost.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.unsubscribe = m.provider.Subscribe(m.handleEvent)

	sess, err := m.provider.GetSession(ctx)

	m.mu.Lock()
	// An event may already have advanced the state past initialization.
	if m.state == StateUninitialized {
		if err != nil || sess == nil {
			m.state = StateUnauthenticated
		} else {
			m.state = StateAuthenticated
			m.session = sess
		}
	}
	state := m.state
	m.mu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Msg("initial session read failed, treating as signed out")
	}

	if state == StateUnauthenticated {
		m.guardRoute()
	}

	go m.refreshLoop()
	return nil
}

// Stop ends background refresh and detaches from provider events.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// State returns the current auth state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the held session, or nil when signed out.
func (m *Manager) Session() *domain.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	out := *m.session
	return &out
}

// SignIn performs a password sign-in. State and redirects are driven by the
// resulting provider event.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	input := domain.SignInInput{Email: email, Password: password}
	if err := m.validate.Struct(input); err != nil {
		return err
	}
	_, err := m.provider.SignInWithPassword(ctx, email, password)
	return err
}

// SignInWithGoogle records the pre-redirect path and hands the browser off
// to the provider's OAuth entry point.
func (m *Manager) SignInWithGoogle() error {
	if current := m.nav.CurrentPath(); current != "" && current != LoginPath {
		if err := m.flags.Set(domain.StateKeyReturnPath, current); err != nil {
			m.log.Warn().Err(err).Msg("failed to record return path")
		}
	}
	m.nav.Redirect(m.provider.AuthorizeURL("google", m.callbackURL))
	return nil
}

// SignUp registers a new account.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) error {
	input := domain.SignUpInput{Email: email, Password: password, FullName: fullName}
	if err := m.validate.Struct(input); err != nil {
		return err
	}
	_, err := m.provider.SignUp(ctx, input)
	return err
}

// SignOut delegates to the provider and clears locally cached auth flags.
// The state transition is driven by the signed_out event.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	if flagErr := m.flags.Delete(domain.StateKeyLastSignIn); flagErr != nil {
		m.log.Warn().Err(flagErr).Msg("failed to clear sign-in flag")
	}
	return err
}

// RefreshSession asks the provider for a fresh token pair. It is idempotent
// and safe to call repeatedly: on failure the held session and state are
// left unchanged (the provider's own signed_out event is the only demotion
// path).
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.mu.Lock()
	hasSession := m.session != nil
	m.mu.Unlock()
	if !hasSession {
		return nil
	}

	if _, err := m.provider.RefreshSession(ctx); err != nil {
		m.log.Warn().Err(err).Msg("session refresh failed, keeping existing credentials")
		return err
	}
	return nil
}

// GuardRoute re-checks the navigator's current path against the auth state.
// The shell calls it on every navigation: while unauthenticated, landing on
// a private path records it and redirects to login. Authenticated and
// still-initializing states pass through untouched.
func (m *Manager) GuardRoute() {
	if m.State() != StateUnauthenticated {
		return
	}
	m.guardRoute()
}

// HandleFocus is called when the app regains focus or visibility; it
// triggers an immediate refresh attempt.
func (m *Manager) HandleFocus(ctx context.Context) {
	if m.State() != StateAuthenticated {
		return
	}
	_ = m.RefreshSession(ctx)
}

func (m *Manager) refreshLoop() {
	ticker := time.NewTicker(m.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.State() != StateAuthenticated {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = m.RefreshSession(ctx)
			cancel()
		}
	}
}

func (m *Manager) handleEvent(ev domain.AuthEvent) {
	switch ev.Type {
	case domain.AuthSignedIn:
		m.mu.Lock()
		m.session = ev.Session
		m.state = StateAuthenticated
		m.mu.Unlock()
		if err := m.flags.Set(domain.StateKeyLastSignIn, time.Now().UTC().Format(time.RFC3339)); err != nil {
			m.log.Warn().Err(err).Msg("failed to record sign-in flag")
		}
		m.redirectAfterSignIn()

	case domain.AuthSignedOut:
		m.mu.Lock()
		m.session = nil
		m.state = StateUnauthenticated
		m.mu.Unlock()
		if err := m.flags.Delete(domain.StateKeyLastSignIn); err != nil {
			m.log.Warn().Err(err).Msg("failed to clear sign-in flag")
		}
		m.guardRoute()

	case domain.AuthTokenRefreshed:
		// Swap the session in place; no state transition.
		m.mu.Lock()
		if m.state == StateAuthenticated || m.state == StateUninitialized {
			m.session = ev.Session
			m.state = StateAuthenticated
		}
		m.mu.Unlock()

	case domain.AuthPasswordRecovery:
		m.nav.Redirect(ResetPasswordPath)
	}
}

// redirectAfterSignIn sends the user to the recorded pre-login path,
// clearing the record, or to the dashboard when none was recorded.
func (m *Manager) redirectAfterSignIn() {
	target := DashboardPath
	if recorded, ok, err := m.flags.Get(domain.StateKeyReturnPath); err == nil && ok && recorded != "" {
		target = recorded
		if err := m.flags.Delete(domain.StateKeyReturnPath); err != nil {
			m.log.Warn().Err(err).Msg("failed to clear return path")
		}
	}
	m.nav.Redirect(target)
}

// guardRoute redirects an unauthenticated user off private routes,
// recording the attempted path for the post-login redirect.
func (m *Manager) guardRoute() {
	path := m.nav.CurrentPath()
	if path == "" || IsPublicPath(path) {
		return
	}
	if err := m.flags.Set(domain.StateKeyReturnPath, path); err != nil {
		m.log.Warn().Err(err).Msg("failed to record attempted path")
	}
	m.nav.Redirect(LoginPath)
}
