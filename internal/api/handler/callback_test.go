package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// stubProvider implements domain.AuthProvider; only ExchangeCode matters to
// the callback handler.
type stubProvider struct {
	exchangeErr      error
	session          *domain.AuthSession
	gotCode          string
	recoveryNotified bool
}

func (s *stubProvider) Subscribe(func(domain.AuthEvent)) func() { return func() {} }

func (s *stubProvider) GetSession(context.Context) (*domain.AuthSession, error) { return nil, nil }

func (s *stubProvider) SignInWithPassword(context.Context, string, string) (*domain.AuthSession, error) {
	return nil, nil
}

func (s *stubProvider) SignUp(context.Context, domain.SignUpInput) (*domain.AuthSession, error) {
	return nil, nil
}

func (s *stubProvider) SignOut(context.Context) error { return nil }

func (s *stubProvider) RefreshSession(context.Context) (*domain.AuthSession, error) {
	return nil, nil
}

func (s *stubProvider) AuthorizeURL(string, string) string { return "" }

func (s *stubProvider) NotifyPasswordRecovery() { s.recoveryNotified = true }

func (s *stubProvider) ExchangeCode(_ context.Context, code string) (*domain.AuthSession, error) {
	s.gotCode = code
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return s.session, nil
}

type stubProfiles struct {
	mu       sync.Mutex
	upserted []*domain.UserProfile
	err      error
}

func (s *stubProfiles) Upsert(_ context.Context, p *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, p)
	return s.err
}

func (s *stubProfiles) Get(context.Context, uuid.UUID) (*domain.UserProfile, error) {
	return nil, nil
}

func callbackRequest(t *testing.T, h *CallbackHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)
	return rec
}

func validSession() *domain.AuthSession {
	return &domain.AuthSession{
		User: domain.AuthUser{
			ID:       "9f1c2a4e-0000-0000-0000-000000000001",
			Email:    "a@b.com",
			FullName: "Ada Byrne",
		},
		AccessToken: "tok",
	}
}

func TestCallback_ProviderError(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{}, &stubProfiles{}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?error=access_denied&error_description=user+cancelled")

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "/login?")
	assert.Contains(t, loc, "error=access_denied")
	assert.Contains(t, loc, "error_description=user+cancelled")
}

func TestCallback_MissingCode(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{}, &stubProfiles{}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=missing_code")
}

func TestCallback_ExchangeFailure(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{exchangeErr: assert.AnError}, &stubProfiles{}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=exchange_failed")
}

func TestCallback_SuccessDefaultsToDashboard(t *testing.T) {
	provider := &stubProvider{session: validSession()}
	profiles := &stubProfiles{}
	h := NewCallbackHandler(provider, profiles, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, "abc", provider.gotCode)

	require.Len(t, profiles.upserted, 1)
	assert.Equal(t, "a@b.com", profiles.upserted[0].Email)
	assert.Equal(t, "Ada Byrne", profiles.upserted[0].FullName)
}

func TestCallback_SuccessHonorsRelativeNext(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{session: validSession()}, &stubProfiles{}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc&next=/dashboard/reports")

	assert.Equal(t, "/dashboard/reports", rec.Header().Get("Location"))
}

func TestCallback_RejectsAbsoluteNext(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{session: validSession()}, &stubProfiles{}, zerolog.Nop())

	for _, next := range []string{"https://evil.example.com", "//evil.example.com", "evil"} {
		rec := callbackRequest(t, h, "/auth/callback?code=abc&next="+next)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"), "next=%s", next)
	}
}

func TestCallback_RecoveryFlow(t *testing.T) {
	provider := &stubProvider{session: validSession()}
	h := NewCallbackHandler(provider, &stubProfiles{}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc&type=recovery")

	assert.Equal(t, "/reset-password", rec.Header().Get("Location"))
	// The recovery event must reach provider subscribers, not just the
	// browser redirect.
	assert.True(t, provider.recoveryNotified)
}

func TestCallback_NonRecoveryDoesNotNotify(t *testing.T) {
	provider := &stubProvider{session: validSession()}
	h := NewCallbackHandler(provider, &stubProfiles{}, zerolog.Nop())

	callbackRequest(t, h, "/auth/callback?code=abc")

	assert.False(t, provider.recoveryNotified)
}

func TestCallback_ProfileFailureDoesNotAbortSignIn(t *testing.T) {
	h := NewCallbackHandler(&stubProvider{session: validSession()}, &stubProfiles{err: assert.AnError}, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc")

	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestCallback_NonUUIDUserSkipsProfile(t *testing.T) {
	session := validSession()
	session.User.ID = "not-a-uuid"
	profiles := &stubProfiles{}
	h := NewCallbackHandler(&stubProvider{session: session}, profiles, zerolog.Nop())

	rec := callbackRequest(t, h, "/auth/callback?code=abc")

	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Empty(t, profiles.upserted)
}
