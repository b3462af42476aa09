package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// CallbackHandler completes the OAuth flow: it exchanges the provider's
// authorization code for a session and records the user profile.
type CallbackHandler struct {
	provider domain.AuthProvider
	profiles domain.ProfileRepository
	log      zerolog.Logger
}

// NewCallbackHandler creates a new OAuth callback handler
func NewCallbackHandler(provider domain.AuthProvider, profiles domain.ProfileRepository, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{provider: provider, profiles: profiles, log: log}
}

// Callback handles GET /auth/callback. Every outcome is a redirect: the
// browser never sees an error page from this endpoint.
func (h *CallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		h.log.Warn().
			Str("error", errCode).
			Str("description", q.Get("error_description")).
			Msg("oauth callback returned an error")
		redirectLogin(w, r, errCode, q.Get("error_description"))
		return
	}

	code := q.Get("code")
	if code == "" {
		redirectLogin(w, r, "missing_code", "no authorization code in callback")
		return
	}

	session, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		h.log.Warn().Err(err).Msg("authorization code exchange failed")
		redirectLogin(w, r, "exchange_failed", err.Error())
		return
	}

	h.recordProfile(r, session)

	if q.Get("type") == "recovery" {
		h.provider.NotifyPasswordRecovery()
		http.Redirect(w, r, "/reset-password", http.StatusFound)
		return
	}

	http.Redirect(w, r, safeNext(q.Get("next")), http.StatusFound)
}

// recordProfile upserts the app-side user row. A storage failure does not
// abort the sign-in; the row catches up on the next login.
func (h *CallbackHandler) recordProfile(r *http.Request, session *domain.AuthSession) {
	userID, err := uuid.Parse(session.User.ID)
	if err != nil {
		h.log.Warn().Str("user_id", session.User.ID).Msg("provider user id is not a uuid, skipping profile upsert")
		return
	}

	profile := &domain.UserProfile{
		ID:        userID,
		Email:     session.User.Email,
		FullName:  session.User.FullName,
		AvatarURL: session.User.AvatarURL,
	}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to upsert user profile")
	}
}

// safeNext accepts only relative paths for the post-login redirect;
// anything else falls back to the dashboard.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/dashboard"
	}
	return next
}

func redirectLogin(w http.ResponseWriter, r *http.Request, errCode, description string) {
	q := url.Values{}
	q.Set("error", errCode)
	if description != "" {
		q.Set("error_description", description)
	}
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusFound)
}
