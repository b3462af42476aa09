// Package app assembles the client-side subsystems: durable local state,
// the chat and toast stores, the persisted session context and the auth
// manager.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/agent"
	"github.com/sectorlens/sectorlens/internal/auth"
	"github.com/sectorlens/sectorlens/internal/baas"
	"github.com/sectorlens/sectorlens/internal/chat"
	"github.com/sectorlens/sectorlens/internal/config"
	"github.com/sectorlens/sectorlens/internal/notify"
	"github.com/sectorlens/sectorlens/internal/session"
	"github.com/sectorlens/sectorlens/internal/storage"
)

// App owns every in-process subsystem the UI shell talks to.
type App struct {
	State    *storage.LocalStore
	Toasts   *notify.Store
	Chats    *chat.Store
	Session  *session.Manager
	Auth     *auth.Manager
	Provider *baas.Client
	Agent    *agent.Client
	Nav      *ShellNavigator

	log zerolog.Logger
}

// New builds the app from configuration. Nothing talks to the network
// until Start.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	statePath := cfg.Storage.StatePath
	if statePath == "" {
		statePath = storage.DefaultPath()
	}

	state, err := storage.Open(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	nav := NewShellNavigator()
	provider := baas.NewClient(cfg.Auth.ProviderURL, cfg.Auth.AnonKey, state, log)

	a := &App{
		State:    state,
		Toasts:   notify.NewStore(notify.DefaultDismissAfter),
		Chats:    chat.NewStore(chat.NewClient(cfg.ChatAPI.BaseURL, cfg.ChatAPI.Timeout), log),
		Session:  session.NewManager(state, cfg.Session.PersistDebounce, log),
		Auth:     auth.NewManager(provider, nav, state, cfg.Server.CallbackURL(), cfg.Auth.RefreshInterval, log),
		Provider: provider,
		Agent:    agent.NewClient(cfg.AgentAPI.BaseURL, cfg.AgentAPI.Token, log),
		Nav:      nav,
		log:      log,
	}
	return a, nil
}

// Start restores persisted state and begins the auth lifecycle.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Restore(); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if err := a.Auth.Start(ctx); err != nil {
		return fmt.Errorf("failed to start auth manager: %w", err)
	}
	return nil
}

// Close flushes pending state and releases resources.
func (a *App) Close() error {
	a.Auth.Stop()
	a.Session.Close()
	a.Toasts.Close()
	if err := a.State.Close(); err != nil {
		return fmt.Errorf("failed to close local state: %w", err)
	}
	return nil
}
