package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// State is where the client is in the login lifecycle.
type State int

const (
	LoggedOut State = iota
	AwaitingCallback
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged out"
	case AwaitingCallback:
		return "awaiting callback"
	case LoggedIn:
		return "logged in"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exchanger trades an authorization code for a token. The relay client
// implements it.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (*models.TokenResponse, error)
}

// Manager drives the session lifecycle against a Store.
type Manager struct {
	store     Store
	exchanger Exchanger
	oauth     *oauth2.Config

	// exchangeMu keeps the stored-token check and the write that follows
	// the exchange together.
	exchangeMu sync.Mutex
	awaiting   atomic.Bool
}

// NewManager returns a Manager for the OAuth app clientID.
func NewManager(store Store, exchanger Exchanger, clientID string, endpoint oauth2.Endpoint) *Manager {
	return &Manager{
		store:     store,
		exchanger: exchanger,
		oauth: &oauth2.Config{
			ClientID: clientID,
			Endpoint: endpoint,
		},
	}
}

// LoginURL is the provider page the user is sent to. No state parameter is
// added.
func (m *Manager) LoginURL() string {
	return m.oauth.AuthCodeURL("")
}

// State reports the current lifecycle state.
func (m *Manager) State() (State, error) {
	if m.awaiting.Load() {
		return AwaitingCallback, nil
	}
	token, err := m.store.Get()
	if err != nil {
		return LoggedOut, err
	}
	if token == "" {
		return LoggedOut, nil
	}
	return LoggedIn, nil
}

// HandleCallback inspects the URL the provider redirected to. It returns
// true when a new token was stored. Nothing is inspected while a token is
// already stored.
func (m *Manager) HandleCallback(ctx context.Context, callbackURL string) (bool, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return false, apperr.Validation("callback", err.Error())
	}
	query := u.Query()

	// A stored token means the redirect is stale, whatever it carries.
	existing, err := m.store.Get()
	if err != nil {
		return false, err
	}
	if existing != "" {
		logging.Debug("session token already stored, ignoring callback")
		return false, nil
	}

	if e := query.Get("error"); e != "" {
		msg := query.Get("error_description")
		if msg == "" {
			msg = e
		}
		return false, &apperr.UpstreamError{Op: "authorize", Message: msg}
	}

	code := query.Get("code")
	if code == "" {
		return false, nil
	}
	return m.HandleCode(ctx, code)
}

// HandleCode exchanges code for a token unless one is already stored, in
// which case the code is ignored. Failures leave the session logged out and
// are not retried.
func (m *Manager) HandleCode(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, apperr.Validation("code", "authorization code is required")
	}

	m.exchangeMu.Lock()
	defer m.exchangeMu.Unlock()

	existing, err := m.store.Get()
	if err != nil {
		return false, err
	}
	if existing != "" {
		logging.Debug("session token already stored, ignoring authorization code")
		return false, nil
	}

	m.awaiting.Store(true)
	defer m.awaiting.Store(false)

	// Exchange the code through the relay
	resp, err := m.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		logging.Error("failed to exchange authorization code", "error", err)
		return false, fmt.Errorf("failed to get access token: %w", err)
	}
	if resp.AccessToken == "" {
		msg := resp.ErrorDescription
		if msg == "" {
			msg = resp.Error
		}
		if msg == "" {
			msg = "no access token in response"
		}
		logging.Warn("authorization code rejected", "error", resp.Error, "description", resp.ErrorDescription)
		return false, &apperr.UpstreamError{Op: "exchange authorization code", Message: msg}
	}

	if err := m.store.Set(resp.AccessToken); err != nil {
		return false, err
	}
	logging.Info("logged in", "scope", resp.Scope, "token", logging.MaskSensitive(resp.AccessToken))
	return true, nil
}

// Logout forgets the stored token.
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// Token returns the session token or a *apperr.MissingAuthError.
func (m *Manager) Token() (string, error) {
	token, err := m.store.Get()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &apperr.MissingAuthError{}
	}
	return token, nil
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}
