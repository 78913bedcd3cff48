package playback

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Credentials are the configured ways to obtain a bearer token
type Credentials struct {
	DeviceAPIKey string
	Token        string
	Email        string
	Password     string
}

func (c Credentials) canLogin() bool {
	return c.Email != "" && c.Password != ""
}

// TokenSource holds the current bearer token.
// A device key outranks a static token, which outranks email/password login.
type TokenSource struct {
	creds  Credentials
	auth   port.Authenticator
	logger *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenSource creates a token source; auth is only used for login
func NewTokenSource(creds Credentials, auth port.Authenticator, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		creds:  creds,
		auth:   auth,
		logger: logger,
	}
}

// Current returns the token to send, "" for anonymous access
func (t *TokenSource) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// CanRefresh reports whether any credential is configured
func (t *TokenSource) CanRefresh() bool {
	return t.creds.DeviceAPIKey != "" || t.creds.Token != "" || t.creds.canLogin()
}

// Refresh obtains a token by priority and stores it
func (t *TokenSource) Refresh(ctx context.Context) (string, error) {
	var (
		token  string
		source string
	)

	switch {
	case t.creds.DeviceAPIKey != "":
		token, source = t.creds.DeviceAPIKey, "device_key"
	case t.creds.Token != "":
		token, source = t.creds.Token, "static_token"
	case t.creds.canLogin() && t.auth != nil:
		var err error
		token, err = t.auth.AuthWithPassword(ctx, t.creds.Email, t.creds.Password)
		if err != nil {
			return "", err
		}
		source = "password_login"
	default:
		return "", domain.ErrNoCredentials
	}

	t.mu.Lock()
	t.token = token
	t.mu.Unlock()

	t.logger.Debug("auth token refreshed", zap.String("source", source))
	return token, nil
}

// Init sets the initial token. Having no credentials is not an error.
func (t *TokenSource) Init(ctx context.Context) error {
	if !t.CanRefresh() {
		t.logger.Info("no credentials configured, using anonymous access")
		return nil
	}
	_, err := t.Refresh(ctx)
	return err
}
