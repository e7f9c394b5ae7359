package app

import (
	"fmt"
	"strings"

	"onlinelibrary/pkg/auth"
	"onlinelibrary/pkg/domain"
	"onlinelibrary/pkg/storage"
	"onlinelibrary/pkg/store"
	"onlinelibrary/pkg/token"
)

// Config wires required dependencies for the core application.
type Config struct {
	Store  store.Store
	Tokens *token.Provider
	Covers storage.ObjectStore // optional; cover endpoints disabled when nil
}

// App is the core application service: user, book, purchase, and
// recommendation operations plus token-based authentication.
type App struct {
	store  store.Store
	tokens *token.Provider
	covers storage.ObjectStore
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider required")
	}
	return &App{
		store:  cfg.Store,
		tokens: cfg.Tokens,
		covers: cfg.Covers,
	}, nil
}

// TokenPair is the response of login and refresh.
type TokenPair struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for an access+refresh token pair.
func (a *App) Login(email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return TokenPair{}, ErrAuthenticationFailed
	}
	return a.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a new token pair. Roles are
// re-read from storage so role changes since issuance are picked up.
func (a *App) Refresh(refreshToken string) (TokenPair, error) {
	if !a.tokens.Validate(refreshToken) {
		return TokenPair{}, ErrAccessDenied
	}
	claims, err := a.tokens.Parse(refreshToken)
	if err != nil {
		return TokenPair{}, ErrAccessDenied
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return TokenPair{}, notFound("User not found.")
	}
	return a.issueTokens(user)
}

// AuthenticateToken resolves a bearer token to its user. The user's current
// roles come from storage, never from the token claims.
func (a *App) AuthenticateToken(accessToken string) (domain.User, error) {
	claims, err := a.tokens.Parse(accessToken)
	if err != nil {
		return domain.User{}, ErrAccessDenied
	}
	user, ok, err := a.store.GetUserByEmail(claims.Subject)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("User not found.")
	}
	return user, nil
}

func (a *App) issueTokens(user domain.User) (TokenPair, error) {
	access, err := a.tokens.NewAccessToken(user.ID, user.Email, user.Authorities)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := a.tokens.NewRefreshToken(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		ID:           user.ID,
		Username:     user.Email,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
