package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/remote"
)

// Transport is the slice of the remote client the auth service needs.
type Transport interface {
	PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error)
	SetToken(token string)
}

// TokenInfo is the persisted session token.
type TokenInfo struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token exists and has not expired.
func (t *TokenInfo) Valid() bool {
	return t != nil && t.Token != "" && (t.ExpiresAt.IsZero() || time.Now().Before(t.ExpiresAt))
}

// Service handles login and token persistence, and flips the remote gate's
// authenticated flag.
type Service struct {
	transport Transport
	gate      *remote.Gate
	tokenFile string
	logger    *events.Logger

	token *TokenInfo
}

// NewService creates an auth service. A previously saved token is restored
// and, when still valid, readies the gate immediately.
func NewService(transport Transport, gate *remote.Gate, tokenFile string, logger *events.Logger) *Service {
	s := &Service{
		transport: transport,
		gate:      gate,
		tokenFile: tokenFile,
		logger:    logger.WithField("service", "auth"),
	}

	if err := s.loadToken(); err == nil && s.token.Valid() {
		s.transport.SetToken(s.token.Token)
		s.gate.SetAuthenticated(true)
		s.logger.WithField("email", s.token.Email).Debug("Restored session token")
	}

	return s
}

// Login authenticates against the save service and persists the session
// token.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password required")
	}

	s.logger.WithField("email", email).Info("Logging in")

	resp, err := s.transport.PostJSON(ctx, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}

	token, _ := resp["token"].(string)
	if token == "" {
		return errors.New("login response missing token")
	}

	info := &TokenInfo{Token: token, Email: email}
	if exp, ok := resp["expires_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, exp); err == nil {
			info.ExpiresAt = t
		}
	}

	s.token = info
	s.transport.SetToken(token)
	s.gate.SetAuthenticated(true)

	if err := s.saveToken(); err != nil {
		s.logger.WithError(err).Warn("Failed to persist token")
	}

	return nil
}

// Logout drops the session locally.
func (s *Service) Logout() error {
	s.token = nil
	s.transport.SetToken("")
	s.gate.SetAuthenticated(false)

	if err := os.Remove(s.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Token returns the current session token, or empty when logged out.
func (s *Service) Token() string {
	if !s.token.Valid() {
		return ""
	}
	return s.token.Token
}

// Authenticated reports whether a valid session is held.
func (s *Service) Authenticated() bool {
	return s.token.Valid()
}

func (s *Service) saveToken() error {
	data, err := json.MarshalIndent(s.token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s *Service) loadToken() error {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return err
	}

	var info TokenInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}

	s.token = &info
	return nil
}
