// Package auth keeps the bearer token pair for the coordinator backend on
// disk and refreshes the access token when it expires.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrAuthRequired means no token is stored; the user must sign in.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionExpired means the refresh token was rejected; the user must
	// sign in again.
	ErrSessionExpired = errors.New("session expired")
)

const tokenFileName = "tokens.json"

// Tokens is the persisted credential pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store loads, refreshes and persists tokens for one backend.
type Store struct {
	path    string
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu     sync.Mutex
	tokens *Tokens
}

func NewStore(dir, baseURL string, logger *zap.Logger) *Store {
	return &Store{
		path:    filepath.Join(dir, tokenFileName),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// AccessToken returns the stored access token, loading the token file on
// first use. It fails with ErrAuthRequired when nothing is stored.
func (s *Store) AccessToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	if s.tokens == nil || s.tokens.AccessToken == "" {
		return "", ErrAuthRequired
	}
	return s.tokens.AccessToken, nil
}

// Login exchanges credentials for a token pair and persists it.
func (s *Store) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: %s", res.Status)
	}

	var tokens Tokens
	if err := json.NewDecoder(res.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if tokens.AccessToken == "" {
		return errors.New("login response contained no access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = &tokens
	return s.saveLocked()
}

// Refresh trades the refresh token for a new access token. Callers retry a
// request at most once after a successful refresh; a rejected refresh is a
// terminal ErrSessionExpired.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	if s.tokens == nil || s.tokens.RefreshToken == "" {
		return "", ErrAuthRequired
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": s.tokens.RefreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		s.logger.Warn("token refresh rejected", zap.String("status", res.Status))
		return "", ErrSessionExpired
	}

	var refreshed Tokens
	if err := json.NewDecoder(res.Body).Decode(&refreshed); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if refreshed.AccessToken == "" {
		return "", ErrSessionExpired
	}

	s.tokens.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		s.tokens.RefreshToken = refreshed.RefreshToken
	}
	if err := s.saveLocked(); err != nil {
		s.logger.Warn("failed to persist refreshed tokens", zap.Error(err))
	}
	return s.tokens.AccessToken, nil
}

// Clear removes the stored tokens (sign out).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) loadLocked() error {
	if s.tokens != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return fmt.Errorf("failed to parse token file: %w", err)
	}
	s.tokens = &tokens
	return nil
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
