package eodhd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/harborfin/drift/internal/common"
)

// Session manages the provider's one-time warm-up handshake: a cheap
// authenticated call that validates the API key and primes the connection
// before the first data request. It is an explicit, injectable component with
// its own lifecycle rather than hidden process-global state, so the
// rebalancing core stays free of static initialization.
type Session struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger

	mu       sync.Mutex
	warmedAt time.Time
	lastErr  error
}

// NewSession creates a session connection manager.
func NewSession(baseURL, apiKey string, timeout time.Duration, logger *common.Logger) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Session{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Ensure runs the warm-up once. Subsequent calls return immediately after a
// successful warm-up; a failed warm-up is retried on the next call rather
// than latched, so a transient startup outage doesn't poison the process.
func (s *Session) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.warmedAt.IsZero() {
		return nil
	}

	if err := s.warmUp(ctx); err != nil {
		s.lastErr = err
		return err
	}

	s.warmedAt = time.Now()
	s.lastErr = nil
	s.logger.Debug().Msg("EODHD session warmed up")
	return nil
}

// warmUp validates the API key against the user endpoint.
func (s *Session) warmUp(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/user?api_token=%s&fmt=json", s.baseURL, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create warm-up request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("warm-up request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "warm-up rejected",
			Endpoint:   "/user",
		}
	}

	return nil
}

// Close resets the session lifecycle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmedAt = time.Time{}
	return nil
}
