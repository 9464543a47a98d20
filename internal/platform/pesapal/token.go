package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenSource yields a bearer token valid for at least the next request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token, for tests.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }

const tokenRefreshMargin = 30 * time.Second

// CachedTokenSource exchanges consumer credentials for a short-lived bearer
// token and reuses it until shortly before expiry.
type CachedTokenSource struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	http           *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewCachedTokenSource(opts Options, consumerKey, consumerSecret string) *CachedTokenSource {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &CachedTokenSource{
		baseURL:        strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		http:           httpClient,
	}
}

func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires.Add(-tokenRefreshMargin)) {
		return s.token, nil
	}

	token, expires, err := s.requestToken(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expires = expires
	return token, nil
}

func (s *CachedTokenSource) requestToken(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(map[string]string{
		"consumer_key":    s.consumerKey,
		"consumer_secret": s.consumerSecret,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/Auth/RequestToken", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", time.Time{}, fmt.Errorf("%w: http status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parsed struct {
		Token      string `json:"token"`
		ExpiryDate string `json:"expiryDate"`
		Error      *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrAuthFailed, parsed.Error.Message)
	}
	if parsed.Token == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing token", ErrAuthFailed)
	}

	return parsed.Token, tokenExpiry(parsed.Token, parsed.ExpiryDate), nil
}

// tokenExpiry prefers the exp claim inside the JWT itself and falls back to
// the expiryDate field, then to a conservative 4 minutes.
func tokenExpiry(token, expiryDate string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok && exp > 0 {
			return time.Unix(int64(exp), 0)
		}
	}
	if expiryDate != "" {
		if t, err := time.Parse(time.RFC3339, expiryDate); err == nil {
			return t
		}
	}
	return time.Now().Add(4 * time.Minute)
}
