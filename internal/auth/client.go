package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	cookieSession = "tr_session"
	cookieRefresh = "tr_refresh"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// The server does not state a session lifetime; observed sessions
	// last a few minutes, so expiry is tracked conservatively.
	defaultSessionTTL   = 5 * time.Minute
	defaultChallengeTTL = 2 * time.Minute

	maxRefreshRetries = 3
)

// Client talks to the identity endpoints: login, one-time-code
// verification and session refresh. It owns the single-flight refresh
// guarantee; components never refresh concurrently.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// NewClient creates an auth client against baseURL, e.g.
// "https://api.traderepublic.com/api/v1".
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log,
		now:     time.Now,
	}
}

type loginResponse struct {
	ProcessID          string `json:"processId"`
	CountdownInSeconds int    `json:"countdownInSeconds"`
}

// Login initiates the login flow. On success the server sends a
// one-time code via SMS; the returned Challenge must be completed
// with Verify.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Challenge, error) {
	body, err := json.Marshal(map[string]string{
		"phoneNumber": creds.PhoneNumber,
		"pin":         creds.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}

	resp, err := c.post(ctx, "/auth/web/login", body)
	if err != nil {
		return nil, &AuthError{Reason: ReasonLoginRejected, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Reason: ReasonLoginRejected, Err: httpError(resp)}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &AuthError{Reason: ReasonLoginRejected, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if lr.ProcessID == "" {
		return nil, &AuthError{Reason: ReasonLoginRejected, Err: fmt.Errorf("missing processId")}
	}

	ttl := defaultChallengeTTL
	if lr.CountdownInSeconds > 0 {
		ttl = time.Duration(lr.CountdownInSeconds) * time.Second
	}

	c.log.Info().Str("process_id", lr.ProcessID).Msg("login initiated, OTP sent")
	return &Challenge{ProcessID: lr.ProcessID, IssuedAt: c.now(), TTL: ttl}, nil
}

// Verify completes the challenge with the SMS code and returns the
// live Session built from the tr_session/tr_refresh cookies.
func (c *Client) Verify(ctx context.Context, ch *Challenge, code string) (*Session, error) {
	if ch.Expired(c.now()) {
		return nil, &AuthError{Reason: ReasonExpiredChallenge}
	}

	path := fmt.Sprintf("/auth/web/login/%s/%s", ch.ProcessID, code)
	resp, err := c.post(ctx, path, nil)
	if err != nil {
		return nil, &AuthError{Reason: ReasonInvalidCode, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusGone:
		return nil, &AuthError{Reason: ReasonExpiredChallenge, Err: httpError(resp)}
	default:
		return nil, &AuthError{Reason: ReasonInvalidCode, Err: httpError(resp)}
	}

	s := &Session{}
	c.applyCookies(s, resp)
	if s.Token == "" || s.RefreshToken == "" {
		return nil, &AuthError{Reason: ReasonInvalidCode, Err: fmt.Errorf("session cookies missing in response")}
	}

	c.log.Info().Msg("OTP verified, session established")
	return s, nil
}

// Refresh renews the session in place. Concurrent callers share one
// in-flight refresh; failures are retried a bounded number of times
// and then surfaced as AuthError{refresh_rejected}.
func (c *Client) Refresh(ctx context.Context, s *Session) error {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	call.err = c.doRefresh(ctx, s)

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)
	return call.err
}

func (c *Client) doRefresh(ctx context.Context, s *Session) error {
	var lastErr error
	for attempt := 1; attempt <= maxRefreshRetries; attempt++ {
		err := c.refreshOnce(ctx, s)
		if err == nil {
			c.log.Debug().Int("attempt", attempt).Msg("session refreshed")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("session refresh failed")

		if attempt < maxRefreshRetries {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &AuthError{Reason: ReasonRefreshRejected, Err: lastErr}
}

func (c *Client) refreshOnce(ctx context.Context, s *Session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/web/session", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: cookieRefresh, Value: s.RefreshToken})

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	c.applyCookies(s, resp)
	return nil
}

// applyCookies copies fresh token cookies into the session and resets
// its lifetime window.
func (c *Client) applyCookies(s *Session, resp *http.Response) {
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case cookieSession:
			s.Token = ck.Value
			s.IssuedAt = c.now()
			if !ck.Expires.IsZero() {
				s.ExpiresAt = ck.Expires
			} else {
				s.ExpiresAt = c.now().Add(defaultSessionTTL)
			}
		case cookieRefresh:
			s.RefreshToken = ck.Value
		}
	}
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	return c.httpc.Do(req)
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
