package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credentials identify the account holder: phone number in E.164 form
// plus the numeric PIN. Supplied once at process start and held only
// in memory.
type Credentials struct {
	PhoneNumber string
	PIN         string
}

// Challenge is the pending out-of-band verification returned by Login.
// The one-time code arrives via SMS and must be passed to Verify
// before the challenge expires.
type Challenge struct {
	ProcessID string
	IssuedAt  time.Time
	TTL       time.Duration
}

// Expired reports whether the challenge can no longer be verified.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.IssuedAt.Add(c.TTL))
}

// Session holds the access and refresh credentials for one process
// run. It is mutated in place by Client.Refresh; exactly one live
// Session exists per running process.
type Session struct {
	Token        string    `json:"session_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// refreshMargin is the fraction of total lifetime below which a
// proactive refresh is due.
const refreshMargin = 0.1

// NeedsRefresh reports whether the remaining lifetime has dropped
// under the safety margin.
func (s *Session) NeedsRefresh(now time.Time) bool {
	total := s.ExpiresAt.Sub(s.IssuedAt)
	if total <= 0 {
		return true
	}
	remaining := s.ExpiresAt.Sub(now)
	return float64(remaining) < float64(total)*refreshMargin
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SaveSession caches the session tokens at path with owner-only
// permissions so a later run can skip the OTP exchange.
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("SaveSession: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("SaveSession: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("SaveSession: %w", err)
	}
	return nil
}

// LoadSession reads a previously cached session. A missing file
// returns (nil, nil).
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadSession: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("LoadSession: parsing %s: %w", path, err)
	}
	return &s, nil
}
