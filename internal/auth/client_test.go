package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, zerolog.Nop())
	return c, srv
}

func TestLogin(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/web/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"processId":"proc-1","countdownInSeconds":120}`))
	}))

	ch, err := c.Login(context.Background(), Credentials{PhoneNumber: "+4915501234567", PIN: "1234"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ch.ProcessID != "proc-1" {
		t.Errorf("ProcessID = %q, want proc-1", ch.ProcessID)
	}
	if ch.TTL != 2*time.Minute {
		t.Errorf("TTL = %v, want 2m", ch.TTL)
	}
}

func TestLogin_Rejected(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"errorCode":"TOO_MANY_REQUESTS"}]}`, http.StatusUnauthorized)
	}))

	_, err := c.Login(context.Background(), Credentials{PhoneNumber: "+4915501234567", PIN: "0000"})
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Reason != ReasonLoginRejected {
		t.Fatalf("expected AuthError{login_rejected}, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/web/login/proc-1/1357" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		http.SetCookie(w, &http.Cookie{Name: "tr_session", Value: "sess-token"})
		http.SetCookie(w, &http.Cookie{Name: "tr_refresh", Value: "refresh-token"})
	}))

	ch := &Challenge{ProcessID: "proc-1", IssuedAt: time.Now(), TTL: time.Minute}
	s, err := c.Verify(context.Background(), ch, "1357")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.Token != "sess-token" || s.RefreshToken != "refresh-token" {
		t.Errorf("tokens = %q/%q", s.Token, s.RefreshToken)
	}
	if s.ExpiresAt.IsZero() || !s.ExpiresAt.After(s.IssuedAt) {
		t.Errorf("expiry window not set: %v .. %v", s.IssuedAt, s.ExpiresAt)
	}
}

func TestVerify_InvalidCode(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wrong code", http.StatusBadRequest)
	}))

	ch := &Challenge{ProcessID: "proc-1", IssuedAt: time.Now(), TTL: time.Minute}
	_, err := c.Verify(context.Background(), ch, "0000")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Reason != ReasonInvalidCode {
		t.Fatalf("expected AuthError{invalid_code}, got %v", err)
	}
}

func TestVerify_ExpiredChallenge(t *testing.T) {
	c := NewClient("http://unused", zerolog.Nop())
	ch := &Challenge{ProcessID: "proc-1", IssuedAt: time.Now().Add(-10 * time.Minute), TTL: time.Minute}
	_, err := c.Verify(context.Background(), ch, "1357")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Reason != ReasonExpiredChallenge {
		t.Fatalf("expected AuthError{expired_challenge}, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("tr_refresh"); err != nil || ck.Value != "refresh-token" {
			t.Errorf("refresh cookie not sent")
		}
		http.SetCookie(w, &http.Cookie{Name: "tr_session", Value: "sess-2"})
	}))

	s := &Session{Token: "sess-1", RefreshToken: "refresh-token"}
	if err := c.Refresh(context.Background(), s); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Token != "sess-2" {
		t.Errorf("Token = %q, want sess-2", s.Token)
	}
}

func TestRefresh_BoundedRetries(t *testing.T) {
	var hits atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	s := &Session{Token: "sess-1", RefreshToken: "refresh-token"}
	err := c.Refresh(context.Background(), s)

	var ae *AuthError
	if !errors.As(err, &ae) || ae.Reason != ReasonRefreshRejected {
		t.Fatalf("expected AuthError{refresh_rejected}, got %v", err)
	}
	if got := hits.Load(); got != maxRefreshRetries {
		t.Errorf("server hit %d times, want %d", got, maxRefreshRetries)
	}
}

func TestRefresh_SingleFlight(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		http.SetCookie(w, &http.Cookie{Name: "tr_session", Value: "sess-2"})
	}))

	s := &Session{Token: "sess-1", RefreshToken: "refresh-token"}

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Refresh(context.Background(), s)
		}(i)
	}

	// Let the goroutines pile up on the in-flight call, then unblock.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1 (single-flight)", got)
	}
}

func TestSession_NeedsRefresh(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		issuedAgo time.Duration
		lifetime  time.Duration
		want      bool
	}{
		{"fresh", 0, 10 * time.Minute, false},
		{"halfway", 5 * time.Minute, 10 * time.Minute, false},
		{"inside margin", 9*time.Minute + 30*time.Second, 10 * time.Minute, true},
		{"expired", 11 * time.Minute, 10 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{
				IssuedAt:  now.Add(-tt.issuedAgo),
				ExpiresAt: now.Add(tt.lifetime - tt.issuedAgo),
			}
			if got := s.NeedsRefresh(now); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionRoundtrip(t *testing.T) {
	path := t.TempDir() + "/tokens.json"
	s := &Session{
		Token:        "sess",
		RefreshToken: "refresh",
		IssuedAt:     time.Now().Truncate(time.Second),
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := SaveSession(path, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if loaded.Token != s.Token || loaded.RefreshToken != s.RefreshToken {
		t.Errorf("loaded = %+v, want %+v", loaded, s)
	}
}

func TestLoadSession_Missing(t *testing.T) {
	s, err := LoadSession(t.TempDir() + "/none.json")
	if err != nil || s != nil {
		t.Errorf("LoadSession missing file = (%v, %v), want (nil, nil)", s, err)
	}
}
