package auth

import "fmt"

// Reason identifies why an authentication step failed.
type Reason string

const (
	ReasonLoginRejected    Reason = "login_rejected"
	ReasonInvalidCode      Reason = "invalid_code"
	ReasonExpiredChallenge Reason = "expired_challenge"
	ReasonRefreshRejected  Reason = "refresh_rejected"
)

// AuthError is fatal to the current run; the caller decides on
// user-facing messaging. It is never retried beyond the bounded
// refresh retry inside Client.Refresh.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }
