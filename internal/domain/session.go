package domain

import (
	"errors"
	"maps"
	"time"
)

// SessionStateVersion tags the persisted session shape. Snapshots carrying any
// other version are discarded on load.
const SessionStateVersion = 1

type TeamID string

type SessionState struct {
	Version            int
	ServiceKey         string
	SessionID          string
	SCNT               string
	CurrentTeamID      TeamID
	UserID             string
	Authenticated      bool
	TwoFactorPending   bool
	TwoFactorCompleted bool
	Cookies            map[string]string
	LastError          string
	UpdatedAt          time.Time
}

func NewSessionState() SessionState {
	return SessionState{Version: SessionStateVersion, Cookies: map[string]string{}}
}

func (s SessionState) IsEmpty() bool {
	return s.ServiceKey == "" && s.SessionID == "" && s.SCNT == "" && !s.Authenticated && len(s.Cookies) == 0
}

// SignInInProgress reports a sign-in that got a session id and scnt token but
// is not authenticated yet, usually because it waits for a second factor.
func (s SessionState) SignInInProgress() bool {
	return !s.Authenticated && s.SessionID != "" && s.SCNT != ""
}

func (s SessionState) Validate() error {
	if s.Authenticated {
		if s.SessionID == "" || s.SCNT == "" {
			return errors.New("authenticated session is missing session id or scnt")
		}
		if len(s.Cookies) == 0 {
			return errors.New("authenticated session has no cookies")
		}
		if s.TwoFactorPending && !s.TwoFactorCompleted {
			return errors.New("authenticated session still awaits two-factor")
		}
	}

	return nil
}

// Normalize maps any snapshot onto the current shape. Unknown versions and
// snapshots that break the session invariants become an empty state, which
// forces a fresh login. LastError survives so operators still see it.
func (s SessionState) Normalize() SessionState {
	if s.Version != SessionStateVersion || s.Validate() != nil {
		fresh := NewSessionState()
		fresh.LastError = s.LastError
		return fresh
	}

	normalized := s
	normalized.Cookies = maps.Clone(s.Cookies)
	if normalized.Cookies == nil {
		normalized.Cookies = map[string]string{}
	}

	return normalized
}

// Discarded returns the empty state that replaces a session the vendor no
// longer accepts.
func (s SessionState) Discarded(reason string, now time.Time) SessionState {
	fresh := NewSessionState()
	fresh.LastError = reason
	fresh.UpdatedAt = now
	return fresh
}
