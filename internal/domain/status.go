package domain

import "strconv"

type ConnectionState string

const (
	ConnectionNotConfigured     ConnectionState = "not_configured"
	ConnectionNotAuthenticated  ConnectionState = "not_authenticated"
	ConnectionAwaitingTwoFactor ConnectionState = "awaiting_two_factor"
	ConnectionAuthenticated     ConnectionState = "authenticated_ok"
	ConnectionAuthError         ConnectionState = "auth_error"
)

func (s ConnectionState) Label() string {
	switch s {
	case ConnectionNotConfigured:
		return "not configured"
	case ConnectionNotAuthenticated:
		return "not yet authenticated"
	case ConnectionAwaitingTwoFactor:
		return "awaiting two-factor code"
	case ConnectionAuthenticated:
		return "connected"
	case ConnectionAuthError:
		return "connection error"
	default:
		return string(s)
	}
}

type ProjectStatus struct {
	Project      Project
	State        ConnectionState
	Message      string
	Diagnostic   string
	Directory    *Directory
	ActiveApps   map[AppID]bool
	SyncedBuilds int
}

// Summary is the single human-readable line shown to operators.
func (s ProjectStatus) Summary() string {
	if s.State == ConnectionAuthenticated && s.Directory != nil {
		return "connected with " + pluralize(len(s.Directory.Teams), "team") + " / " + pluralize(s.Directory.AppCount(), "app")
	}
	if s.Message != "" {
		return s.Message
	}
	return s.State.Label()
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
