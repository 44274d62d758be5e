package domain

import (
	"fmt"
	"strings"
)

type ProjectID string

type Project struct {
	ID      ProjectID
	Name    string
	Enabled bool
	Email   string
	// PasswordRef points to a secret-store entry, typically "itcsync/projects/<id>/password".
	PasswordRef string
}

func (p Project) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.ContainsAny(string(p.ID), "/\\") {
		return fmt.Errorf("id %q must not contain path separators", p.ID)
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("email is required")
	}

	return nil
}

type Credentials struct {
	Email    string
	Password string
}

// Configured reports whether both halves of the login are present. An absent
// password means the integration is not configured yet.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}
