package application

import (
	"strings"

	"github.com/bnema/itcsync/internal/domain"
)

type AddProjectCommand struct {
	ID    domain.ProjectID
	Name  string
	Email string
	// Password is optional. Empty keeps any previously stored password.
	Password string
	Disabled bool
}

func (c AddProjectCommand) project() domain.Project {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = string(c.ID)
	}

	return domain.Project{
		ID:      c.ID,
		Name:    name,
		Enabled: !c.Disabled,
		Email:   strings.TrimSpace(c.Email),
	}
}

// PasswordKey is the secret-store key holding a project's vendor password.
func PasswordKey(id domain.ProjectID) string {
	return "itcsync/projects/" + string(id) + "/password"
}
