package toml

import "fmt"

const currentProjectsSchemaVersion = 1

type projectsFileSchema struct {
	Version  int             `toml:"version"`
	Projects []projectSchema `toml:"projects"`
}

func (s *projectsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentProjectsSchemaVersion
	}
}

func (s projectsFileSchema) validateVersion() error {
	if s.Version > currentProjectsSchemaVersion {
		return fmt.Errorf("unsupported projects schema version %d (current %d)", s.Version, currentProjectsSchemaVersion)
	}

	return nil
}

type projectSchema struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	Email       string `toml:"email"`
	PasswordRef string `toml:"password_ref"`
}
