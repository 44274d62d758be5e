package toml

import "fmt"

const currentStateSchemaVersion = 1

type stateFileSchema struct {
	Version  int                  `toml:"version"`
	Projects []projectStateSchema `toml:"projects"`
}

func (s *stateFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentStateSchemaVersion
	}
}

func (s stateFileSchema) validateVersion() error {
	if s.Version > currentStateSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentStateSchemaVersion)
	}

	return nil
}

// project returns the entry for id, appending an empty one when missing.
func (s *stateFileSchema) project(id string) *projectStateSchema {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return &s.Projects[i]
		}
	}

	s.Projects = append(s.Projects, projectStateSchema{ID: id})
	return &s.Projects[len(s.Projects)-1]
}

func (s stateFileSchema) find(id string) (projectStateSchema, bool) {
	for _, entry := range s.Projects {
		if entry.ID == id {
			return entry, true
		}
	}

	return projectStateSchema{}, false
}

type projectStateSchema struct {
	ID         string             `toml:"id"`
	ActiveApps []string           `toml:"active_apps,omitempty"`
	Session    *sessionSchema     `toml:"session,omitempty"`
	Directory  *directorySchema   `toml:"directory,omitempty"`
	Records    []syncRecordSchema `toml:"records,omitempty"`
}

type sessionSchema struct {
	Version            int               `toml:"version"`
	ServiceKey         string            `toml:"service_key,omitempty"`
	SessionID          string            `toml:"session_id,omitempty"`
	SCNT               string            `toml:"scnt,omitempty"`
	CurrentTeamID      string            `toml:"current_team_id,omitempty"`
	UserID             string            `toml:"user_id,omitempty"`
	Authenticated      bool              `toml:"authenticated"`
	TwoFactorPending   bool              `toml:"two_factor_pending"`
	TwoFactorCompleted bool              `toml:"two_factor_completed"`
	Cookies            map[string]string `toml:"cookies,omitempty"`
	LastError          string            `toml:"last_error,omitempty"`
	UpdatedAt          string            `toml:"updated_at,omitempty"`
}

type directorySchema struct {
	UserID      string       `toml:"user_id,omitempty"`
	Email       string       `toml:"email,omitempty"`
	DisplayName string       `toml:"display_name,omitempty"`
	FetchedAt   string       `toml:"fetched_at,omitempty"`
	Teams       []teamSchema `toml:"teams,omitempty"`
}

type teamSchema struct {
	ID    string      `toml:"id"`
	Name  string      `toml:"name"`
	Roles []string    `toml:"roles,omitempty"`
	Apps  []appSchema `toml:"apps,omitempty"`
}

type appSchema struct {
	ID        string   `toml:"id"`
	BundleID  string   `toml:"bundle_id,omitempty"`
	Name      string   `toml:"name"`
	IconURL   string   `toml:"icon_url,omitempty"`
	Platforms []string `toml:"platforms,omitempty"`
}

type syncRecordSchema struct {
	Key          string   `toml:"key"`
	Downloaded   bool     `toml:"downloaded"`
	ArtifactRefs []string `toml:"artifact_refs,omitempty"`
	SyncedAt     string   `toml:"synced_at,omitempty"`
}
