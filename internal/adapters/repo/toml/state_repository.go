package toml

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// StateRepository keeps per-project runtime state (session, directory cache,
// app selection and sync records) in a single TOML file.
type StateRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	_ ports.SessionRepository      = (*StateRepository)(nil)
	_ ports.SyncRecordRepository   = (*StateRepository)(nil)
	_ ports.AppSelectionRepository = (*StateRepository)(nil)
	_ ports.DirectoryRepository    = (*StateRepository)(nil)
)

func NewStateRepository(cfg *viper.Viper) (*StateRepository, error) {
	path, err := resolvePath(cfg, config.KeyStatePath)
	if err != nil {
		return nil, err
	}

	return &StateRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *StateRepository) LoadSession(ctx context.Context, project domain.ProjectID) (domain.SessionState, error) {
	entry, _, err := r.load(ctx, project)
	if err != nil {
		return domain.SessionState{}, err
	}

	if entry.Session == nil {
		return domain.NewSessionState(), nil
	}

	return fromSessionSchema(*entry.Session).Normalize(), nil
}

func (r *StateRepository) SaveSession(ctx context.Context, project domain.ProjectID, state domain.SessionState) error {
	return r.update(ctx, func(file *stateFileSchema) (bool, error) {
		encoded := toSessionSchema(state)
		file.project(string(project)).Session = &encoded
		return true, nil
	})
}

func (r *StateRepository) SyncRecords(ctx context.Context, project domain.ProjectID) (map[domain.BuildKey]domain.SyncRecord, error) {
	entry, _, err := r.load(ctx, project)
	if err != nil {
		return nil, err
	}

	records := make(map[domain.BuildKey]domain.SyncRecord, len(entry.Records))
	for _, raw := range entry.Records {
		record, err := fromSyncRecordSchema(raw)
		if err != nil {
			return nil, err
		}
		records[record.Key] = record
	}

	return records, nil
}

func (r *StateRepository) RecordSynced(ctx context.Context, project domain.ProjectID, record domain.SyncRecord) (bool, error) {
	key := record.Key.String()
	inserted := false

	err := r.update(ctx, func(file *stateFileSchema) (bool, error) {
		entry := file.project(string(project))
		for _, existing := range entry.Records {
			if existing.Key == key {
				return false, nil
			}
		}

		entry.Records = append(entry.Records, toSyncRecordSchema(record))
		inserted = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

func (r *StateRepository) ActiveApps(ctx context.Context, project domain.ProjectID) (map[domain.AppID]struct{}, error) {
	entry, _, err := r.load(ctx, project)
	if err != nil {
		return nil, err
	}

	active := make(map[domain.AppID]struct{}, len(entry.ActiveApps))
	for _, id := range entry.ActiveApps {
		active[domain.AppID(id)] = struct{}{}
	}

	return active, nil
}

func (r *StateRepository) ToggleActiveApp(ctx context.Context, project domain.ProjectID, app domain.AppID) (bool, error) {
	active := false

	err := r.update(ctx, func(file *stateFileSchema) (bool, error) {
		entry := file.project(string(project))
		if idx := slices.Index(entry.ActiveApps, string(app)); idx >= 0 {
			entry.ActiveApps = slices.Delete(entry.ActiveApps, idx, idx+1)
			return true, nil
		}

		entry.ActiveApps = append(entry.ActiveApps, string(app))
		slices.Sort(entry.ActiveApps)
		active = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	return active, nil
}

func (r *StateRepository) LoadDirectory(ctx context.Context, project domain.ProjectID) (*domain.Directory, error) {
	entry, _, err := r.load(ctx, project)
	if err != nil {
		return nil, err
	}

	if entry.Directory == nil {
		return nil, nil
	}

	directory := fromDirectorySchema(*entry.Directory)
	return &directory, nil
}

func (r *StateRepository) SaveDirectory(ctx context.Context, project domain.ProjectID, directory domain.Directory) error {
	return r.update(ctx, func(file *stateFileSchema) (bool, error) {
		encoded := toDirectorySchema(directory)
		file.project(string(project)).Directory = &encoded
		return true, nil
	})
}

func (r *StateRepository) load(ctx context.Context, project domain.ProjectID) (projectStateSchema, bool, error) {
	if err := ctx.Err(); err != nil {
		return projectStateSchema{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return projectStateSchema{}, false, err
	}

	entry, ok := file.find(string(project))
	return entry, ok, nil
}

// update runs mutate under the write lock and persists the file only when
// mutate reports a change.
func (r *StateRepository) update(ctx context.Context, mutate func(*stateFileSchema) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	changed, err := mutate(&file)
	if err != nil || !changed {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeTOMLFile(r.path, file); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

func (r *StateRepository) readSchema() (stateFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := stateFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return stateFileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file stateFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return stateFileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return stateFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toSessionSchema(state domain.SessionState) sessionSchema {
	return sessionSchema{
		Version:            state.Version,
		ServiceKey:         state.ServiceKey,
		SessionID:          state.SessionID,
		SCNT:               state.SCNT,
		CurrentTeamID:      string(state.CurrentTeamID),
		UserID:             state.UserID,
		Authenticated:      state.Authenticated,
		TwoFactorPending:   state.TwoFactorPending,
		TwoFactorCompleted: state.TwoFactorCompleted,
		Cookies:            maps.Clone(state.Cookies),
		LastError:          state.LastError,
		UpdatedAt:          formatTime(state.UpdatedAt),
	}
}

func fromSessionSchema(schema sessionSchema) domain.SessionState {
	return domain.SessionState{
		Version:            schema.Version,
		ServiceKey:         schema.ServiceKey,
		SessionID:          schema.SessionID,
		SCNT:               schema.SCNT,
		CurrentTeamID:      domain.TeamID(schema.CurrentTeamID),
		UserID:             schema.UserID,
		Authenticated:      schema.Authenticated,
		TwoFactorPending:   schema.TwoFactorPending,
		TwoFactorCompleted: schema.TwoFactorCompleted,
		Cookies:            maps.Clone(schema.Cookies),
		LastError:          schema.LastError,
		UpdatedAt:          parseTime(schema.UpdatedAt),
	}
}

func toSyncRecordSchema(record domain.SyncRecord) syncRecordSchema {
	return syncRecordSchema{
		Key:          record.Key.String(),
		Downloaded:   record.Downloaded,
		ArtifactRefs: slices.Clone(record.ArtifactRefs),
		SyncedAt:     formatTime(record.SyncedAt),
	}
}

func fromSyncRecordSchema(schema syncRecordSchema) (domain.SyncRecord, error) {
	key, err := domain.ParseBuildKey(schema.Key)
	if err != nil {
		return domain.SyncRecord{}, fmt.Errorf("decode sync record: %w", err)
	}

	return domain.SyncRecord{
		Key:          key,
		Downloaded:   schema.Downloaded,
		ArtifactRefs: slices.Clone(schema.ArtifactRefs),
		SyncedAt:     parseTime(schema.SyncedAt),
	}, nil
}

func toDirectorySchema(directory domain.Directory) directorySchema {
	teams := make([]teamSchema, 0, len(directory.Teams))
	for _, team := range directory.Teams {
		apps := make([]appSchema, 0, len(team.Apps))
		for _, app := range team.Apps {
			apps = append(apps, appSchema{
				ID:        string(app.ID),
				BundleID:  app.BundleID,
				Name:      app.Name,
				IconURL:   app.IconURL,
				Platforms: slices.Clone(app.Platforms),
			})
		}
		teams = append(teams, teamSchema{
			ID:    string(team.ID),
			Name:  team.Name,
			Roles: slices.Clone(team.Roles),
			Apps:  apps,
		})
	}

	return directorySchema{
		UserID:      directory.UserID,
		Email:       directory.Email,
		DisplayName: directory.DisplayName,
		FetchedAt:   formatTime(directory.FetchedAt),
		Teams:       teams,
	}
}

func fromDirectorySchema(schema directorySchema) domain.Directory {
	teams := make([]domain.Team, 0, len(schema.Teams))
	for _, team := range schema.Teams {
		apps := make([]domain.App, 0, len(team.Apps))
		for _, app := range team.Apps {
			apps = append(apps, domain.App{
				ID:        domain.AppID(app.ID),
				BundleID:  app.BundleID,
				Name:      app.Name,
				IconURL:   app.IconURL,
				Platforms: slices.Clone(app.Platforms),
			})
		}
		teams = append(teams, domain.Team{
			ID:    domain.TeamID(team.ID),
			Name:  team.Name,
			Roles: slices.Clone(team.Roles),
			Apps:  apps,
		})
	}

	return domain.Directory{
		UserID:      schema.UserID,
		Email:       schema.Email,
		DisplayName: schema.DisplayName,
		FetchedAt:   parseTime(schema.FetchedAt),
		Teams:       teams,
	}
}
