package ports

import (
	"context"

	"github.com/bnema/itcsync/internal/domain"
)

type SessionRepository interface {
	// LoadSession returns an empty state when nothing was stored yet.
	LoadSession(ctx context.Context, project domain.ProjectID) (domain.SessionState, error)
	SaveSession(ctx context.Context, project domain.ProjectID, state domain.SessionState) error
}

type SyncRecordRepository interface {
	SyncRecords(ctx context.Context, project domain.ProjectID) (map[domain.BuildKey]domain.SyncRecord, error)
	// RecordSynced stores record unless one already exists for its key.
	// inserted is false for a duplicate, which is not an error.
	RecordSynced(ctx context.Context, project domain.ProjectID, record domain.SyncRecord) (inserted bool, err error)
}

type AppSelectionRepository interface {
	ActiveApps(ctx context.Context, project domain.ProjectID) (map[domain.AppID]struct{}, error)
	// ToggleActiveApp flips the selection and returns the new value.
	ToggleActiveApp(ctx context.Context, project domain.ProjectID, app domain.AppID) (active bool, err error)
}

type DirectoryRepository interface {
	LoadDirectory(ctx context.Context, project domain.ProjectID) (*domain.Directory, error)
	SaveDirectory(ctx context.Context, project domain.ProjectID, directory domain.Directory) error
}
