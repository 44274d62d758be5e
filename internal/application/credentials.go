package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// StateStore is the per-project runtime state the services read and write.
// The TOML StateRepository implements all of it.
type StateStore interface {
	ports.SessionRepository
	ports.SyncRecordRepository
	ports.AppSelectionRepository
	ports.DirectoryRepository
}

type CredentialResolver struct {
	secrets ports.SecretStore
}

func NewCredentialResolver(secrets ports.SecretStore) *CredentialResolver {
	return &CredentialResolver{secrets: secrets}
}

// Resolve loads the project's login. A missing password yields credentials
// that are not Configured rather than an error.
func (r *CredentialResolver) Resolve(ctx context.Context, project domain.Project) (domain.Credentials, error) {
	creds := domain.Credentials{Email: project.Email}
	if project.PasswordRef == "" || r.secrets == nil {
		return creds, nil
	}

	password, err := r.secrets.Get(ctx, project.PasswordRef)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return creds, nil
		}
		return domain.Credentials{}, fmt.Errorf("load password for project %s: %w", project.ID, err)
	}
	creds.Password = password

	return creds, nil
}
