package ports

import (
	"context"

	"github.com/bnema/itcsync/internal/domain"
)

type ProjectRepository interface {
	GetByID(ctx context.Context, id domain.ProjectID) (domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	Save(ctx context.Context, project domain.Project) error
}
