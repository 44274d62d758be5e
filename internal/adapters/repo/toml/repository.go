package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type ProjectRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

func NewProjectRepository(cfg *viper.Viper) (*ProjectRepository, error) {
	path, err := resolvePath(cfg, config.KeyProjectsPath)
	if err != nil {
		return nil, err
	}

	return &ProjectRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ProjectRepository) Save(ctx context.Context, project domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toProjectSchema(project)
	updated := false
	for i := range file.Projects {
		if file.Projects[i].ID == encoded.ID {
			file.Projects[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Projects = append(file.Projects, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeTOMLFile(r.path, file); err != nil {
		return fmt.Errorf("write projects file: %w", err)
	}

	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id domain.ProjectID) (domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return domain.Project{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Project{}, err
	}

	for _, entry := range file.Projects {
		if entry.ID == string(id) {
			return fromProjectSchema(entry), nil
		}
	}

	return domain.Project{}, domain.ErrProjectNotFound
}

func (r *ProjectRepository) List(ctx context.Context) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	projects := make([]domain.Project, 0, len(file.Projects))
	for _, entry := range file.Projects {
		projects = append(projects, fromProjectSchema(entry))
	}

	return projects, nil
}

func (r *ProjectRepository) readSchema() (projectsFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := projectsFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return projectsFileSchema{}, fmt.Errorf("read projects file: %w", err)
	}

	var file projectsFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return projectsFileSchema{}, fmt.Errorf("decode projects file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return projectsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func resolvePath(cfg *viper.Viper, key string) (string, error) {
	if cfg == nil {
		return "", errors.New("config is nil")
	}

	path := cfg.GetString(key)
	if path == "" {
		return "", fmt.Errorf("%s is empty", key)
	}

	return normalizePath(path)
}

func toProjectSchema(project domain.Project) projectSchema {
	return projectSchema{
		ID:          string(project.ID),
		Name:        project.Name,
		Enabled:     project.Enabled,
		Email:       project.Email,
		PasswordRef: project.PasswordRef,
	}
}

func fromProjectSchema(schema projectSchema) domain.Project {
	return domain.Project{
		ID:          domain.ProjectID(schema.ID),
		Name:        schema.Name,
		Enabled:     schema.Enabled,
		Email:       schema.Email,
		PasswordRef: schema.PasswordRef,
	}
}
