package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/ports"
)

// ConnectionErrorSummary is the one line operators see for any failed
// connection attempt. The raw error goes into ProjectStatus.Diagnostic.
const ConnectionErrorSummary = "There was an error connecting to iTunes Connect."

type ConfigService struct {
	projects    ports.ProjectRepository
	state       StateStore
	secrets     ports.SecretStore
	credentials *CredentialResolver
	connector   ports.Connector
	clock       ports.Clock
}

func NewConfigService(projects ports.ProjectRepository, state StateStore, secrets ports.SecretStore, connector ports.Connector, clock ports.Clock) *ConfigService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &ConfigService{
		projects:    projects,
		state:       state,
		secrets:     secrets,
		credentials: NewCredentialResolver(secrets),
		connector:   connector,
		clock:       clock,
	}
}

// AddProject creates or updates a project. A non-empty password is written
// to the secret store first and removed again if the project cannot be saved.
func (s *ConfigService) AddProject(ctx context.Context, cmd AddProjectCommand) (domain.Project, error) {
	project := cmd.project()

	existing, err := s.projects.GetByID(ctx, cmd.ID)
	switch {
	case err == nil:
		project.PasswordRef = existing.PasswordRef
	case !errors.Is(err, domain.ErrProjectNotFound):
		return domain.Project{}, fmt.Errorf("get project by id: %w", err)
	}

	if err := project.Validate(); err != nil {
		return domain.Project{}, fmt.Errorf("validate project: %w", err)
	}

	if cmd.Password == "" {
		if err := s.projects.Save(ctx, project); err != nil {
			return domain.Project{}, fmt.Errorf("save project: %w", err)
		}
		return project, nil
	}

	key := PasswordKey(project.ID)
	if err := s.secrets.Put(ctx, key, cmd.Password); err != nil {
		return domain.Project{}, fmt.Errorf("store project password: %w", err)
	}
	project.PasswordRef = key

	if err := s.projects.Save(ctx, project); err != nil {
		if existing.PasswordRef == key {
			return domain.Project{}, fmt.Errorf("save project: %w", err)
		}
		if rollbackErr := s.secrets.Delete(ctx, key); rollbackErr != nil {
			return domain.Project{}, fmt.Errorf("save project and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}

	return project, nil
}

func (s *ConfigService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// TestConfiguration logs in and fetches the account directory. Connection
// failures are reported through the returned status, not the error.
func (s *ConfigService) TestConfiguration(ctx context.Context, id domain.ProjectID) (domain.ProjectStatus, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("get project by id: %w", err)
	}

	creds, err := s.credentials.Resolve(ctx, project)
	if err != nil {
		return domain.ProjectStatus{}, err
	}
	if !creds.Configured() {
		return s.Status(ctx, id)
	}

	state, err := s.state.LoadSession(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load session: %w", err)
	}
	// An explicit test always starts from a fresh login.
	if !state.Authenticated {
		state = domain.NewSessionState()
	}

	conn := s.connector.Connect(state)
	session := conn.Session()
	if err := session.Login(ctx, creds); err != nil {
		return s.connectionFailed(ctx, project, session.State(), err)
	}
	if !session.State().Authenticated {
		if err := s.state.SaveSession(ctx, id, session.State()); err != nil {
			return domain.ProjectStatus{}, fmt.Errorf("save session: %w", err)
		}
		return s.Status(ctx, id)
	}

	return s.refreshDirectory(ctx, project, conn)
}

// SubmitTwoFactor completes a login that is waiting for a security code.
func (s *ConfigService) SubmitTwoFactor(ctx context.Context, id domain.ProjectID, code string) (domain.ProjectStatus, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("get project by id: %w", err)
	}

	state, err := s.state.LoadSession(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load session: %w", err)
	}

	conn := s.connector.Connect(state)
	session := conn.Session()
	if err := session.SubmitTwoFactor(ctx, code); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			return domain.ProjectStatus{}, err
		case errors.Is(err, domain.ErrTwoFactorRejected):
			// The pending login stays usable for another code.
			rejected := session.State()
			rejected.LastError = err.Error()
			rejected.UpdatedAt = s.clock.Now()
			if saveErr := s.state.SaveSession(ctx, id, rejected); saveErr != nil {
				return domain.ProjectStatus{}, errors.Join(err, fmt.Errorf("save session: %w", saveErr))
			}
			return domain.ProjectStatus{}, err
		}
		status, statusErr := s.connectionFailed(ctx, project, session.State(), err)
		if statusErr != nil {
			return status, statusErr
		}
		return status, err
	}

	return s.refreshDirectory(ctx, project, conn)
}

// ToggleApp flips whether builds of app are synced for the project.
func (s *ConfigService) ToggleApp(ctx context.Context, id domain.ProjectID, app domain.AppID) (bool, error) {
	if _, err := s.projects.GetByID(ctx, id); err != nil {
		return false, fmt.Errorf("get project by id: %w", err)
	}

	active, err := s.state.ToggleActiveApp(ctx, id, app)
	if err != nil {
		return false, fmt.Errorf("toggle app %s: %w", app, err)
	}
	return active, nil
}

// Status is built from stored state only; it never calls the vendor.
func (s *ConfigService) Status(ctx context.Context, id domain.ProjectID) (domain.ProjectStatus, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("get project by id: %w", err)
	}

	status := domain.ProjectStatus{Project: project}

	creds, err := s.credentials.Resolve(ctx, project)
	if err != nil {
		return domain.ProjectStatus{}, err
	}

	state, err := s.state.LoadSession(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load session: %w", err)
	}

	switch {
	case !creds.Configured():
		status.State = domain.ConnectionNotConfigured
	case state.TwoFactorPending && !state.TwoFactorCompleted:
		status.State = domain.ConnectionAwaitingTwoFactor
		status.Message = "enter the security code sent to your trusted devices"
		status.Diagnostic = state.LastError
	case state.Authenticated:
		status.State = domain.ConnectionAuthenticated
	case state.LastError != "":
		status.State = domain.ConnectionAuthError
		status.Message = ConnectionErrorSummary
		status.Diagnostic = state.LastError
	default:
		status.State = domain.ConnectionNotAuthenticated
	}

	if status.Directory, err = s.state.LoadDirectory(ctx, id); err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load directory: %w", err)
	}

	active, err := s.state.ActiveApps(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load active apps: %w", err)
	}
	status.ActiveApps = make(map[domain.AppID]bool, len(active))
	for app := range active {
		status.ActiveApps[app] = true
	}

	records, err := s.state.SyncRecords(ctx, id)
	if err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("load sync records: %w", err)
	}
	status.SyncedBuilds = len(records)

	return status, nil
}

// Logout forgets the stored session. Settings and sync records are kept.
func (s *ConfigService) Logout(ctx context.Context, id domain.ProjectID) error {
	if _, err := s.projects.GetByID(ctx, id); err != nil {
		return fmt.Errorf("get project by id: %w", err)
	}

	state := domain.NewSessionState()
	state.UpdatedAt = s.clock.Now()
	if err := s.state.SaveSession(ctx, id, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	logger := logging.ForProject(string(id))
	logger.Info().Msg("session cleared")
	return nil
}

func (s *ConfigService) refreshDirectory(ctx context.Context, project domain.Project, conn ports.Connection) (domain.ProjectStatus, error) {
	snapshot, err := conn.Directory().Snapshot(ctx)
	if err != nil {
		return s.connectionFailed(ctx, project, conn.Session().State(), err)
	}
	if err := s.state.SaveDirectory(ctx, project.ID, snapshot); err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("save directory: %w", err)
	}

	state := conn.Session().State()
	state.LastError = ""
	if err := s.state.SaveSession(ctx, project.ID, state); err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("save session: %w", err)
	}

	return s.Status(ctx, project.ID)
}

// connectionFailed stores the failure as the session's last error and reports
// it as a status. A sign-in that got as far as a session id and scnt token is
// kept so a two-factor code can still complete it. Anything else is reset and
// the next attempt starts over.
func (s *ConfigService) connectionFailed(ctx context.Context, project domain.Project, state domain.SessionState, cause error) (domain.ProjectStatus, error) {
	logger := logging.ForProject(string(project.ID))
	logger.Warn().Err(cause).Msg("connection test failed")

	now := s.clock.Now()
	if state.SignInInProgress() {
		state.LastError = cause.Error()
		state.UpdatedAt = now
	} else {
		state = state.Discarded(cause.Error(), now)
	}
	if err := s.state.SaveSession(ctx, project.ID, state); err != nil {
		return domain.ProjectStatus{}, fmt.Errorf("save session: %w", err)
	}

	return s.Status(ctx, project.ID)
}
