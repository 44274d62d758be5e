package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProjects struct {
	saveErr error
}

func (f failingProjects) GetByID(context.Context, domain.ProjectID) (domain.Project, error) {
	return domain.Project{}, domain.ErrProjectNotFound
}

func (f failingProjects) List(context.Context) ([]domain.Project, error) {
	return nil, nil
}

func (f failingProjects) Save(context.Context, domain.Project) error {
	return f.saveErr
}

func TestConfigServiceAddProjectStoresPassword(t *testing.T) {
	env := newTestEnv(t)
	service := env.configService()

	project, err := service.AddProject(context.Background(), AddProjectCommand{
		ID:       "ios-app",
		Email:    " dev@example.com ",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Project{
		ID:          "ios-app",
		Name:        "ios-app",
		Enabled:     true,
		Email:       "dev@example.com",
		PasswordRef: "itcsync/projects/ios-app/password",
	}, project)

	password, err := env.secrets.Get(context.Background(), project.PasswordRef)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	updated, err := service.AddProject(context.Background(), AddProjectCommand{ID: "ios-app", Name: "iOS", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Equal(t, project.PasswordRef, updated.PasswordRef, "an update without password keeps the stored one")

	projects, err := service.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "iOS", projects[0].Name)
}

func TestConfigServiceAddProjectRejectsInvalidProject(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.configService().AddProject(context.Background(), AddProjectCommand{ID: "ios/app", Email: "dev@example.com", Password: "x"})
	require.ErrorContains(t, err, "must not contain path separators")
	assert.Empty(t, env.secrets.values)
}

func TestConfigServiceAddProjectRollsBackPasswordOnSaveFailure(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	saveErr := errors.New("disk full")
	service := NewConfigService(failingProjects{saveErr: saveErr}, nil, secrets, newFakeConnector(), nil)

	secrets.EXPECT().Put(mockAnyContext(), "itcsync/projects/ios-app/password", "hunter2").Return(nil).Once()
	secrets.EXPECT().Delete(mockAnyContext(), "itcsync/projects/ios-app/password").Return(nil).Once()

	_, err := service.AddProject(context.Background(), AddProjectCommand{ID: "ios-app", Email: "dev@example.com", Password: "hunter2"})
	require.ErrorIs(t, err, saveErr)
}

func TestConfigServiceAddProjectJoinsRollbackFailure(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	saveErr := errors.New("disk full")
	deleteErr := errors.New("pass locked")
	service := NewConfigService(failingProjects{saveErr: saveErr}, nil, secrets, newFakeConnector(), nil)

	secrets.EXPECT().Put(mockAnyContext(), "itcsync/projects/ios-app/password", "hunter2").Return(nil).Once()
	secrets.EXPECT().Delete(mockAnyContext(), "itcsync/projects/ios-app/password").Return(deleteErr).Once()

	_, err := service.AddProject(context.Background(), AddProjectCommand{ID: "ios-app", Email: "dev@example.com", Password: "hunter2"})
	require.ErrorIs(t, err, saveErr)
	require.ErrorIs(t, err, deleteErr)
}

func TestConfigServiceTestConfigurationConnects(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	env.connector.directories["dev@example.com"] = domain.Directory{
		UserID: "9001",
		Teams: []domain.Team{
			{ID: "111", Apps: []domain.App{testApp("A", "ios")}},
			{ID: "222", Apps: []domain.App{testApp("A", "ios"), testApp("B", "ios")}},
		},
	}

	status, err := env.configService().TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionAuthenticated, status.State)
	assert.Equal(t, "connected with 2 teams / 2 apps", status.Summary())

	session, err := env.state.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.True(t, session.Authenticated)
}

func TestConfigServiceTestConfigurationReportsConnectionError(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	env.connector.loginErrs["dev@example.com"] = domain.ErrServiceKeyNotFound

	status, err := env.configService().TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionAuthError, status.State)
	assert.Equal(t, ConnectionErrorSummary, status.Summary())
	assert.Equal(t, "service key not found", status.Diagnostic)

	session, err := env.state.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.True(t, session.IsEmpty())
	assert.Equal(t, "service key not found", session.LastError)
}

func TestConfigServiceTestConfigurationKeepsPendingSignInOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	env.connector.twoFactor["dev@example.com"] = true
	env.connector.lateLoginErrs["dev@example.com"] = fmt.Errorf("login: fetch session cookies: status 403: %w", domain.ErrAuthenticationFailed)
	env.connector.directories["dev@example.com"] = singleTeamDirectory(testApp("A", "ios"))
	service := env.configService()

	status, err := service.TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAwaitingTwoFactor, status.State)
	assert.Contains(t, status.Diagnostic, "status 403")

	session, err := env.state.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.True(t, session.TwoFactorPending)
	assert.Equal(t, "session-dev@example.com", session.SessionID)
	assert.Equal(t, "scnt", session.SCNT)
	assert.Contains(t, session.LastError, "authentication failed")

	status, err = service.SubmitTwoFactor(context.Background(), "ios-app", testSecurityCode)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAuthenticated, status.State)
	assert.Empty(t, status.Diagnostic)
	assert.Equal(t, 1, env.connector.loginCount(), "the code completes the stored sign-in")
}

func TestConfigServiceTestConfigurationWithoutPassword(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.projects.Save(context.Background(), domain.Project{ID: "ios-app", Enabled: true, Email: "dev@example.com"}))

	status, err := env.configService().TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionNotConfigured, status.State)
	assert.Empty(t, env.connector.connected)
}

func TestConfigServiceTwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	env.connector.twoFactor["dev@example.com"] = true
	env.connector.directories["dev@example.com"] = singleTeamDirectory(testApp("A", "ios"))
	service := env.configService()

	status, err := service.TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAwaitingTwoFactor, status.State)

	_, err = service.SubmitTwoFactor(context.Background(), "ios-app", "000000")
	require.ErrorIs(t, err, domain.ErrTwoFactorRejected)
	assert.Equal(t, domain.ErrTwoFactorRejected.Error(), err.Error())

	rejected, err := env.state.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ErrTwoFactorRejected.Error(), rejected.LastError)
	assert.True(t, rejected.TwoFactorPending)

	status, err = service.Status(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAwaitingTwoFactor, status.State, "a rejected code keeps the pending login")
	assert.Equal(t, domain.ErrTwoFactorRejected.Error(), status.Diagnostic)

	status, err = service.SubmitTwoFactor(context.Background(), "ios-app", testSecurityCode)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAuthenticated, status.State)
	require.NotNil(t, status.Directory)
	assert.Equal(t, 1, status.Directory.AppCount())

	session, err := env.state.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.True(t, session.TwoFactorCompleted)
	assert.Empty(t, session.LastError)
}

func TestConfigServiceSubmitTwoFactorWithoutPendingLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")

	_, err := env.configService().SubmitTwoFactor(context.Background(), "ios-app", testSecurityCode)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConfigServiceToggleApp(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	service := env.configService()

	active, err := service.ToggleApp(context.Background(), "ios-app", "A")
	require.NoError(t, err)
	assert.True(t, active)

	status, err := service.Status(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, map[domain.AppID]bool{"A": true}, status.ActiveApps)

	active, err = service.ToggleApp(context.Background(), "ios-app", "A")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = service.ToggleApp(context.Background(), "missing", "A")
	require.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestConfigServiceStatusCountsSyncedBuilds(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	for _, build := range []domain.Build{testBuild("A", "1.0", "1"), testBuild("A", "1.0", "2")} {
		_, err := env.state.RecordSynced(context.Background(), "ios-app", domain.SyncRecord{Key: build.Key()})
		require.NoError(t, err)
	}

	status, err := env.configService().Status(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionNotAuthenticated, status.State)
	assert.Equal(t, 2, status.SyncedBuilds)
	assert.Nil(t, status.Directory)
}

func TestConfigServiceLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	env.addProject(t, "ios-app", "dev@example.com")
	env.connector.directories["dev@example.com"] = singleTeamDirectory(testApp("A", "ios"))
	service := env.configService()

	_, err := service.TestConfiguration(context.Background(), "ios-app")
	require.NoError(t, err)

	require.NoError(t, service.Logout(context.Background(), "ios-app"))

	status, err := service.Status(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionNotAuthenticated, status.State)
	require.NotNil(t, status.Directory, "logout keeps the last directory snapshot")
}

func TestCredentialResolverTreatsMissingSecretAsNotConfigured(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mockAnyContext(), "itcsync/projects/ios-app/password").Return("", domain.ErrSecretNotFound).Once()

	creds, err := NewCredentialResolver(secrets).Resolve(context.Background(), domain.Project{
		ID: "ios-app", Email: "dev@example.com", PasswordRef: PasswordKey("ios-app"),
	})
	require.NoError(t, err)
	assert.False(t, creds.Configured())
	assert.Equal(t, "dev@example.com", creds.Email)
}

func TestCredentialResolverPropagatesStoreFailure(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mockAnyContext(), "itcsync/projects/ios-app/password").Return("", errors.New("gpg agent unavailable")).Once()

	_, err := NewCredentialResolver(secrets).Resolve(context.Background(), domain.Project{
		ID: "ios-app", Email: "dev@example.com", PasswordRef: PasswordKey("ios-app"),
	})
	require.ErrorContains(t, err, "gpg agent unavailable")
}
