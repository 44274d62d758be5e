package application

import (
	"context"
	"iter"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tomlrepo "github.com/bnema/itcsync/internal/adapters/repo/toml"
	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecurityCode = "123456"

// fakeConnector stands in for the vendor. Behavior is keyed by login email so
// one connector can serve several projects.
type fakeConnector struct {
	mu sync.Mutex

	twoFactor     map[string]bool
	loginErrs     map[string]error
	lateLoginErrs map[string]error
	directoryErrs map[string]error
	directories   map[string]domain.Directory
	builds        map[domain.AppID][]domain.Build
	buildErrs     map[domain.AppID]error
	urls          map[domain.BuildKey]string
	urlErrs       map[domain.BuildKey]error

	logins    int
	connected []domain.SessionState
	resolved  []domain.BuildKey
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		twoFactor:     map[string]bool{},
		loginErrs:     map[string]error{},
		lateLoginErrs: map[string]error{},
		directoryErrs: map[string]error{},
		directories:   map[string]domain.Directory{},
		builds:        map[domain.AppID][]domain.Build{},
		buildErrs:     map[domain.AppID]error{},
		urls:          map[domain.BuildKey]string{},
		urlErrs:       map[domain.BuildKey]error{},
	}
}

func (c *fakeConnector) Connect(state domain.SessionState) ports.Connection {
	c.mu.Lock()
	c.connected = append(c.connected, state)
	c.mu.Unlock()

	return &fakeConnection{connector: c, state: state}
}

func (c *fakeConnector) loginCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

func (c *fakeConnector) resolvedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resolved)
}

type fakeConnection struct {
	connector *fakeConnector
	state     domain.SessionState
	email     string
}

func (f *fakeConnection) Session() ports.SessionClient { return f }
func (f *fakeConnection) Directory() ports.Directory   { return f }
func (f *fakeConnection) Builds() ports.BuildDiscovery { return f }

func (f *fakeConnection) Login(_ context.Context, creds domain.Credentials) error {
	f.email = creds.Email
	if f.state.Authenticated || !creds.Configured() {
		return nil
	}

	c := f.connector
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++

	if err := c.loginErrs[creds.Email]; err != nil {
		return err
	}

	f.state = domain.NewSessionState()
	f.state.ServiceKey = "service-key"
	f.state.SessionID = "session-" + creds.Email
	f.state.SCNT = "scnt"
	f.state.UserID = creds.Email
	if c.twoFactor[creds.Email] {
		f.state.TwoFactorPending = true
	}
	// Failures after the sign-in request leave the partial session behind.
	if err := c.lateLoginErrs[creds.Email]; err != nil {
		return err
	}
	if f.state.TwoFactorPending {
		return nil
	}
	f.authenticate()
	return nil
}

func (f *fakeConnection) SubmitTwoFactor(_ context.Context, code string) error {
	if !f.state.TwoFactorPending || f.state.SessionID == "" {
		return domain.ErrInvalidState
	}
	if code != testSecurityCode {
		return domain.ErrTwoFactorRejected
	}
	f.state.TwoFactorCompleted = true
	f.authenticate()
	return nil
}

func (f *fakeConnection) authenticate() {
	f.state.Authenticated = true
	f.state.Cookies = map[string]string{"myacinfo": "cookie"}
}

func (f *fakeConnection) SelectTeam(_ context.Context, team domain.TeamID) error {
	f.state.CurrentTeamID = team
	return nil
}

func (f *fakeConnection) State() domain.SessionState { return f.state }

func (f *fakeConnection) Logout() { f.state = domain.NewSessionState() }

func (f *fakeConnection) Teams(ctx context.Context) ([]domain.Team, error) {
	snapshot, err := f.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Teams, nil
}

func (f *fakeConnection) Apps(ctx context.Context) iter.Seq2[domain.TeamApp, error] {
	return func(yield func(domain.TeamApp, error) bool) {
		snapshot, err := f.Snapshot(ctx)
		if err != nil {
			yield(domain.TeamApp{}, err)
			return
		}
		for app := range snapshot.Apps() {
			if !yield(app, nil) {
				return
			}
		}
	}
}

func (f *fakeConnection) Snapshot(context.Context) (domain.Directory, error) {
	c := f.connector
	c.mu.Lock()
	defer c.mu.Unlock()

	account := f.email
	if account == "" {
		account = f.state.UserID
	}
	if err := c.directoryErrs[account]; err != nil {
		return domain.Directory{}, err
	}
	return c.directories[account], nil
}

func (f *fakeConnection) AppBuilds(_ context.Context, app domain.App, _ domain.TeamID) iter.Seq2[domain.Build, error] {
	c := f.connector
	c.mu.Lock()
	builds := c.builds[app.ID]
	err := c.buildErrs[app.ID]
	c.mu.Unlock()

	return func(yield func(domain.Build, error) bool) {
		if err != nil {
			yield(domain.Build{}, err)
			return
		}
		for _, build := range builds {
			if !yield(build, nil) {
				return
			}
		}
	}
}

func (f *fakeConnection) ResolveArtifactURL(_ context.Context, build domain.Build) (string, error) {
	c := f.connector
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolved = append(c.resolved, build.Key())
	if err := c.urlErrs[build.Key()]; err != nil {
		return "", err
	}
	url, ok := c.urls[build.Key()]
	if !ok {
		return "", domain.ErrArtifactUnavailable
	}
	return url, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu     sync.Mutex
	runs   []string
	builds map[string]int
}

func (o *recordingObserver) ObserveRun(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, result)
}

func (o *recordingObserver) ObserveBuild(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.builds == nil {
		o.builds = map[string]int{}
	}
	o.builds[outcome]++
}

type testEnv struct {
	projects  *tomlrepo.ProjectRepository
	state     *tomlrepo.StateRepository
	secrets   *memorySecrets
	connector *fakeConnector
	clock     *fixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := viper.New()
	cfg.Set(config.KeyProjectsPath, filepath.Join(dir, "projects.toml"))
	cfg.Set(config.KeyStatePath, filepath.Join(dir, "state.toml"))

	projects, err := tomlrepo.NewProjectRepository(cfg)
	require.NoError(t, err)
	state, err := tomlrepo.NewStateRepository(cfg)
	require.NoError(t, err)

	return &testEnv{
		projects:  projects,
		state:     state,
		secrets:   &memorySecrets{values: map[string]string{}},
		connector: newFakeConnector(),
		clock:     &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
}

// addProject stores an enabled project whose password is present.
func (e *testEnv) addProject(t *testing.T, id domain.ProjectID, email string) domain.Project {
	t.Helper()

	project := domain.Project{ID: id, Name: string(id), Enabled: true, Email: email, PasswordRef: PasswordKey(id)}
	require.NoError(t, e.projects.Save(context.Background(), project))
	require.NoError(t, e.secrets.Put(context.Background(), PasswordKey(id), "hunter2"))
	return project
}

func (e *testEnv) syncService(dispatcher ports.Dispatcher, observer RunObserver) *SyncService {
	return NewSyncService(SyncDeps{
		Projects:    e.projects,
		State:       e.state,
		Credentials: NewCredentialResolver(e.secrets),
		Connector:   e.connector,
		Dispatcher:  dispatcher,
		Clock:       e.clock,
		Observer:    observer,
	}, SyncConfig{})
}

func (e *testEnv) configService() *ConfigService {
	return NewConfigService(e.projects, e.state, e.secrets, e.connector, e.clock)
}

type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memorySecrets) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (m *memorySecrets) Put(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func testApp(id string, platforms ...string) domain.App {
	return domain.App{ID: domain.AppID(id), BundleID: "com.example." + id, Name: "App " + id, Platforms: platforms}
}

func testBuild(app string, version string, build string) domain.Build {
	return domain.Build{AppID: domain.AppID(app), TeamID: "111", Platform: "ios", Version: version, BuildID: build}
}

func mockAnyContext() interface{} {
	return mock.Anything
}
