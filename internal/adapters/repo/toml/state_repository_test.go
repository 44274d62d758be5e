package toml

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateRepo(t *testing.T, path string) *StateRepository {
	t.Helper()

	cfg := viper.New()
	cfg.Set(config.KeyStatePath, path)

	repo, err := NewStateRepository(cfg)
	require.NoError(t, err)
	return repo
}

func TestStateRepositorySessionRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newStateRepo(t, filepath.Join(t.TempDir(), "state.toml"))
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.SessionState{
		Version:            domain.SessionStateVersion,
		ServiceKey:         "svc-key",
		SessionID:          "sess-1",
		SCNT:               "scnt-1",
		CurrentTeamID:      "team-1",
		UserID:             "user-1",
		Authenticated:      true,
		TwoFactorPending:   true,
		TwoFactorCompleted: true,
		Cookies:            map[string]string{"myacinfo": "abc", "itctx": "def"},
		UpdatedAt:          now,
	}

	require.NoError(t, repo.SaveSession(context.Background(), "ios-app", state))

	got, err := repo.LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	other, err := repo.LoadSession(context.Background(), "tv-app")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
	assert.Equal(t, domain.SessionStateVersion, other.Version)
}

func TestStateRepositoryOlderSessionVersionLoadsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 1",
		"",
		"[[projects]]",
		"id = \"ios-app\"",
		"",
		"[projects.session]",
		"version = 0",
		"session_id = \"legacy\"",
		"scnt = \"legacy\"",
		"authenticated = true",
		"two_factor_pending = false",
		"two_factor_completed = false",
		"last_error = \"previous failure\"",
		"",
		"[projects.session.cookies]",
		"myacinfo = \"old\"",
		"",
	}, "\n")), 0o600))

	got, err := newStateRepo(t, path).LoadSession(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.False(t, got.Authenticated)
	assert.Equal(t, "previous failure", got.LastError)
}

func TestStateRepositoryRecordSyncedIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newStateRepo(t, filepath.Join(t.TempDir(), "state.toml"))
	record := domain.SyncRecord{
		Key:          domain.BuildKey{AppID: "123", Platform: "ios", Version: "1.0", BuildID: "42"},
		Downloaded:   true,
		ArtifactRefs: []string{"ab/abcdef"},
		SyncedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	inserted, err := repo.RecordSynced(context.Background(), "ios-app", record)
	require.NoError(t, err)
	assert.True(t, inserted)

	duplicate := record
	duplicate.Downloaded = false
	inserted, err = repo.RecordSynced(context.Background(), "ios-app", duplicate)
	require.NoError(t, err)
	assert.False(t, inserted)

	records, err := repo.SyncRecords(context.Background(), "ios-app")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[record.Key])
}

func TestStateRepositoryConcurrentRecordSyncedInsertsOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.toml")
	repos := []*StateRepository{newStateRepo(t, path), newStateRepo(t, path)}
	key := domain.BuildKey{AppID: "123", Platform: "ios", Version: "1.0", BuildID: "42"}

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(repo *StateRepository) {
			defer wg.Done()
			ok, err := repo.RecordSynced(context.Background(), "ios-app", domain.SyncRecord{Key: key})
			assert.NoError(t, err)
			if ok {
				inserted.Add(1)
			}
		}(repos[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())

	records, err := repos[0].SyncRecords(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStateRepositoryRecordsAreScopedPerProject(t *testing.T) {
	t.Parallel()

	repo := newStateRepo(t, filepath.Join(t.TempDir(), "state.toml"))
	key := domain.BuildKey{AppID: "123", Platform: "ios", Version: "1.0", BuildID: "42"}

	for _, project := range []domain.ProjectID{"ios-app", "tv-app"} {
		inserted, err := repo.RecordSynced(context.Background(), project, domain.SyncRecord{Key: key})
		require.NoError(t, err)
		assert.True(t, inserted, project)
	}
}

func TestStateRepositoryToggleActiveApp(t *testing.T) {
	t.Parallel()

	repo := newStateRepo(t, filepath.Join(t.TempDir(), "state.toml"))

	active, err := repo.ToggleActiveApp(context.Background(), "ios-app", "123")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = repo.ToggleActiveApp(context.Background(), "ios-app", "456")
	require.NoError(t, err)
	assert.True(t, active)

	apps, err := repo.ActiveApps(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, map[domain.AppID]struct{}{"123": {}, "456": {}}, apps)

	active, err = repo.ToggleActiveApp(context.Background(), "ios-app", "123")
	require.NoError(t, err)
	assert.False(t, active)

	apps, err = repo.ActiveApps(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Equal(t, map[domain.AppID]struct{}{"456": {}}, apps)
}

func TestStateRepositoryDirectoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newStateRepo(t, filepath.Join(t.TempDir(), "state.toml"))

	missing, err := repo.LoadDirectory(context.Background(), "ios-app")
	require.NoError(t, err)
	assert.Nil(t, missing)

	directory := domain.Directory{
		UserID:      "user-1",
		Email:       "dev@example.com",
		DisplayName: "Dev",
		FetchedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Teams: []domain.Team{
			{
				ID:    "team-1",
				Name:  "Team One",
				Roles: []string{"ADMIN"},
				Apps: []domain.App{
					{ID: "123", BundleID: "com.example.app", Name: "App", Platforms: []string{"appletvos", "ios"}},
				},
			},
		},
	}

	require.NoError(t, repo.SaveDirectory(context.Background(), "ios-app", directory))

	got, err := repo.LoadDirectory(context.Background(), "ios-app")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, directory, *got)
}

func TestStateRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("projects = ["), 0o600))

	_, err := newStateRepo(t, path).SyncRecords(context.Background(), "ios-app")
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode state file")
}

func TestStateRepositoryManyProjectsSurviveConcurrentWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.toml")
	repo := newStateRepo(t, path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			project := domain.ProjectID("p-" + strconv.Itoa(i))
			assert.NoError(t, repo.SaveSession(context.Background(), project, domain.NewSessionState()))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(string(data), "[[projects]]"))
}
