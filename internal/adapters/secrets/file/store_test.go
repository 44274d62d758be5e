package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passwordKey = "itcsync/projects/ios-app/password"

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "secret key is empty"},
		{name: "whitespace", key: "   ", wantErr: "secret key is empty"},
		{name: "absolute", key: "/absolute/path", wantErr: "invalid secret key"},
		{name: "traversal", key: "../escape", wantErr: "invalid secret key"},
		{name: "deep traversal", key: "itcsync/../../secret", wantErr: "invalid secret key"},
		{name: "hidden", key: "itcsync/.secret-1.tmp", wantErr: "hidden names are reserved"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Put(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Put(context.Background(), passwordKey, "hunter2"))

	got, err := store.Get(context.Background(), passwordKey)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	info, err := os.Stat(filepath.Join(root, passwordKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMod), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Join(root, "itcsync", "projects", "ios-app"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(dirMode), dirInfo.Mode().Perm())
}

func TestStorePutReplacesWithoutLeavingTempFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Put(context.Background(), passwordKey, "first"))
	require.NoError(t, store.Put(context.Background(), passwordKey, "second"))

	got, err := store.Get(context.Background(), passwordKey)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	entries, err := os.ReadDir(filepath.Join(root, "itcsync", "projects", "ios-app"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "password", entries[0].Name())
}

func TestStoreDeletePrunesEmptyProjectDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Put(context.Background(), passwordKey, "hunter2"))
	require.NoError(t, store.Put(context.Background(), "itcsync/projects/mac-app/password", "other"))

	require.NoError(t, store.Delete(context.Background(), passwordKey))

	_, err := os.Stat(filepath.Join(root, "itcsync", "projects", "ios-app"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "itcsync", "projects", "mac-app", "password"))
	assert.NoError(t, err, "sibling projects are untouched")
	_, err = os.Stat(root)
	assert.NoError(t, err, "the root itself is kept")
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	require.NoError(t, store.Delete(context.Background(), passwordKey))
	require.NoError(t, store.Delete(context.Background(), passwordKey))
}

func TestStoreGetMissingSecretReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "itcsync/projects/missing/password")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "itcsync", "projects", "ios-app"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, passwordKey), []byte("hunter2\n"), 0o600))

	got, err := store.Get(context.Background(), passwordKey)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}
