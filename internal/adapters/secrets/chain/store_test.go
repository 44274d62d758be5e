package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	passstore "github.com/bnema/itcsync/internal/adapters/secrets/pass"
	"github.com/bnema/itcsync/internal/domain"
	portmocks "github.com/bnema/itcsync/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const passwordKey = "itcsync/projects/ios-app/password"

func newChain(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	preferred := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(Backend{Name: "pass", Store: preferred}, Backend{Name: "file", Store: fallback})
	require.NoError(t, err)
	return store, preferred, fallback
}

func TestNewStoreRejectsMissingBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore(Backend{Name: "pass"}, Backend{Name: "file", Store: portmocks.NewMockSecretStore(t)})
	require.ErrorContains(t, err, "preferred secret backend is nil")

	_, err = NewStore(Backend{Name: "pass", Store: portmocks.NewMockSecretStore(t)}, Backend{Name: "file"})
	require.ErrorContains(t, err, "fallback secret backend is nil")
}

func TestStoreGetUsesPreferredWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, preferred, _ := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), passwordKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPassIsMissing(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, passwordKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), passwordKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReportsNotFoundWhenNoBackendHasTheKey(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", fmt.Errorf("pass get: %w", domain.ErrSecretNotFound)).Once()
	fallback.EXPECT().Get(mock.Anything, passwordKey).Return("", fmt.Errorf("file get: %w", domain.ErrSecretNotFound)).Once()

	_, err := store.Get(context.Background(), passwordKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetSurfacesPreferredFailureWhenFallbackIsEmpty(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	gpgErr := errors.New("gpg: decryption failed: No secret key")
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", gpgErr).Once()
	fallback.EXPECT().Get(mock.Anything, passwordKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), passwordKey)
	require.ErrorIs(t, err, gpgErr)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "from pass")
}

func TestStoreGetCombinesBothFailures(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, passwordKey).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), passwordKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass: pass failed")
	assert.ErrorContains(t, err, "file: file failed")
}

func TestStoreGetDoesNotFallbackOnCanceledContext(t *testing.T) {
	t.Parallel()

	store, preferred, _ := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), passwordKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePutRemovesStaleFallbackCopy(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, passwordKey).Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), passwordKey, "hunter2"))
}

func TestStorePutIgnoresCleanupFailure(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, passwordKey).Return(errors.New("read-only file system")).Once()

	require.NoError(t, store.Put(context.Background(), passwordKey, "hunter2"))
}

func TestStorePutFallsBackWhenPassIsMissing(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), passwordKey, "hunter2"))
}

func TestStorePutReportsBothFailures(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	passErr := errors.New("pass failed")
	fileErr := errors.New("disk full")
	preferred.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(passErr).Once()
	fallback.EXPECT().Put(mock.Anything, passwordKey, "hunter2").Return(fileErr).Once()

	err := store.Put(context.Background(), passwordKey, "hunter2")
	require.ErrorIs(t, err, passErr)
	require.ErrorIs(t, err, fileErr)
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Delete(mock.Anything, passwordKey).Return(fmt.Errorf("pass delete: %w", domain.ErrSecretNotFound)).Once()
	fallback.EXPECT().Delete(mock.Anything, passwordKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), passwordKey))
}

func TestStoreDeleteToleratesMissingPass(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Delete(mock.Anything, passwordKey).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Delete(mock.Anything, passwordKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), passwordKey))
}

func TestStoreDeleteReportsBackendFailure(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Delete(mock.Anything, passwordKey).Return(errors.New("gpg agent unavailable")).Once()
	fallback.EXPECT().Delete(mock.Anything, passwordKey).Return(nil).Once()

	err := store.Delete(context.Background(), passwordKey)
	require.ErrorContains(t, err, "delete secret \"itcsync/projects/ios-app/password\" from pass: gpg agent unavailable")
}

func TestStoreGetWithoutPassAndWithoutFileIsNotFound(t *testing.T) {
	t.Parallel()

	store, preferred, fallback := newChain(t)
	preferred.EXPECT().Get(mock.Anything, passwordKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, passwordKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), passwordKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}
