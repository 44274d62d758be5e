// Package chain stores Apple ID passwords in pass when it is installed and in
// plain files otherwise.
package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/itcsync/internal/adapters/secrets/file"
	passstore "github.com/bnema/itcsync/internal/adapters/secrets/pass"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/ports"
)

// Backend is one named link of the chain.
type Backend struct {
	Name  string
	Store ports.SecretStore
}

// Store writes to the preferred backend and falls back to the second one
// when the preferred backend fails. Reads check both, so a password saved
// while pass was unavailable is still found once pass comes back.
type Store struct {
	preferred Backend
	fallback  Backend
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(preferred, fallback Backend) (*Store, error) {
	if preferred.Store == nil {
		return nil, errors.New("preferred secret backend is nil")
	}
	if fallback.Store == nil {
		return nil, errors.New("fallback secret backend is nil")
	}

	return &Store{preferred: preferred, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(fileRoot string, passOpts ...passstore.Option) (*Store, error) {
	return NewStore(
		Backend{Name: "pass", Store: passstore.NewStore(passOpts...)},
		Backend{Name: "file", Store: filestore.NewStore(fileRoot)},
	)
}

// Put stores value in the preferred backend and drops any older copy from
// the fallback so only one backend holds the password.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.preferred.Store.Put(ctx, key, value)
	if err == nil {
		if cleanupErr := s.fallback.Store.Delete(ctx, key); cleanupErr != nil {
			logging.Debug().Err(cleanupErr).Str("backend", s.fallback.Name).Str("key", key).Msg("remove stale secret copy")
		}
		return nil
	}
	if isContextError(err) {
		return err
	}

	logging.Debug().Err(err).Str("backend", s.preferred.Name).Str("key", key).Msgf("store secret, falling back to %s", s.fallback.Name)
	if fallbackErr := s.fallback.Store.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("store secret %q: %s: %w; %s: %w", key, s.preferred.Name, err, s.fallback.Name, fallbackErr)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.preferred.Store.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if isContextError(err) {
		return "", err
	}

	value, fallbackErr := s.fallback.Store.Get(ctx, key)
	switch {
	case fallbackErr == nil:
		return value, nil
	case isMissing(err) && errors.Is(fallbackErr, domain.ErrSecretNotFound):
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrSecretNotFound)
	case errors.Is(fallbackErr, domain.ErrSecretNotFound):
		// Only the preferred backend knows; surface why it could not answer.
		return "", fmt.Errorf("load secret %q from %s: %w", key, s.preferred.Name, err)
	default:
		return "", fmt.Errorf("load secret %q: %s: %w; %s: %w", key, s.preferred.Name, err, s.fallback.Name, fallbackErr)
	}
}

// Delete removes key from both backends. Missing entries and a missing pass
// binary are not errors.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range []Backend{s.preferred, s.fallback} {
		err := backend.Store.Delete(ctx, key)
		switch {
		case err == nil, isMissing(err):
			continue
		case isContextError(err):
			return err
		}
		errs = append(errs, fmt.Errorf("delete secret %q from %s: %w", key, backend.Name, err))
	}

	return errors.Join(errs...)
}

func isMissing(err error) bool {
	return errors.Is(err, domain.ErrSecretNotFound) || errors.Is(err, passstore.ErrUnavailable)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
