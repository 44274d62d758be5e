// Package pass keeps secrets in the standard unix password manager.
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// ErrUnavailable means pass cannot be used at all: the binary is missing or
// the password store was never initialized.
var ErrUnavailable = errors.New("pass command unavailable")

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

type Store struct {
	run runFunc
}

var _ ports.SecretStore = (*Store)(nil)

type Option func(*options)

type options struct {
	binary   string
	storeDir string
}

// WithStoreDir points pass at a password store other than ~/.password-store.
func WithStoreDir(dir string) Option {
	return func(o *options) { o.storeDir = dir }
}

// WithBinary overrides the pass executable looked up on PATH.
func WithBinary(name string) Option {
	return func(o *options) { o.binary = name }
}

func NewStore(opts ...Option) *Store {
	o := options{binary: "pass"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{run: commandRunner(o)}
}

// Put inserts value as a single-line entry, replacing any previous one.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("pass put %q: value must be a single line", key)
	}

	_, stderr, err := s.run(ctx, value+"\n", "insert", "--multiline", "--force", key)
	if err != nil {
		return formatError("put", key, err, stderr)
	}
	return nil
}

// Get returns the first line of the entry. Following lines are free-form
// notes by pass convention.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stdout, stderr, err := s.run(ctx, "", "show", key)
	if err != nil {
		return "", formatError("get", key, err, stderr)
	}

	first, _, _ := strings.Cut(stdout, "\n")
	return strings.TrimSuffix(first, "\r"), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, "", "rm", "--force", key)
	if err != nil {
		return formatError("delete", key, err, stderr)
	}
	return nil
}

func commandRunner(o options) runFunc {
	return func(ctx context.Context, input string, args ...string) (string, string, error) {
		path, err := exec.LookPath(o.binary)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return "", "", ErrUnavailable
			}
			return "", "", fmt.Errorf("locate %s: %w", o.binary, err)
		}

		cmd := exec.CommandContext(ctx, path, args...)
		if o.storeDir != "" {
			cmd.Env = append(os.Environ(), "PASSWORD_STORE_DIR="+o.storeDir)
		}
		if input != "" {
			cmd.Stdin = strings.NewReader(input)
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err = cmd.Run()
		return stdout.String(), strings.TrimSpace(stderr.String()), err
	}
}

func formatError(op string, key string, err error, stderr string) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return fmt.Errorf("pass %s %q: %w", op, key, err)
	case strings.Contains(stderr, "is not in the password store"):
		return fmt.Errorf("pass %s %q: %w", op, key, domain.ErrSecretNotFound)
	case strings.Contains(stderr, "pass init"):
		return fmt.Errorf("pass %s %q: %w: store not initialized", op, key, ErrUnavailable)
	case stderr == "":
		return fmt.Errorf("pass %s %q: %w", op, key, err)
	default:
		return fmt.Errorf("pass %s %q: %w: %s", op, key, err, stderr)
	}
}
