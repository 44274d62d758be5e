// Package daemon runs the long-lived itcsync process: a supervised tree with
// the sync scheduler, the download worker pool and the status HTTP server.
package daemon

import (
	"context"
	"time"

	"github.com/bnema/itcsync/internal/logging"
	"github.com/thejerf/suture/v4"
)

type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	// Default: 30
	FailureDecay float64
	// FailureBackoff is the pause once the threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service gets to stop.
	// Default: 10s
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is split into a work layer (scheduler, workers) and an api layer so a
// crashing HTTP server never restarts in-flight downloads.
type Tree struct {
	root *suture.Supervisor
	work *suture.Supervisor
	api  *suture.Supervisor
}

func NewTree(cfg TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = defaults.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = defaults.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = logEvent

	tree := &Tree{
		root: suture.New("itcsync", rootSpec),
		work: suture.New("work-layer", childSpec),
		api:  suture.New("api-layer", childSpec),
	}
	tree.root.Add(tree.work)
	tree.root.Add(tree.api)

	return tree
}

func (t *Tree) AddWorkService(svc suture.Service) suture.ServiceToken {
	return t.work.Add(svc)
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func logEvent(event suture.Event) {
	logging.Warn().Fields(event.Map()).Msg(event.String())
}
