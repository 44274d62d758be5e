package itunesconnect

import (
	"fmt"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// Connector hands out per-run clients that share one rate limiter and one
// circuit breaker.
type Connector struct {
	cfg   Config
	guard *guard
}

var _ ports.Connector = (*Connector)(nil)

func NewConnector(cfg Config) (*Connector, error) {
	cfg = cfg.withDefaults()
	if _, err := cfg.endpoints(); err != nil {
		return nil, fmt.Errorf("itunes connect config: %w", err)
	}

	return &Connector{cfg: cfg, guard: newGuard(cfg)}, nil
}

func (c *Connector) Connect(state domain.SessionState) ports.Connection {
	// Endpoints were validated in NewConnector.
	client, _ := newClient(c.cfg, c.guard, state)
	return client
}

// BreakerState reports the shared circuit breaker state ("closed",
// "half-open" or "open").
func (c *Connector) BreakerState() string {
	return c.guard.breaker.State().String()
}
