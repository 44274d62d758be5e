package itunesconnect

import (
	"fmt"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// Client is one iTunes Connect web session. It is owned by a single sync run
// or CLI command and is not safe for concurrent use.
type Client struct {
	cfg   Config
	urls  endpoints
	guard *guard
	http  *http.Client
	jar   *cookiejar.Jar
	state domain.SessionState

	// teamApps caches the app summary of the current team. It is dropped on
	// every team switch.
	teamApps []domain.App
	detail   *userDetail
}

var (
	_ ports.SessionClient = (*Client)(nil)
	_ ports.Connection    = (*Client)(nil)
)

// NewClient builds a client restored from state. A zero state starts a fresh
// session.
func NewClient(cfg Config, state domain.SessionState) (*Client, error) {
	cfg = cfg.withDefaults()
	return newClient(cfg, newGuard(cfg), state)
}

func newClient(cfg Config, shared *guard, state domain.SessionState) (*Client, error) {
	urls, err := cfg.endpoints()
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, urls: urls, guard: shared}
	c.Restore(state)
	return c, nil
}

func (c *Client) Session() ports.SessionClient { return c }

func (c *Client) Directory() ports.Directory { return &Directory{client: c} }

func (c *Client) Builds() ports.BuildDiscovery { return &BuildDiscovery{client: c} }

// State serializes the session, including the cookies held for every vendor
// host.
func (c *Client) State() domain.SessionState {
	state := c.state
	state.Cookies = c.cookies()
	return state
}

// Restore replaces the session with state. Snapshots that are malformed or
// carry another version reset the client to an empty session.
func (c *Client) Restore(state domain.SessionState) {
	normalized := state.Normalize()
	c.resetJar()
	c.setCookies(normalized.Cookies)
	normalized.Cookies = nil
	c.state = normalized
	c.teamApps = nil
	c.detail = nil
}

func (c *Client) Logout() {
	c.Restore(domain.NewSessionState())
}

func (c *Client) resetJar() {
	// cookiejar.New only fails on a broken PublicSuffixList option.
	jar, _ := cookiejar.New(nil)
	c.jar = jar
	c.http = &http.Client{Jar: jar, Transport: c.cfg.Transport}
}

func (c *Client) hosts() []*url.URL {
	return []*url.URL{c.urls.base, c.urls.api, c.urls.auth}
}

func (c *Client) cookies() map[string]string {
	out := map[string]string{}
	for _, host := range c.hosts() {
		for _, cookie := range c.jar.Cookies(host) {
			out[cookie.Name] = cookie.Value
		}
	}
	return out
}

func (c *Client) setCookies(values map[string]string) {
	if len(values) == 0 {
		return
	}

	for _, host := range []*url.URL{c.urls.base, c.urls.auth} {
		cookies := make([]*http.Cookie, 0, len(values))
		for _, name := range sortedKeys(values) {
			cookies = append(cookies, &http.Cookie{Name: name, Value: values[name], Path: "/"})
		}
		c.jar.SetCookies(host, cookies)
	}
}

func sortedKeys(values map[string]string) []string {
	return slices.Sorted(maps.Keys(values))
}

func (c *Client) touch() {
	c.state.UpdatedAt = c.cfg.Now()
}

func (c *Client) requireAuthenticated(op string) error {
	if !c.state.Authenticated {
		return fmt.Errorf("%s: not authenticated: %w", op, domain.ErrInvalidState)
	}
	return nil
}
