// Package itunesconnect talks to the iTunes Connect web endpoints: Apple ID
// sign-in, team switching, app listing and build history.
package itunesconnect

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://itunesconnect.apple.com/"
	DefaultAuthURL = "https://idmsa.apple.com/"

	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 8 << 20
)

const (
	loginScriptPath  = "itc/static-resources/controllers/login_cntrl.js"
	apiPrefix        = "WebObjects/iTunesConnect.woa/"
	cookieStepPath   = apiPrefix + "wa"
	userDetailPath   = apiPrefix + "ra/user/detail"
	webSessionPath   = apiPrefix + "ra/v1/session/webSession"
	appsSummaryPath  = apiPrefix + "ra/apps/manageyourapps/summary/v2"
	signInPath       = "appleauth/auth/signin"
	securityCodePath = "appleauth/auth/verify/trusteddevice/securitycode"
	trustPath        = "appleauth/auth/2sv/trust"
	sessionIDHeader  = "X-Apple-ID-Session-Id"
	scntHeader       = "scnt"
	widgetKeyHeader  = "X-Apple-Widget-Key"
	trustEligibleHdr = "X-Apple-TwoSV-Trust-Eligible"
	requestedWithHdr = "X-Requested-With"
	requestedWithXHR = "XMLHttpRequest"
	contentTypeJSON  = "application/json"
)

// Observer receives one call per vendor request. status is zero when no
// response arrived.
type Observer interface {
	ObserveVendorRequest(op string, status int, elapsed time.Duration)
}

type Config struct {
	BaseURL           string
	AuthURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int

	// Transport overrides the HTTP round tripper, mostly for tests.
	Transport http.RoundTripper
	Now       func() time.Time
	Observer  Observer
}

type endpoints struct {
	base *url.URL
	api  *url.URL
	auth *url.URL
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) endpoints() (endpoints, error) {
	base, err := parseBaseURL(c.BaseURL)
	if err != nil {
		return endpoints{}, fmt.Errorf("base url: %w", err)
	}
	auth, err := parseBaseURL(c.AuthURL)
	if err != nil {
		return endpoints{}, fmt.Errorf("auth url: %w", err)
	}

	return endpoints{base: base, api: base.JoinPath(apiPrefix), auth: auth}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("host is required")
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed, nil
}

// resolve joins a relative path (which may carry a query) onto base.
func resolve(base *url.URL, path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return base.String() + path
	}
	return base.ResolveReference(ref).String()
}
