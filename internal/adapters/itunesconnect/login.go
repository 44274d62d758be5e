package itunesconnect

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/bnema/itcsync/internal/domain"
)

var serviceKeyPattern = regexp.MustCompile(`itcServiceKey\s*=\s*["']([^"']+)["']`)

// DiscoverServiceKey reads the widget key out of the login controller script.
// The key is cached for the lifetime of the session.
func (c *Client) DiscoverServiceKey(ctx context.Context) (string, error) {
	if c.state.ServiceKey != "" {
		return c.state.ServiceKey, nil
	}

	const op = "discover service key"
	resp, err := c.send(ctx, call{op: op, method: http.MethodGet, url: resolve(c.urls.base, loginScriptPath)})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", &domain.TransportError{Op: op, StatusCode: resp.status}
	}

	match := serviceKeyPattern.FindSubmatch(resp.body)
	if match == nil {
		return "", domain.ErrServiceKeyNotFound
	}

	c.state.ServiceKey = string(match[1])
	c.touch()
	return c.state.ServiceKey, nil
}

// Login signs in with creds. It does nothing when the session is already
// authenticated or when no password is configured.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) error {
	if c.state.Authenticated || !creds.Configured() {
		return nil
	}

	if _, err := c.DiscoverServiceKey(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	const op = "sign in"
	resp, err := c.send(ctx, call{
		op:     op,
		method: http.MethodPost,
		url:    resolve(c.urls.auth, signInPath),
		body:   signInRequest{AccountName: creds.Email, Password: creds.Password},
		header: c.authHeaders(),
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.state.SessionID = resp.header.Get(sessionIDHeader)
	c.state.SCNT = resp.header.Get(scntHeader)
	c.touch()

	// 409 is how the vendor announces a second factor.
	if resp.status != http.StatusOK && resp.status != http.StatusConflict {
		return fmt.Errorf("login: %s: status %d: %w", op, resp.status, domain.ErrAuthenticationFailed)
	}

	if strings.EqualFold(resp.header.Get(trustEligibleHdr), "true") && !c.state.TwoFactorCompleted {
		c.state.TwoFactorPending = true
	}

	if err := c.materializeCookies(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if c.state.SessionID == "" || c.state.SCNT == "" {
		return fmt.Errorf("login: %s: response carried no session id or scnt: %w", op, domain.ErrAuthenticationFailed)
	}
	if c.state.TwoFactorPending && !c.state.TwoFactorCompleted {
		return nil
	}
	if err := c.requireCookies("login"); err != nil {
		return err
	}

	c.state.Authenticated = true
	return nil
}

// SubmitTwoFactor verifies a trusted-device code for a session that signed in
// and was asked for a second factor.
func (c *Client) SubmitTwoFactor(ctx context.Context, code string) error {
	if c.state.SessionID == "" || c.state.SCNT == "" {
		return fmt.Errorf("submit two-factor code: no sign-in in progress: %w", domain.ErrInvalidState)
	}

	const op = "submit security code"
	body := securityCodeRequest{}
	body.SecurityCode.Code = strings.TrimSpace(code)

	resp, err := c.send(ctx, call{
		op:     op,
		method: http.MethodPost,
		url:    resolve(c.urls.auth, securityCodePath),
		body:   body,
		header: c.authHeaders(),
	})
	if err != nil {
		return fmt.Errorf("submit two-factor code: %w", err)
	}
	if resp.status != http.StatusNoContent {
		return fmt.Errorf("submit two-factor code: status %d: %w", resp.status, domain.ErrTwoFactorRejected)
	}

	const trustOp = "trust session"
	resp, err = c.send(ctx, call{op: trustOp, method: http.MethodGet, url: resolve(c.urls.auth, trustPath), header: c.authHeaders()})
	if err != nil {
		return fmt.Errorf("submit two-factor code: %w", err)
	}
	if !resp.ok() {
		return fmt.Errorf("submit two-factor code: %w", &domain.TransportError{Op: trustOp, StatusCode: resp.status})
	}

	if err := c.materializeCookies(ctx); err != nil {
		return fmt.Errorf("submit two-factor code: %w", err)
	}
	if err := c.requireCookies("submit two-factor code"); err != nil {
		return err
	}

	c.state.TwoFactorCompleted = true
	c.state.TwoFactorPending = false
	c.state.Authenticated = true
	c.touch()
	return nil
}

// SelectTeam makes team the session's current content provider. Selecting
// the current team issues no request.
func (c *Client) SelectTeam(ctx context.Context, team domain.TeamID) error {
	if err := c.requireAuthenticated("select team"); err != nil {
		return err
	}
	if team == "" {
		return fmt.Errorf("select team: team id is empty: %w", domain.ErrInvalidState)
	}
	if c.state.CurrentTeamID == team {
		return nil
	}

	if c.state.UserID == "" {
		if _, err := c.fetchUserDetail(ctx); err != nil {
			return fmt.Errorf("select team: %w", err)
		}
		if c.state.CurrentTeamID == team {
			return nil
		}
	}

	const op = "switch team"
	resp, err := c.send(ctx, call{
		op:     op,
		method: http.MethodPost,
		url:    resolve(c.urls.base, webSessionPath),
		body: webSessionRequest{
			ContentProviderID: numericOrString(string(team)),
			DsID:              numericOrString(c.state.UserID),
		},
		header: c.sessionHeaders(),
	})
	if err != nil {
		return fmt.Errorf("select team: %w", err)
	}
	if !resp.ok() {
		return fmt.Errorf("select team: %w", &domain.TransportError{Op: op, StatusCode: resp.status})
	}

	c.state.CurrentTeamID = team
	c.teamApps = nil
	c.touch()
	return nil
}

func (c *Client) materializeCookies(ctx context.Context) error {
	const op = "fetch session cookies"
	resp, err := c.send(ctx, call{op: op, method: http.MethodGet, url: resolve(c.urls.base, cookieStepPath)})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return fmt.Errorf("%s: status %d: %w", op, resp.status, domain.ErrAuthenticationFailed)
	}
	return nil
}

// requireCookies fails when the cookie step left the jar empty. An
// authenticated session without cookies cannot reach any data endpoint.
func (c *Client) requireCookies(op string) error {
	if len(c.cookies()) == 0 {
		return fmt.Errorf("%s: no session cookies were set: %w", op, domain.ErrAuthenticationFailed)
	}
	return nil
}

// fetchUserDetail loads the account detail once per client and learns the
// user id and the vendor's current team from it.
func (c *Client) fetchUserDetail(ctx context.Context) (*userDetail, error) {
	if c.detail != nil {
		return c.detail, nil
	}

	var envelope userDetailEnvelope
	if err := c.getJSON(ctx, "fetch user detail", resolve(c.urls.base, userDetailPath), &envelope); err != nil {
		return nil, err
	}

	detail := envelope.Data
	c.detail = &detail
	if dsID := string(detail.SessionToken.DsID); dsID != "" {
		c.state.UserID = dsID
	}
	if c.state.CurrentTeamID == "" {
		c.state.CurrentTeamID = domain.TeamID(detail.SessionToken.ContentProviderID)
	}
	c.touch()
	return c.detail, nil
}
