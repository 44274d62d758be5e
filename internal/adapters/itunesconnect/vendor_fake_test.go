package itunesconnect

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const (
	testServiceKey   = "svc-key-123"
	testSessionID    = "sess-1"
	testSCNT         = "scnt-1"
	testCookieName   = "myacinfo"
	testCookieValue  = "session-token"
	testSecurityCode = "123456"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

const defaultUserDetail = `{"data":{
	"associatedAccounts":[
		{"contentProvider":{"contentProviderId":111,"name":"Team One"},"roles":["ADMIN"]},
		{"contentProvider":{"contentProviderId":"222","name":"Team Two"},"roles":["DEVELOPER"]}
	],
	"sessionToken":{"dsId":9001,"contentProviderId":111},
	"userName":"dev@example.com",
	"displayName":"Dev Example",
	"userId":"u-1"
}}`

// fakeVendor mimics the subset of iTunes Connect and Apple ID endpoints the
// client uses. Both hosts are served from the same server.
type fakeVendor struct {
	mu sync.Mutex

	script        string
	signInStatus  int
	trustEligible bool
	requireCookie bool
	omitSession   bool
	omitCookie    bool
	unauthorized  bool
	currentTeam   string
	userDetail    string
	teamApps      map[string]string
	docs          map[string]string
	statuses      map[string]int
	hits          map[string]int
	lastSignIn    map[string]any
}

func newFakeVendor(t *testing.T) (*fakeVendor, *httptest.Server) {
	t.Helper()

	v := &fakeVendor{
		script:       `var x = 1; itcServiceKey = "` + testServiceKey + `"; var y = 2;`,
		signInStatus: http.StatusOK,
		userDetail:   defaultUserDetail,
		currentTeam:  "111",
		teamApps:     map[string]string{},
		docs:         map[string]string{},
		statuses:     map[string]int{},
		hits:         map[string]int{},
	}

	server := httptest.NewServer(v)
	t.Cleanup(server.Close)
	return v, server
}

func (v *fakeVendor) count(method string, path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hits[method+" /"+path]
}

func (v *fakeVendor) signInBody() map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSignIn
}

func (v *fakeVendor) total() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, hits := range v.hits {
		n += hits
	}
	return n
}

func (v *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.hits[r.Method+" "+r.URL.Path]++
	key := strings.TrimPrefix(r.URL.Path, "/")
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	if status, ok := v.statuses[key]; ok {
		w.WriteHeader(status)
		return
	}

	switch key {
	case loginScriptPath:
		_, _ = io.WriteString(w, v.script)
		return
	case signInPath:
		if r.Header.Get(widgetKeyHeader) != testServiceKey {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&v.lastSignIn)
		if !v.omitSession {
			w.Header().Set(sessionIDHeader, testSessionID)
			w.Header().Set(scntHeader, testSCNT)
		}
		status := v.signInStatus
		if v.trustEligible {
			w.Header().Set(trustEligibleHdr, "true")
			status = http.StatusConflict
		}
		w.WriteHeader(status)
		return
	case cookieStepPath:
		if !v.omitCookie {
			http.SetCookie(w, &http.Cookie{Name: testCookieName, Value: testCookieValue, Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
		return
	case securityCodePath:
		var body struct {
			SecurityCode struct {
				Code string `json:"code"`
			} `json:"securityCode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.SecurityCode.Code != testSecurityCode || r.Header.Get(scntHeader) != testSCNT {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	case trustPath:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !strings.HasPrefix(key, apiPrefix+"ra/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if v.unauthorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if v.requireCookie {
		cookie, err := r.Cookie(testCookieName)
		if err != nil || cookie.Value != testCookieValue {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	switch key {
	case userDetailPath:
		_, _ = io.WriteString(w, v.userDetail)
	case webSessionPath:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		v.currentTeam = jsonID(body["contentProviderId"])
		w.WriteHeader(http.StatusOK)
	case appsSummaryPath:
		body, ok := v.teamApps[v.currentTeam]
		if !ok {
			body = `{"data":{"summaries":[]}}`
		}
		_, _ = io.WriteString(w, body)
	default:
		body, ok := v.docs[strings.TrimPrefix(key, apiPrefix)+"@"+v.currentTeam]
		if !ok {
			body, ok = v.docs[strings.TrimPrefix(key, apiPrefix)]
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	}
}

func jsonID(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	default:
		return ""
	}
}

func testConfig(server *httptest.Server) Config {
	return Config{
		BaseURL: server.URL + "/",
		AuthURL: server.URL + "/",
		Now:     func() time.Time { return testNow },
	}
}

func newTestClient(t *testing.T, server *httptest.Server, state domain.SessionState) *Client {
	t.Helper()

	client, err := NewClient(testConfig(server), state)
	require.NoError(t, err)
	return client
}

func testCreds() domain.Credentials {
	return domain.Credentials{Email: "dev@example.com", Password: "hunter2"}
}

func loggedInClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client := newTestClient(t, server, domain.SessionState{})
	require.NoError(t, client.Login(context.Background(), testCreds()))
	require.True(t, client.State().Authenticated)
	return client
}
