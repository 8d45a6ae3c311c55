package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/config"
	"github.com/sakif/openworld/internal/model"
	"github.com/sakif/openworld/internal/server"
)

const testSecret = "server-test-secret-0123456789"

func testConfig(dbPath string) *config.Config {
	return &config.Config{
		Env:          config.EnvDevelopment,
		Port:         0,
		DBPath:       dbPath,
		JWTSecret:    testSecret,
		ClientOrigin: "http://localhost:5173",
		LogLevel:     slog.LevelError,
		LogFormat:    "text",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...server.Option) (*server.Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts = append([]server.Option{server.WithPasswordService(auth.NewPasswordServiceForTest(bcrypt.MinCost))}, opts...)
	srv, err := server.New(context.Background(), cfg, logger, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

// do sends a JSON request and returns the status and raw body.
func do(t *testing.T, method, url, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func registerAndLogin(t *testing.T, base, email, password string) string {
	t.Helper()
	status, _ := do(t, http.MethodPost, base+"/api/register", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, status)

	status, raw := do(t, http.MethodPost, base+"/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)

	var body struct{ Token string }
	require.NoError(t, json.Unmarshal(raw, &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func listProjects(t *testing.T, base string) []model.ProjectView {
	t.Helper()
	status, raw := do(t, http.MethodGet, base+"/api/projects", "", nil)
	require.Equal(t, http.StatusOK, status)

	var projects []model.ProjectView
	require.NoError(t, json.Unmarshal(raw, &projects))
	return projects
}

func createProject(t *testing.T, base, token, title string, tags []string) int64 {
	t.Helper()
	status, raw := do(t, http.MethodPost, base+"/api/projects", token, map[string]any{
		"title": title, "description": title + " description", "tags": tags,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var body struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Project created successfully", body.Message)
	return body.ID
}

func TestRegister_DuplicateEmail(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))
	creds := map[string]string{"email": "dup@example.com", "password": "pw"}

	status, raw := do(t, http.MethodPost, ts.URL+"/api/register", "", creds)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"message":"User registered successfully"}`, string(raw))

	status, raw = do(t, http.MethodPost, ts.URL+"/api/register", "", creds)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "Email already exists")

	// Exactly one account: the first password still works.
	status, _ = do(t, http.MethodPost, ts.URL+"/api/login", "", creds)
	assert.Equal(t, http.StatusOK, status)
}

func TestRegister_MissingFields(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))

	status, raw := do(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{"email": "x@y.z"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "Email and password are required")
}

func TestLogin_TokenCarriesIdentity(t *testing.T) {
	srv, ts := newTestServer(t, testConfig(":memory:"))

	token := registerAndLogin(t, ts.URL, "me@example.com", "hunter2")

	identity, err := srv.Tokens().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.UserID)
	assert.Equal(t, "me@example.com", identity.Email)

	status, raw := do(t, http.MethodGet, ts.URL+"/api/me", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"email":"me@example.com"`)
	assert.NotContains(t, string(raw), "password")
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))
	registerAndLogin(t, ts.URL, "me@example.com", "hunter2")

	wrongStatus, wrongBody := do(t, http.MethodPost, ts.URL+"/api/login", "",
		map[string]string{"email": "me@example.com", "password": "nope"})
	unknownStatus, unknownBody := do(t, http.MethodPost, ts.URL+"/api/login", "",
		map[string]string{"email": "ghost@example.com", "password": "hunter2"})

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, string(wrongBody), string(unknownBody))
}

func TestProjects_ListNewestFirst(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))

	status, raw := do(t, http.MethodGet, ts.URL+"/api/projects", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))

	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")
	for _, title := range []string{"one", "two", "three"} {
		createProject(t, ts.URL, token, title, nil)
	}

	projects := listProjects(t, ts.URL)
	require.Len(t, projects, 3)
	assert.Equal(t, "three", projects[0].Title)
	assert.Equal(t, "one", projects[2].Title)
	for _, p := range projects {
		assert.Equal(t, "owner@example.com", p.CreatorEmail)
		assert.Equal(t, int64(1), p.Contributors)
		assert.Equal(t, []string{}, p.Tags)
	}
}

func TestProjects_TagsRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))
	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")

	id := createProject(t, ts.URL, token, "tagged", []string{"a", "b"})

	projects := listProjects(t, ts.URL)
	require.Len(t, projects, 1)
	assert.Equal(t, id, projects[0].ID)
	assert.Equal(t, []string{"a", "b"}, projects[0].Tags)
}

func TestProjects_CreateRequiresTitle(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))
	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")

	status, raw := do(t, http.MethodPost, ts.URL+"/api/projects", token, map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "Title is required")
	assert.Empty(t, listProjects(t, ts.URL))
}

func TestStar_ConcurrentIncrements(t *testing.T) {
	// A file database so the pool really has several connections.
	_, ts := newTestServer(t, testConfig(filepath.Join(t.TempDir(), "stars.sqlite")))
	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")
	id := createProject(t, ts.URL, token, "popular", nil)

	const stars = 25
	url := ts.URL + "/api/projects/" + jsonID(id) + "/star"

	var wg sync.WaitGroup
	statuses := make(chan int, stars)
	for i := 0; i < stars; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, url, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}

	projects := listProjects(t, ts.URL)
	require.Len(t, projects, 1)
	assert.Equal(t, int64(stars), projects[0].Stars)
}

func TestStar_UnknownAndInvalidID(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))
	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")

	status, raw := do(t, http.MethodPost, ts.URL+"/api/projects/999/star", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Project starred successfully"}`, string(raw))

	status, _ = do(t, http.MethodPost, ts.URL+"/api/projects/abc/star", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWrites_RejectedWithoutValidToken(t *testing.T) {
	srv, ts := newTestServer(t, testConfig(":memory:"))
	token := registerAndLogin(t, ts.URL, "owner@example.com", "pw")
	id := createProject(t, ts.URL, token, "guarded", nil)

	expired := signToken(t, testSecret, time.Now().Add(-time.Hour))
	foreign := signToken(t, "some-other-secret-0123456789", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		token  string
		status int
		msg    string
	}{
		{"no token", "", http.StatusUnauthorized, auth.MsgTokenRequired},
		{"malformed token", "not-a-jwt", http.StatusForbidden, auth.MsgInvalidToken},
		{"expired token", expired, http.StatusForbidden, auth.MsgInvalidToken},
		{"wrong secret", foreign, http.StatusForbidden, auth.MsgInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, http.MethodPost, ts.URL+"/api/projects", tt.token, map[string]any{"title": "sneaky"})
			assert.Equal(t, tt.status, status)
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, string(raw))

			status, _ = do(t, http.MethodPost, ts.URL+"/api/projects/"+jsonID(id)+"/star", tt.token, nil)
			assert.Equal(t, tt.status, status)
		})
	}

	projects := listProjects(t, ts.URL)
	require.Len(t, projects, 1, "no project may be created")
	assert.Equal(t, int64(0), projects[0].Stars, "no star may be recorded")

	_, err := srv.Tokens().Verify(expired)
	assert.Error(t, err)
}

func TestSeedSamples(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seed.sqlite"))
	cfg.SeedSamples = true

	_, ts := newTestServer(t, cfg)

	projects := listProjects(t, ts.URL)
	require.Len(t, projects, 2)
	titles := []string{projects[0].Title, projects[1].Title}
	assert.ElementsMatch(t, []string{"AI Code Assistant", "Quantum Computing Simulator"}, titles)
	for _, p := range projects {
		// user 1 does not exist yet
		assert.Equal(t, model.AnonymousCreator, p.CreatorEmail)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))

	status, raw := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	status, raw = do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGitHubRoutesOnlyWhenConfigured(t *testing.T) {
	_, ts := newTestServer(t, testConfig(":memory:"))

	status, _ := do(t, http.MethodGet, ts.URL+"/auth/github/login", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

type fakeGitHub struct{}

func (fakeGitHub) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

func (fakeGitHub) Exchange(context.Context, string) (*auth.GitHubUser, error) {
	return &auth.GitHubUser{ID: 583231, Login: "octocat"}, nil
}

func TestGitHubSignIn_IssuesUsableToken(t *testing.T) {
	srv, ts := newTestServer(t, testConfig(":memory:"), server.WithGitHub(fakeGitHub{}))

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/github/callback?code=c&state=s", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "http://localhost:5173/#token="), location)
	token := strings.TrimPrefix(location, "http://localhost:5173/#token=")

	identity, err := srv.Tokens().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "583231+octocat@users.noreply.github.com", identity.Email)

	createProject(t, ts.URL, token, "from github", nil)

	// No usable password exists for the account.
	status, _ := do(t, http.MethodPost, ts.URL+"/api/login", "",
		map[string]string{"email": identity.Email, "password": model.NoPassword})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    1,
		"email": "owner@example.com",
		"iss":   "openworld",
		"iat":   exp.Add(-24 * time.Hour).Unix(),
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
