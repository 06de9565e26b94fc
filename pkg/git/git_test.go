package git

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
)

// fakeServer records requests and serves canned responses by "<METHOD> <path>".
type fakeServer struct {
	mu        sync.Mutex
	requests  []string
	bodies    map[string]map[string]interface{}
	responses map[string]string
}

func newFakeServer(t *testing.T, responses map[string]string) (*fakeServer, *httptest.Server) {
	f := &fakeServer{responses: responses, bodies: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key)
	if r.Body != nil {
		var body map[string]interface{}
		if json.NewDecoder(r.Body).Decode(&body) == nil {
			f.bodies[key] = body
		}
	}
	resp, ok := f.responses[key]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write([]byte(resp))
}

func (f *fakeServer) body(key string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func (f *fakeServer) received(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == key {
			return true
		}
	}
	return false
}

func TestRepositoryName(t *testing.T) {
	name := RepositoryName("kie")
	assert.True(t, strings.HasPrefix(name, "kie-"), name)
	assert.Len(t, name, len("kie-")+4)
	assert.NotEqual(t, name, RepositoryName("kie"))
}

func TestNewResolvesProviderCaseSensitively(t *testing.T) {
	_, err := New(config.FromMap(map[string]string{config.GitProvider: "gitlab"}))
	require.Error(t, err)
	assert.True(t, failure.IsProviderResolution(err))
	assert.Contains(t, err.Error(), "[GitHub, GitLab, Gogs]")

	p, err := New(config.FromMap(map[string]string{
		config.GitProvider: "GitLab",
		config.GitLabURL:   "http://gitlab.example.com",
		config.GitLabToken: "token",
	}))
	require.NoError(t, err)
	assert.IsType(t, &GitLab{}, p)
}

func TestNewMissingParameters(t *testing.T) {
	for _, test := range []struct {
		testName string
		values   map[string]string
		missing  string
	}{
		{testName: "no provider", values: map[string]string{}, missing: config.GitProvider},
		{testName: "github password", values: map[string]string{config.GitProvider: GitHubName, config.GitHubUsername: "u"}, missing: config.GitHubPassword},
		{testName: "gitlab token", values: map[string]string{config.GitProvider: GitLabName, config.GitLabURL: "http://gitlab"}, missing: config.GitLabToken},
		{testName: "gogs url", values: map[string]string{config.GitProvider: GogsName}, missing: config.GogsURL},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			_, err := New(config.FromMap(test.values))
			require.Error(t, err)
			assert.True(t, failure.IsConfiguration(err))
			assert.Contains(t, err.Error(), test.missing)
		})
	}
}

func TestGitHub(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeServer(t, map[string]string{
		"POST /api/v3/user/repos":         `{"name":"created"}`,
		"GET /api/v3/repos/kie/myrepo":    `{"name":"myrepo","clone_url":"https://github.example.com/kie/myrepo.git"}`,
		"DELETE /api/v3/repos/kie/myrepo": ``,
	})

	p, err := NewGitHub(config.FromMap(map[string]string{
		config.GitHubUsername:    "user",
		config.GitHubPassword:    "secret",
		config.GitHubURL:         srv.URL + "/",
		config.GitRepositoryUser: "kie",
	}))
	require.NoError(t, err)

	name, err := p.CreateRepository(ctx, "kie")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "kie-"), name)
	body := f.body("POST /api/v3/user/repos")
	assert.Equal(t, name, body["name"])
	assert.Equal(t, false, body["private"])

	url, ok := LookupRepositoryURL(ctx, p, "myrepo", log.Nop())
	assert.True(t, ok)
	assert.Equal(t, "https://github.example.com/kie/myrepo.git", url)

	require.NoError(t, p.DeleteRepository(ctx, "myrepo"))
	assert.True(t, f.received("DELETE /api/v3/repos/kie/myrepo"))

	_, ok = LookupRepositoryURL(ctx, p, "missing", log.Nop())
	assert.False(t, ok)
}

func TestGitHubSendsBasicAuth(t *testing.T) {
	var user, password string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, _ = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := NewGitHub(config.FromMap(map[string]string{
		config.GitHubUsername: "user",
		config.GitHubPassword: "secret",
		config.GitHubURL:      srv.URL + "/",
	}))
	require.NoError(t, err)
	require.NoError(t, p.DeleteRepository(context.Background(), "repo"))
	assert.Equal(t, "user", user)
	assert.Equal(t, "secret", password)
}

func TestGitLab(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeServer(t, map[string]string{
		"POST /api/v4/projects":               `{"id":1,"name":"created"}`,
		"GET /api/v4/user":                    `{"id":7,"username":"root"}`,
		"GET /api/v4/projects/root/myrepo":    `{"id":2,"name":"myrepo","http_url_to_repo":"http://gitlab.example.com/root/myrepo.git"}`,
		"DELETE /api/v4/projects/root/myrepo": ``,
	})

	p, err := NewGitLab(config.FromMap(map[string]string{
		config.GitLabURL:   srv.URL,
		config.GitLabToken: "token",
	}))
	require.NoError(t, err)

	name, err := p.CreateRepository(ctx, "kie")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "kie-"), name)
	assert.Equal(t, name, f.body("POST /api/v4/projects")["name"])

	url, err := p.RepositoryURL(ctx, "myrepo")
	require.NoError(t, err)
	assert.Equal(t, "http://gitlab.example.com/root/myrepo.git", url)
	assert.True(t, f.received("GET /api/v4/user"))

	require.NoError(t, p.DeleteRepository(ctx, "myrepo"))
	assert.True(t, f.received("DELETE /api/v4/projects/root/myrepo"))
}

func TestGogs(t *testing.T) {
	ctx := context.Background()
	f, srv := newFakeServer(t, map[string]string{
		"POST /api/v1/user/repos":          `{"id":1,"name":"created"}`,
		"DELETE /api/v1/repos/gogs/myrepo": ``,
	})

	p, err := NewGogs(config.FromMap(map[string]string{
		config.GogsURL:      srv.URL + "/",
		config.GogsUsername: "gogs",
		config.GogsPassword: "secret",
	}))
	require.NoError(t, err)

	name, err := p.CreateRepository(ctx, "kie")
	require.NoError(t, err)
	assert.Equal(t, name, f.body("POST /api/v1/user/repos")["name"])

	url, ok := LookupRepositoryURL(ctx, p, "myrepo", log.Nop())
	assert.True(t, ok)
	assert.Equal(t, srv.URL+"/gogs/myrepo.git", url)

	require.NoError(t, p.DeleteRepository(ctx, "myrepo"))
	assert.True(t, f.received("DELETE /api/v1/repos/gogs/myrepo"))

	err = p.DeleteRepository(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
