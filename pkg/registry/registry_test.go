package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

type provider struct{ name string }

func TestResolveAfterRegister(t *testing.T) {
	r := New[*provider]("git provider", "git.provider")
	github := &provider{name: "github"}
	require.NoError(t, r.Register("GitHub", github))

	got, err := r.Resolve("GitHub")
	require.NoError(t, err)
	assert.Same(t, github, got)
}

func TestResolveIsCaseSensitive(t *testing.T) {
	r := New[*provider]("git provider", "git.provider")
	r.MustRegister("GitHub", &provider{})
	r.MustRegister("GitLab", &provider{})

	_, err := r.Resolve("gitlab")
	require.Error(t, err)
	assert.True(t, failure.IsProviderResolution(err))
	assert.Contains(t, err.Error(), "[GitHub, GitLab]")

	_, err = r.Resolve("GitLab")
	assert.NoError(t, err)
}

func TestResolveUnknownListsEveryName(t *testing.T) {
	r := New[int]("database driver", "db.driver")
	names := []string{"postgresql", "mysql", "db2", "oracle"}
	for i, n := range names {
		r.MustRegister(n, i)
	}

	_, err := r.Resolve("h2")
	require.Error(t, err)
	for _, n := range names {
		assert.Contains(t, err.Error(), n)
	}
	assert.Equal(t, []string{"db2", "mysql", "oracle", "postgresql"}, r.Names())
}

func TestResolveEmptyName(t *testing.T) {
	r := New[int]("git provider", "git.provider")
	r.MustRegister("GitHub", 1)

	_, err := r.Resolve("")
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
	assert.Contains(t, err.Error(), "git.provider")
}

func TestDuplicateRegistration(t *testing.T) {
	r := New[int]("cloud API", "cloud.api.implementation")
	require.NoError(t, r.Register("templates", 1))

	err := r.Register("templates", 2)
	require.Error(t, err)
	assert.True(t, failure.IsProviderResolution(err))

	_, err = r.Resolve("templates")
	assert.Error(t, err, "an ambiguous name must never resolve")

	err = r.Register("templates", 3)
	assert.Error(t, err, "a third registration must not clear the ambiguity")
	assert.Equal(t, []string{"templates"}, r.Names())

	_, err = r.ResolveDefault("")
	assert.True(t, failure.IsProviderResolution(err))
}

func TestResolveUnknownListsAmbiguousNames(t *testing.T) {
	r := New[int]("cloud API", "cloud.api.implementation")
	require.NoError(t, r.Register("operator", 1))
	require.NoError(t, r.Register("templates", 2))
	require.Error(t, r.Register("templates", 3))

	_, err := r.Resolve("apb")
	require.Error(t, err)
	var resolution *failure.ProviderResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, []string{"operator", "templates"}, resolution.Known)
	assert.False(t, resolution.Ambiguous)
}

func TestRegisterEmptyName(t *testing.T) {
	r := New[int]("cloud API", "cloud.api.implementation")
	assert.True(t, failure.IsUsage(r.Register("", 1)))
}

func TestResolveDefault(t *testing.T) {
	for _, test := range []struct {
		testName string
		names    []string
		request  string
		expected int
		errMsg   string
	}{
		{testName: "single registered", names: []string{"templates"}, expected: 0},
		{testName: "nothing registered", errMsg: "no cloud API implementation"},
		{testName: "several registered", names: []string{"templates", "operator"}, errMsg: "please select one from: [operator, templates]"},
		{testName: "explicit name", names: []string{"templates", "operator"}, request: "operator", expected: 1},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			r := New[int]("cloud API", "cloud.api.implementation")
			for i, n := range test.names {
				r.MustRegister(n, i)
			}

			got, err := r.ResolveDefault(test.request)
			if test.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}
