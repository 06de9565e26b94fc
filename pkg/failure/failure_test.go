package failure

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	for _, test := range []struct {
		testName string
		err      error
		expected string
	}{
		{
			testName: "missing parameter",
			err:      MissingParameter("git.provider"),
			expected: "parameter git.provider must be specified",
		},
		{
			testName: "unknown option",
			err:      &ConfigurationError{Key: "db.driver", Value: "h2", Options: []string{"mysql", "postgresql"}},
			expected: `invalid value "h2" for parameter db.driver, available options: [mysql, postgresql]`,
		},
		{
			testName: "unknown provider",
			err:      &ProviderResolutionError{Kind: "git provider", Name: "gitlab", Known: []string{"GitHub", "GitLab"}},
			expected: `no git provider implementation with name "gitlab" was found, possible options are: [GitHub, GitLab]`,
		},
		{
			testName: "ambiguous default",
			err:      &ProviderResolutionError{Kind: "cloud API", Known: []string{"apb", "templates"}, Ambiguous: true},
			expected: "multiple cloud API implementations detected, please select one from: [apb, templates]",
		},
		{
			testName: "timeout with counts",
			err:      &DeploymentTimeoutError{Subject: "kie-server", Condition: "pods to be ready", Expected: 2, Observed: 1, Timeout: time.Minute},
			expected: "kie-server: timeout while waiting 1m0s for pods to be ready (expected 2, observed 1)",
		},
		{
			testName: "not implemented",
			err:      &NotImplementedError{Backend: "apb", Feature: "workbench"},
			expected: "workbench is not supported for apb",
		},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			assert.Equal(t, test.expected, test.err.Error())
		})
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	assert.True(t, IsTimeout(errors.Wrap(&DeploymentTimeoutError{}, "deploy")))
	assert.True(t, IsConfiguration(errors.Wrap(MissingParameter("a"), "setup")))
	assert.True(t, IsProviderResolution(errors.Wrap(&ProviderResolutionError{}, "resolve")))
	assert.True(t, IsUsage(errors.Wrap(&UsageError{}, "configure")))
	assert.True(t, IsNotImplemented(errors.Wrap(&NotImplementedError{}, "build")))
	assert.True(t, IsMissingResource(errors.Wrap(&MissingResourceError{}, "deploy")))
	assert.True(t, IsInterrupted(errors.Wrapf(ErrInterrupted, "sleep %s", time.Second)))

	assert.False(t, IsTimeout(errors.New("boom")))
	assert.False(t, IsInterrupted(nil))
}
