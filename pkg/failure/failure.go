// Package failure defines the error conditions the harness reports to calling test code.
package failure

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInterrupted is returned when a blocking call is cancelled through its context.
// It is always fatal for the current phase and must be propagated.
var ErrInterrupted = errors.New("interrupted")

// ConfigurationError reports a mandatory setting that is missing or a value that
// matches none of the known options.
type ConfigurationError struct {
	Key     string
	Value   string
	Options []string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("parameter %s must be specified", e.Key)
	}
	if len(e.Options) == 0 {
		return fmt.Sprintf("invalid value %q for parameter %s", e.Value, e.Key)
	}
	return fmt.Sprintf("invalid value %q for parameter %s, available options: [%s]", e.Value, e.Key, strings.Join(e.Options, ", "))
}

// MissingParameter returns a ConfigurationError for an absent mandatory key.
func MissingParameter(key string) *ConfigurationError {
	return &ConfigurationError{Key: key}
}

// ProviderResolutionError reports a provider name that is unknown or registered more than once.
type ProviderResolutionError struct {
	Kind      string
	Name      string
	Known     []string
	Ambiguous bool
}

func (e *ProviderResolutionError) Error() string {
	known := strings.Join(e.Known, ", ")
	switch {
	case e.Ambiguous && e.Name == "":
		return fmt.Sprintf("multiple %s implementations detected, please select one from: [%s]", e.Kind, known)
	case e.Ambiguous:
		return fmt.Sprintf("%s %q is registered more than once", e.Kind, e.Name)
	case len(e.Known) == 0:
		return fmt.Sprintf("no %s implementation with name %q was found, no implementations are registered", e.Kind, e.Name)
	default:
		return fmt.Sprintf("no %s implementation with name %q was found, possible options are: [%s]", e.Kind, e.Name, known)
	}
}

// DeploymentTimeoutError reports a readiness or registration condition that was not met in time.
type DeploymentTimeoutError struct {
	Subject   string
	Condition string
	Expected  int
	Observed  int
	Timeout   time.Duration
}

func (e *DeploymentTimeoutError) Error() string {
	msg := fmt.Sprintf("timeout while waiting %s", e.Timeout)
	if e.Condition != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.Condition)
	}
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", e.Subject, msg)
	}
	if e.Expected != 0 || e.Observed != 0 {
		msg = fmt.Sprintf("%s (expected %d, observed %d)", msg, e.Expected, e.Observed)
	}
	return msg
}

// UsageError reports a call made in the wrong state, e.g. reading deployment
// information before the deployment exists or reusing a built builder.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NotImplementedError is returned by backends for combinations they do not support.
type NotImplementedError struct {
	Backend string
	Feature string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not supported for %s", e.Feature, e.Backend)
}

// MissingResourceError reports a cluster resource the scenario depends on but which
// is not available. Test code usually skips the test instead of failing it.
type MissingResourceError struct {
	Resource string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("required resource %s is not available", e.Resource)
}

// IsTimeout reports whether err is or wraps a DeploymentTimeoutError.
func IsTimeout(err error) bool {
	var t *DeploymentTimeoutError
	return errors.As(err, &t)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// IsProviderResolution reports whether err is or wraps a ProviderResolutionError.
func IsProviderResolution(err error) bool {
	var p *ProviderResolutionError
	return errors.As(err, &p)
}

// IsUsage reports whether err is or wraps a UsageError.
func IsUsage(err error) bool {
	var u *UsageError
	return errors.As(err, &u)
}

// IsNotImplemented reports whether err is or wraps a NotImplementedError.
func IsNotImplemented(err error) bool {
	var n *NotImplementedError
	return errors.As(err, &n)
}

// IsMissingResource reports whether err is or wraps a MissingResourceError.
func IsMissingResource(err error) bool {
	var m *MissingResourceError
	return errors.As(err, &m)
}

// IsInterrupted reports whether err wraps ErrInterrupted.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}
