// Package config is the configuration surface of the harness. Every tunable is a dotted key
// ("org.kie.server.user") that can come from a config file, a flag or the environment
// (ORG_KIE_SERVER_USER).
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

// Config resolves configuration keys. It is passed explicitly to the components that need it.
type Config struct {
	v *viper.Viper
}

// New creates a Config reading from the process environment, with the harness defaults applied.
func New() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(InstanceLogs, DefaultInstanceLogs)
	v.SetDefault(DeploymentTimeout, DefaultDeploymentTimeout.String())
	v.SetDefault(WaitInterval, DefaultWaitInterval.String())
	v.SetDefault(KieServerUser, "yoda")
	v.SetDefault(KieServerPassword, "usetheforce123@")
	v.SetDefault(WorkbenchUser, "adminUser")
	v.SetDefault(WorkbenchPassword, "adminUser1!")
	v.SetDefault(ControllerUser, "adminUser")
	v.SetDefault(ControllerPassword, "adminUser1!")

	return &Config{v: v}
}

// FromMap creates a Config holding exactly the given values on top of the defaults. Environment
// variables are still consulted for keys not in values.
func FromMap(values map[string]string) *Config {
	c := New()
	for k, val := range values {
		c.Set(k, val)
	}
	return c
}

// LoadFile merges a YAML, JSON or properties file into the configuration.
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.MergeInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", path)
	}
	return nil
}

// BindFlags lets the given flags override configuration keys. keyByFlag maps a flag name to
// the key it sets, e.g. "namespace-prefix" to NamespacePrefix.
func (c *Config) BindFlags(fs *pflag.FlagSet, keyByFlag map[string]string) error {
	for flag, key := range keyByFlag {
		f := fs.Lookup(flag)
		if f == nil {
			return errors.Errorf("unknown flag %s", flag)
		}
		if err := c.v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "binding flag %s to %s", flag, key)
		}
	}
	return nil
}

// Set overrides key for the lifetime of this Config.
func (c *Config) Set(key, value string) {
	c.v.Set(key, value)
}

// Mandatory returns the value of key or a ConfigurationError naming the key.
func (c *Config) Mandatory(key string) (string, error) {
	val := strings.TrimSpace(c.v.GetString(key))
	if val == "" {
		return "", failure.MissingParameter(key)
	}
	return val, nil
}

// Optional returns the value of key, or def when it is unset or empty.
func (c *Config) Optional(key, def string) string {
	if val := strings.TrimSpace(c.v.GetString(key)); val != "" {
		return val
	}
	return def
}

// Duration returns key parsed as a duration, or def when unset. Plain integers are read as seconds.
func (c *Config) Duration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(c.v.GetString(key))
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	d := c.v.GetInt64(key)
	if d <= 0 {
		return 0, &failure.ConfigurationError{Key: key, Value: raw}
	}
	return time.Duration(d) * time.Second, nil
}

// Int returns key as an integer, or def when unset.
func (c *Config) Int(key string, def int) (int, error) {
	raw := strings.TrimSpace(c.v.GetString(key))
	if raw == "" {
		return def, nil
	}
	n := c.v.GetInt(key)
	if n == 0 && raw != "0" {
		return 0, &failure.ConfigurationError{Key: key, Value: raw}
	}
	return n, nil
}

// Bool returns key as a boolean, false when unset.
func (c *Config) Bool(key string) bool {
	return c.v.GetBool(key)
}

// Credentials returns a user/password pair from two keys.
func (c *Config) Credentials(userKey, passwordKey string) (string, string) {
	return c.Optional(userKey, ""), c.Optional(passwordKey, "")
}

// AllSettings returns every key known to the configuration with its value.
func (c *Config) AllSettings() map[string]interface{} {
	return c.v.AllSettings()
}
