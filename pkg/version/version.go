// Package version describes the build of the harness and compares product versions.
package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DevVersionEnv names the version reported by builds without ldflags.
const DevVersionEnv = "KIE_CLOUD_DEV_VERSION"

// Info contains versioning information.
type Info struct {
	GitVersion              string `json:"gitVersion"`
	GitCommit               string `json:"gitCommit"`
	BuildDate               string `json:"buildDate"`
	GoVersion               string `json:"goVersion"`
	Platform                string `json:"platform"`
	KubernetesClientVersion string `json:"kubernetesClientVersion"`
}

func (info Info) String() string {
	return info.GitVersion
}

// Get returns the version of the running binary.
func Get() Info {
	result := Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if strings.Contains(gitVersion, "$Format") {
		result.GitVersion = os.Getenv(DevVersionEnv)
		if result.GitVersion == "" {
			result.GitVersion = "not-built-on-release"
		}
		result.GitCommit = "dev"
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "k8s.io/client-go" {
				result.KubernetesClientVersion = dep.Version
			}
		}
	}
	return result
}

// Version is an extension of semver.Version
type Version struct {
	*semver.Version
}

// CompareMajorMinor compares only the major and minor segments, so 7.8.1 and 7.8.0 are equal.
func (v *Version) CompareMajorMinor(o *Version) int {
	if d := compareSegment(v.Major(), o.Major()); d != 0 {
		return d
	}
	return compareSegment(v.Minor(), o.Minor())
}

func compareSegment(v1, v2 uint64) int {
	if v1 < v2 {
		return -1
	}
	if v1 > v2 {
		return 1
	}
	return 0
}

// New parses a version, accepting a leading "v".
func New(v string) (*Version, error) {
	ver, err := semver.NewVersion(Clean(v))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return &Version{ver}, nil
}

// MustParse parses a given version and panics on error.
func MustParse(v string) *Version {
	return &Version{semver.MustParse(Clean(v))}
}

// Clean returns version without a prefixed v if it exists
func Clean(ver string) string {
	return strings.TrimPrefix(ver, "v")
}

// AtLeast fails when actual is older than minimum, ignoring the patch level.
func AtLeast(name string, actual, minimum *Version) error {
	if actual.CompareMajorMinor(minimum) < 0 {
		return fmt.Errorf("%s version %s is older than the supported %d.%d", name, actual, minimum.Major(), minimum.Minor())
	}
	return nil
}
