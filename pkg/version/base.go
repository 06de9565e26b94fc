package version

// Fallback build information, replaced through -ldflags by release builds:
//
//	-X github.com/kiegroup/kie-cloud-tests/pkg/version.gitVersion=v1.2.0
var (
	gitVersion = "v0.0.0-master+$Format:%h$"
	gitCommit  = "$Format:%H$" // output of $(git rev-parse HEAD)

	buildDate = "1970-01-01T00:00:00Z" // output of $(date -u +'%Y-%m-%dT%H:%M:%SZ')
)
