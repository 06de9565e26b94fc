package deployment

import (
	"fmt"
	"regexp"
	"strings"
)

// FindByName returns the single deployment whose name matches the regular expression pattern.
func FindByName(deployments []Deployment, pattern string) (Deployment, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid deployment name pattern %q: %v", pattern, err)
	}

	var found []Deployment
	for _, d := range deployments {
		if re.MatchString(d.Name()) {
			found = append(found, d)
		}
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("no deployment matching %q found, available deployments: [%s]", pattern, names(deployments))
	default:
		return nil, fmt.Errorf("multiple deployments matching %q found: [%s]", pattern, names(found))
	}
}

func names(deployments []Deployment) string {
	n := make([]string, 0, len(deployments))
	for _, d := range deployments {
		n = append(n, d.Name())
	}
	return strings.Join(n, ", ")
}
