package update

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ParseVersion extracts the version from a release tag:
// "v0.2.4-build5" and "0.2.4" both yield "0.2.4".
func ParseVersion(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "v")
	version, _, _ := strings.Cut(tag, "-")
	return version
}

// BuildNumber returns N from a "-buildN" tag suffix, or 0.
func BuildNumber(tag string) int {
	for _, part := range strings.Split(tag, "-") {
		if !strings.HasPrefix(part, "build") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(part, "build"))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// IsNewer reports whether remoteTag is a newer release than currentTag.
// Semantic versions are compared first and the build number breaks ties.
// When either side is not a semantic version, any difference counts as newer.
func IsNewer(remoteTag, currentTag string) bool {
	remote, current := ParseVersion(remoteTag), ParseVersion(currentTag)
	rv, cv := "v"+remote, "v"+current
	if !semver.IsValid(rv) || !semver.IsValid(cv) {
		return remote != current
	}
	if c := semver.Compare(rv, cv); c != 0 {
		return c > 0
	}
	return BuildNumber(remoteTag) > BuildNumber(currentTag)
}
