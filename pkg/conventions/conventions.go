package conventions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	tagRegexp = regexp.MustCompile(`^v?([0-9]+(?:\.[0-9]+)+)$`)
)

// VersionFromTag strips the leading "v" from a release tag and validates
// that the remainder is a dot separated set of integers. Published artifact
// directories are keyed by this form.
func VersionFromTag(tag string) (string, error) {
	matches := tagRegexp.FindStringSubmatch(tag)
	if len(matches) > 0 {
		if len(matches) != 2 {
			panic("faulty regex")
		}

		return matches[1], nil
	}

	return "", fmt.Errorf("can't parse version from tag %q", tag)
}

// ParseVersion splits a dot separated version string into its integer
// components. Upstream versions have four components, but any count >= 2
// is accepted.
func ParseVersion(version string) ([]int, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%q does not appear to be an actual version number", version)
	}

	components := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q does not appear to be an actual version number", version)
		}
		components = append(components, n)
	}

	return components, nil
}

// Compare orders two version component slices. Missing components compare
// as zero, so 2.2 == 2.2.0.
func Compare(a, b []int) int {
	l := len(a)
	if len(b) > l {
		l = len(b)
	}

	for i := 0; i < l; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}

		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}

	return 0
}

// LatestTag picks the highest version tag from the given tag names. Tags
// that don't follow the version convention are skipped.
func LatestTag(tags []string) (string, error) {
	var latestTag string
	var latest []int

	for _, tag := range tags {
		version, err := VersionFromTag(tag)
		if err != nil {
			continue
		}

		components, err := ParseVersion(version)
		if err != nil {
			continue
		}

		if latest == nil || Compare(components, latest) > 0 {
			latestTag = tag
			latest = components
		}
	}

	if latest == nil {
		return "", fmt.Errorf("no version tag found among %d tags", len(tags))
	}

	return latestTag, nil
}
