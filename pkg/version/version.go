// Package version parses and compares controller API versions.
//
// The controller advertises its supported API versions in the public
// information document, e.g. ["1.2","2.1"]. The gateway was written
// against Minimum; older controllers still work for the most part, so an
// unsupported version is reported to the caller, not treated as fatal.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Minimum is the API version the gateway was written against.
const Minimum = "1.2"

// APIVersion is a parsed "major.minor" controller API version.
type APIVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (APIVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return APIVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return APIVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if v is the same as or newer than other.
func (v APIVersion) AtLeast(other APIVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// Supported reports whether any advertised version satisfies Minimum.
// Unparseable entries are skipped; an empty list counts as supported
// because older controller firmware omits the field entirely.
func Supported(advertised []string) bool {
	minimum, err := Parse(Minimum)
	if err != nil {
		return true
	}
	if len(advertised) == 0 {
		return true
	}
	for _, s := range advertised {
		v, err := Parse(s)
		if err != nil {
			continue
		}
		if v.AtLeast(minimum) {
			return true
		}
	}
	return false
}
