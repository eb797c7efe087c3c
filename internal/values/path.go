package values

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const opPathOf errs.Op = "values.PathOf"

const maxPathLen = 100

var pathCharset = regexp.MustCompile(`^[A-Za-z0-9_\-/]+$`)

// Path is a URL path segment usable as an HTTP location entry for the
// agent. The leading slash is added only at emission time (§4.3).
type Path struct {
	s string
}

// PathOf validates s and returns a Path, or a KindValidation error.
//
// Invariants: non-empty, length <= 100, must not begin with "/",
// composed of [A-Za-z0-9_-/].
func PathOf(s string) (Path, error) {
	if s == "" {
		return Path{}, errs.E(opPathOf, errs.KindValidation, "path must not be empty")
	}
	if len(s) > maxPathLen {
		return Path{}, errs.E(opPathOf, errs.KindValidation,
			fmt.Sprintf("path exceeds %d characters", maxPathLen))
	}
	if strings.HasPrefix(s, "/") {
		return Path{}, errs.E(opPathOf, errs.KindValidation, "path must not begin with '/'")
	}
	if !pathCharset.MatchString(s) {
		return Path{}, errs.E(opPathOf, errs.KindValidation,
			"path must be composed of [A-Za-z0-9_-/]")
	}
	return Path{s: s}, nil
}

// String returns the raw path without a leading slash.
func (p Path) String() string { return p.s }

// WithLeadingSlash returns the path as it should appear in the emitted
// configuration's locations entry, e.g. "myapp" -> "/myapp".
func (p Path) WithLeadingSlash() string { return "/" + p.s }

// IsPrefixBoundaryOf reports whether p is a prefix of other, ending at
// a '/' boundary (used by the registry's path-conflict detection).
func (p Path) IsPrefixBoundaryOf(other Path) bool {
	a, b := p.s, other.s
	if a == b {
		return false // equality is handled separately by the caller
	}
	if len(a) >= len(b) {
		return false
	}
	if !strings.HasPrefix(b, a) {
		return false
	}
	return b[len(a)] == '/'
}
