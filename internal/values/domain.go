package values

import (
	"regexp"
	"strings"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const opDomainOf errs.Op = "values.DomainOf"

var domainLabelCharset = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

// Domain is a validated hostname: non-empty, at least one dot, each
// label non-empty and composed of alphanumerics plus '-'.
type Domain struct {
	s string
}

// DomainOf validates s and returns a Domain, or a KindValidation error.
func DomainOf(s string) (Domain, error) {
	if s == "" {
		return Domain{}, errs.E(opDomainOf, errs.KindValidation, "domain must not be empty")
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return Domain{}, errs.E(opDomainOf, errs.KindValidation, "domain must contain at least one dot")
	}
	for _, label := range labels {
		if label == "" {
			return Domain{}, errs.E(opDomainOf, errs.KindValidation, "domain labels must not be empty")
		}
		if !domainLabelCharset.MatchString(label) {
			return Domain{}, errs.E(opDomainOf, errs.KindValidation,
				"domain labels must be alphanumeric plus '-'")
		}
	}
	return Domain{s: s}, nil
}

func (d Domain) String() string { return d.s }
