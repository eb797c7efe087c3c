package values

import (
	"github.com/google/uuid"
	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const opTunnelIDOf errs.Op = "values.TunnelIDOf"

// TunnelID is a non-empty string, unique within a registry. Uniqueness
// is enforced by the registry, not by this type.
type TunnelID struct {
	s string
}

// TunnelIDOf validates s and returns a TunnelID.
func TunnelIDOf(s string) (TunnelID, error) {
	if s == "" {
		return TunnelID{}, errs.E(opTunnelIDOf, errs.KindValidation, "tunnel id must not be empty")
	}
	return TunnelID{s: s}, nil
}

// NewRandomTunnelID returns a random, globally-unique TunnelID.
func NewRandomTunnelID() TunnelID {
	return TunnelID{s: uuid.New().String()}
}

// NewDescriptiveTunnelID derives an id from the tunnel's shape, e.g.
// "http-3000-myapp" or "tcp-22-2222", with suffix appended only when
// the caller detected a collision (the registry, not this function,
// knows about collisions).
func NewDescriptiveTunnelID(kind TunnelKind, localPort Port, discriminator string, suffix string) TunnelID {
	s := kind.String() + "-" + localPort.String() + "-" + discriminator
	if suffix != "" {
		s += "-" + suffix
	}
	return TunnelID{s: s}
}

func (id TunnelID) String() string { return id.s }
