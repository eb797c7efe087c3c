// Package values holds the smart-constructed value types shared by the
// configuration model and the tunnel registry: Port, Path, Domain,
// Token, and TunnelID. Each is obtainable only through a validating
// factory; once constructed, values are immutable and compared
// structurally.
package values

import (
	"fmt"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const (
	opPortOf errs.Op = "values.PortOf"

	minPort        = 1
	maxPort        = 65535
	privilegedPort = 1024
)

// Port is a validated TCP/UDP port number in [1, 65535].
type Port struct {
	n int
}

// PortOf validates n and returns a Port, or a KindValidation error.
func PortOf(n int) (Port, error) {
	if n < minPort || n > maxPort {
		return Port{}, errs.E(opPortOf, errs.KindValidation,
			fmt.Sprintf("port %d out of range [%d, %d]", n, minPort, maxPort))
	}
	return Port{n: n}, nil
}

// Int returns the underlying port number.
func (p Port) Int() int { return p.n }

// Privileged reports whether the port is below 1024.
func (p Port) Privileged() bool { return p.n < privilegedPort }

func (p Port) String() string { return fmt.Sprintf("%d", p.n) }
