package model

import (
	"time"

	"github.com/tunnelkit/tunnelkit/internal/values"
)

// Tunnel pairs a spec with its lifecycle state. It is immutable by
// construction; every state change (WithStatus, WithError, ...)
// returns a new value that the registry places in the map, replacing
// the prior one.
type Tunnel struct {
	spec        TunnelSpec
	status      values.TunnelStatus
	createdAt   time.Time
	connectedAt *time.Time
	lastErr     error
}

// NewTunnel returns a Tunnel in StatusPending.
func NewTunnel(spec TunnelSpec, now time.Time) Tunnel {
	return Tunnel{spec: spec, status: values.StatusPending, createdAt: now}
}

func (t Tunnel) Spec() TunnelSpec            { return t.spec }
func (t Tunnel) Status() values.TunnelStatus { return t.status }
func (t Tunnel) CreatedAt() time.Time        { return t.createdAt }
func (t Tunnel) LastError() error            { return t.lastErr }

// ConnectedAt returns the connection timestamp and true, or the zero
// time and false if the tunnel has never reached StatusConnected.
func (t Tunnel) ConnectedAt() (time.Time, bool) {
	if t.connectedAt == nil {
		return time.Time{}, false
	}
	return *t.connectedAt, true
}

// WithStatus returns a copy of t transitioned to status. Validity of
// the transition is the registry's responsibility (§4.6); this method
// only carries the value, it does not enforce the state machine.
func (t Tunnel) WithStatus(status values.TunnelStatus, now time.Time) Tunnel {
	cp := t
	cp.status = status
	if status == values.StatusConnected && cp.connectedAt == nil {
		when := now
		cp.connectedAt = &when
	}
	if status != values.StatusError {
		cp.lastErr = nil
	}
	return cp
}

// WithError returns a copy of t transitioned to StatusError, carrying
// the given cause.
func (t Tunnel) WithError(cause error, now time.Time) Tunnel {
	cp := t.WithStatus(values.StatusError, now)
	cp.lastErr = cause
	return cp
}
