// Package registry holds the live ordered map of tunnels (spec §4.6,
// components F and G): an ordered TunnelID -> Tunnel map, a
// (domain, path) index for HTTP conflict checks, a remote-port set
// for TCP conflict checks, and the status state machine.
//
// This is distinct from model.Configuration: the configuration model
// is the pure, functional snapshot the TOML emitter renders, while the
// registry is the mutable runtime structure the client facade
// transitions as the supervisor reports readiness and death. The
// facade projects the registry's tunnels into a model.Configuration
// whenever it needs to re-emit.
package registry

import (
	"sync"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

const (
	opInsert     errs.Op = "registry.Insert"
	opTransition errs.Op = "registry.Transition"
	opRemove     errs.Op = "registry.Remove"
)

// allowedTransitions is the state machine of spec §4.6. Any (from, to)
// pair not listed here fails with errs.KindInvalidState.
var allowedTransitions = map[values.TunnelStatus][]values.TunnelStatus{
	values.StatusPending:      {values.StatusConnecting, values.StatusError},
	values.StatusConnecting:   {values.StatusConnected, values.StatusError},
	values.StatusConnected:    {values.StatusDisconnected, values.StatusError},
	values.StatusDisconnected: {values.StatusConnecting, values.StatusClosed},
	values.StatusError:        {values.StatusConnecting, values.StatusClosed},
	values.StatusClosed:       {},
}

// AllowedTransition reports whether the registry permits moving a
// tunnel directly from from to to.
func AllowedTransition(from, to values.TunnelStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Registry is the live ordered map TunnelID -> Tunnel. maxTunnels <= 0
// means unbounded (the caller, typically the client facade, is
// expected to pass the configured cap).
//
// Path.of forbids the '*' character (internal/values.PathOf), so no
// Path ever contains a wildcard; the wildcard_match branch of spec
// §4.6's conflict predicate is therefore unreachable by construction
// and is not implemented here — exact-match and prefix-boundary
// overlap are the only two ways two HTTP specs on a shared domain can
// conflict in this model.
type Registry struct {
	mu         sync.RWMutex
	order      []values.TunnelID
	byID       map[values.TunnelID]model.Tunnel
	byDomain   map[string][]values.TunnelID
	remotePort map[int]values.TunnelID
	maxTunnels int
}

// New returns an empty Registry capped at maxTunnels (<=0 for
// unbounded).
func New(maxTunnels int) *Registry {
	return &Registry{
		byID:       make(map[values.TunnelID]model.Tunnel),
		byDomain:   make(map[string][]values.TunnelID),
		remotePort: make(map[int]values.TunnelID),
		maxTunnels: maxTunnels,
	}
}

// Insert admits t per spec §3/§4.6: id uniqueness, capacity, then
// kind-specific conflicts, scoped to only the tunnels that share a
// domain (or claim the same remote port) rather than a full scan.
func (r *Registry) Insert(t model.Tunnel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.Spec().ID()
	if _, exists := r.byID[id]; exists {
		return errs.E(opInsert, errs.KindConflict, "tunnel id \""+id.String()+"\" already exists")
	}
	if r.maxTunnels > 0 && len(r.order) >= r.maxTunnels {
		return errs.E(opInsert, errs.KindCapacity, "max_tunnels reached")
	}

	if httpSpec, ok := t.Spec().AsHTTP(); ok {
		for _, domain := range httpSpec.CustomDomains() {
			for _, candidateID := range r.byDomain[domain.String()] {
				candidate := r.byID[candidateID]
				candidateHTTP, _ := candidate.Spec().AsHTTP()
				if httpPathConflict(httpSpec, candidateHTTP) {
					return errs.E(opInsert, errs.KindConflict,
						"location overlaps tunnel \""+candidateID.String()+"\" on a shared domain")
				}
			}
		}
	}

	if tcpSpec, ok := t.Spec().AsTCP(); ok {
		if remote, has := tcpSpec.RemotePort(); has {
			if existing, taken := r.remotePort[remote.Int()]; taken {
				return errs.E(opInsert, errs.KindConflict,
					"remote_port already claimed by tunnel \""+existing.String()+"\"")
			}
		}
	}

	r.commit(t)
	return nil
}

func (r *Registry) commit(t model.Tunnel) {
	id := t.Spec().ID()
	r.order = append(r.order, id)
	r.byID[id] = t

	if httpSpec, ok := t.Spec().AsHTTP(); ok {
		for _, domain := range httpSpec.CustomDomains() {
			r.byDomain[domain.String()] = append(r.byDomain[domain.String()], id)
		}
	}
	if tcpSpec, ok := t.Spec().AsTCP(); ok {
		if remote, has := tcpSpec.RemotePort(); has {
			r.remotePort[remote.Int()] = id
		}
	}
}

// httpPathConflict decides conflict(a, b) restricted to the path
// dimension; the caller has already established a shared domain by
// construction (it only calls this for ids found via byDomain).
func httpPathConflict(a, b model.HTTPSpec) bool {
	if a.Path().String() == b.Path().String() {
		return true
	}
	return a.Path().IsPrefixBoundaryOf(b.Path()) || b.Path().IsPrefixBoundaryOf(a.Path())
}

// Transition moves the tunnel identified by id to status to, failing
// with errs.KindInvalidState if id is unknown or the transition isn't
// allowed (spec §4.6).
func (r *Registry) Transition(id values.TunnelID, to values.TunnelStatus, now time.Time) (model.Tunnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return model.Tunnel{}, errs.E(opTransition, errs.KindInvalidState, "no tunnel with id \""+id.String()+"\"")
	}
	if !AllowedTransition(t.Status(), to) {
		return model.Tunnel{}, errs.E(opTransition, errs.KindInvalidState,
			"cannot transition from "+t.Status().String()+" to "+to.String())
	}

	updated := t.WithStatus(to, now)
	r.byID[id] = updated
	return updated, nil
}

// Fail moves the tunnel identified by id into StatusError, carrying
// cause. It is subject to the same transition table as Transition.
func (r *Registry) Fail(id values.TunnelID, cause error, now time.Time) (model.Tunnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return model.Tunnel{}, errs.E(opTransition, errs.KindInvalidState, "no tunnel with id \""+id.String()+"\"")
	}
	if !AllowedTransition(t.Status(), values.StatusError) {
		return model.Tunnel{}, errs.E(opTransition, errs.KindInvalidState,
			"cannot transition from "+t.Status().String()+" to error")
	}

	updated := t.WithError(cause, now)
	r.byID[id] = updated
	return updated, nil
}

// Remove deletes the tunnel identified by id from the map and every
// index, returning the removed value.
func (r *Registry) Remove(id values.TunnelID) (model.Tunnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return model.Tunnel{}, errs.E(opRemove, errs.KindInvalidState, "no tunnel with id \""+id.String()+"\"")
	}

	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if httpSpec, ok := t.Spec().AsHTTP(); ok {
		for _, domain := range httpSpec.CustomDomains() {
			key := domain.String()
			ids := r.byDomain[key]
			for i, existing := range ids {
				if existing == id {
					r.byDomain[key] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
			if len(r.byDomain[key]) == 0 {
				delete(r.byDomain, key)
			}
		}
	}
	if tcpSpec, ok := t.Spec().AsTCP(); ok {
		if remote, has := tcpSpec.RemotePort(); has {
			delete(r.remotePort, remote.Int())
		}
	}

	return t, nil
}

// Get returns the tunnel for id and true, or the zero Tunnel and
// false if absent.
func (r *Registry) Get(id values.TunnelID) (model.Tunnel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// List returns every tunnel in insertion order. The result is a
// point-in-time copy; mutating it does not affect the registry.
func (r *Registry) List() []model.Tunnel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Tunnel, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// Len returns the number of tunnels currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Empty reports whether every index has been fully cleared — used by
// the insert/remove symmetry property test (spec §8).
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order) == 0 && len(r.byID) == 0 && len(r.byDomain) == 0 && len(r.remotePort) == 0
}
