package registry

import (
	"testing"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

func mustPort(t *testing.T, n int) values.Port {
	t.Helper()
	p, err := values.PortOf(n)
	if err != nil {
		t.Fatalf("PortOf(%d): %v", n, err)
	}
	return p
}

func mustPath(t *testing.T, s string) values.Path {
	t.Helper()
	p, err := values.PathOf(s)
	if err != nil {
		t.Fatalf("PathOf(%q): %v", s, err)
	}
	return p
}

func mustDomain(t *testing.T, s string) values.Domain {
	t.Helper()
	d, err := values.DomainOf(s)
	if err != nil {
		t.Fatalf("DomainOf(%q): %v", s, err)
	}
	return d
}

func mustID(t *testing.T, s string) values.TunnelID {
	t.Helper()
	id, err := values.TunnelIDOf(s)
	if err != nil {
		t.Fatalf("TunnelIDOf(%q): %v", s, err)
	}
	return id
}

func httpTunnel(t *testing.T, id, path, domain string) model.Tunnel {
	t.Helper()
	spec, err := model.HTTPSpecOf(
		mustID(t, id),
		mustPort(t, 3000),
		mustPath(t, path),
		[]values.Domain{mustDomain(t, domain)},
		model.DefaultHTTPSpecOptions(),
	)
	if err != nil {
		t.Fatalf("HTTPSpecOf: %v", err)
	}
	return model.NewTunnel(model.SpecFromHTTP(spec), time.Unix(0, 0))
}

func tcpTunnel(t *testing.T, id string, remotePort *values.Port) model.Tunnel {
	t.Helper()
	spec, err := model.TCPSpecOf(mustID(t, id), mustPort(t, 22), remotePort)
	if err != nil {
		t.Fatalf("TCPSpecOf: %v", err)
	}
	return model.NewTunnel(model.SpecFromTCP(spec), time.Unix(0, 0))
}

func TestInsert_DuplicateID(t *testing.T) {
	r := New(0)
	if err := r.Insert(httpTunnel(t, "web", "app1", "a.example.com")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Insert(httpTunnel(t, "web", "app2", "b.example.com")); errs.KindOf(err) != errs.KindConflict {
		t.Errorf("expected KindConflict, got %v", err)
	}
}

func TestInsert_PathConflictIsSymmetric(t *testing.T) {
	a := httpTunnel(t, "a", "api", "shared.example.com")
	b := httpTunnel(t, "b", "api/v1", "shared.example.com")

	r1 := New(0)
	if err := r1.Insert(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err1 := r1.Insert(b)

	r2 := New(0)
	if err := r2.Insert(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err2 := r2.Insert(a)

	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("conflict(a,b) != conflict(b,a): err1=%v err2=%v", err1, err2)
	}
	if err1 == nil {
		t.Fatal("expected a conflict in both orderings")
	}
}

func TestInsert_TCPRemotePortConflict(t *testing.T) {
	remote := mustPort(t, 2222)
	r := New(0)
	if err := r.Insert(tcpTunnel(t, "ssh1", &remote)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Insert(tcpTunnel(t, "ssh2", &remote)); errs.KindOf(err) != errs.KindConflict {
		t.Errorf("expected KindConflict, got %v", err)
	}
}

func TestInsert_CapacityEnforcedWithoutSideEffect(t *testing.T) {
	r := New(1)
	if err := r.Insert(httpTunnel(t, "a", "app1", "a.example.com")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Insert(httpTunnel(t, "b", "app2", "b.example.com")); errs.KindOf(err) != errs.KindCapacity {
		t.Errorf("expected KindCapacity, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (rejected insert must not have side effects)", r.Len())
	}
}

func TestInsertRemoveSymmetry(t *testing.T) {
	r := New(0)
	tunnels := []model.Tunnel{
		httpTunnel(t, "a", "app1", "a.example.com"),
		httpTunnel(t, "b", "app2", "b.example.com"),
		httpTunnel(t, "c", "app3", "c.example.com"),
	}
	for _, tun := range tunnels {
		if err := r.Insert(tun); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// Remove in a different order than insertion.
	order := []string{"b", "a", "c"}
	for _, id := range order {
		if _, err := r.Remove(mustID(t, id)); err != nil {
			t.Fatalf("Remove(%q): %v", id, err)
		}
	}

	if !r.Empty() {
		t.Error("registry should be empty with all indices cleared after removing every tunnel")
	}
}

func TestTransition_StateMachine(t *testing.T) {
	r := New(0)
	tun := tcpTunnel(t, "ssh", nil)
	if err := r.Insert(tun); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	id := tun.Spec().ID()

	steps := []values.TunnelStatus{
		values.StatusConnecting,
		values.StatusConnected,
		values.StatusDisconnected,
		values.StatusClosed,
	}
	for _, to := range steps {
		if _, err := r.Transition(id, to, time.Now()); err != nil {
			t.Fatalf("Transition to %v: %v", to, err)
		}
	}

	if _, err := r.Transition(id, values.StatusConnecting, time.Now()); errs.KindOf(err) != errs.KindInvalidState {
		t.Errorf("expected KindInvalidState transitioning out of Closed, got %v", err)
	}
}

func TestTransition_ClosureWithinTwoSteps(t *testing.T) {
	allStates := []values.TunnelStatus{
		values.StatusPending,
		values.StatusConnecting,
		values.StatusConnected,
		values.StatusDisconnected,
		values.StatusError,
	}
	for _, from := range allStates {
		if reachesClosedWithin(from, 2) {
			continue
		}
		t.Errorf("state %v cannot reach Closed within 2 steps", from)
	}
}

func reachesClosedWithin(from values.TunnelStatus, steps int) bool {
	if from == values.StatusClosed {
		return true
	}
	if steps == 0 {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if reachesClosedWithin(next, steps-1) {
			return true
		}
	}
	return false
}

func TestTransition_UnknownID(t *testing.T) {
	r := New(0)
	if _, err := r.Transition(mustID(t, "ghost"), values.StatusConnecting, time.Now()); errs.KindOf(err) != errs.KindInvalidState {
		t.Errorf("expected KindInvalidState, got %v", err)
	}
}

func TestList_PreservesInsertionOrder(t *testing.T) {
	r := New(0)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if err := r.Insert(httpTunnel(t, id, "app", id+".example.com")); err != nil {
			t.Fatalf("Insert(%q): %v", id, err)
		}
	}
	listed := r.List()
	for i, want := range ids {
		if got := listed[i].Spec().ID().String(); got != want {
			t.Errorf("List()[%d] = %q, want %q", i, got, want)
		}
	}
}
