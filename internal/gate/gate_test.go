package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
)

func TestGate_Enter_BecomesPending(t *testing.T) {
	g := New("phase-0", 0, false, 0)

	if got := g.Snapshot().State; got != StateIdle {
		t.Fatalf("State before Enter = %q, want idle", got)
	}

	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	snap := g.Snapshot()
	if snap.State != StatePending {
		t.Errorf("State = %q, want pending", snap.State)
	}
	if snap.EnteredAt.IsZero() {
		t.Error("EnteredAt is zero after Enter")
	}
	if snap.Resolution != nil {
		t.Errorf("Resolution = %+v, want nil while pending", snap.Resolution)
	}
}

func TestGate_Enter_Twice(t *testing.T) {
	g := New("phase-0", 0, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	if err := g.Enter(); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("second Enter() error = %v, want ErrInvalidTransition", err)
	}
}

func TestGate_Resolve_Approved(t *testing.T) {
	g := New("phase-1", 1, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	if err := g.Resolve(DecisionApproved, "alice", "metrics look good"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	res, err := g.Decision(context.Background())
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if res.Decision != DecisionApproved {
		t.Errorf("Decision = %q, want approved", res.Decision)
	}
	if !res.Approved() {
		t.Error("Approved() = false, want true")
	}
	if res.ResolvedBy != "alice" {
		t.Errorf("ResolvedBy = %q, want alice", res.ResolvedBy)
	}
	if res.Comment != "metrics look good" {
		t.Errorf("Comment = %q, want the recorded comment", res.Comment)
	}
	if res.ResolvedAt.IsZero() {
		t.Error("ResolvedAt is zero")
	}
}

func TestGate_Resolve_Rejected(t *testing.T) {
	g := New("phase-1", 1, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	if err := g.Resolve(DecisionRejected, "bob", "numbers are off"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	res, err := g.Decision(context.Background())
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if res.Approved() {
		t.Error("Approved() = true, want false for rejection")
	}
}

func TestGate_Resolve_BeforeEnter(t *testing.T) {
	g := New("phase-0", 0, false, 0)

	if err := g.Resolve(DecisionApproved, "alice", ""); !errors.Is(err, errors.ErrGateNotPending) {
		t.Errorf("Resolve() on idle gate error = %v, want ErrGateNotPending", err)
	}
}

func TestGate_Resolve_Twice(t *testing.T) {
	g := New("phase-0", 0, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	if err := g.Resolve(DecisionApproved, "alice", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if err := g.Resolve(DecisionRejected, "bob", ""); !errors.Is(err, errors.ErrGateResolved) {
		t.Errorf("second Resolve() error = %v, want ErrGateResolved", err)
	}
}

func TestGate_Resolve_TimedOutIsInternalOnly(t *testing.T) {
	g := New("phase-0", 0, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	var vErr *errors.ValidationError
	if err := g.Resolve(DecisionTimedOut, "alice", ""); !errors.As(err, &vErr) {
		t.Errorf("Resolve(timed-out) error = %v, want validation error", err)
	}
}

func TestGate_AutoApprove(t *testing.T) {
	g := New("phase-0", 0, true, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	// Decision must return without any external resolution.
	res, err := g.Decision(context.Background())
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if res.Decision != DecisionApproved {
		t.Errorf("Decision = %q, want approved", res.Decision)
	}
	if res.ResolvedBy != "auto" {
		t.Errorf("ResolvedBy = %q, want auto", res.ResolvedBy)
	}

	if state := g.Snapshot().State; state != StateResolved {
		t.Errorf("State = %q, want resolved", state)
	}
}

func TestGate_Timeout(t *testing.T) {
	g := New("phase-0", 0, false, 10*time.Millisecond)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := g.Decision(ctx)
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if res.Decision != DecisionTimedOut {
		t.Errorf("Decision = %q, want timed-out", res.Decision)
	}
	if res.ResolvedBy != "timeout" {
		t.Errorf("ResolvedBy = %q, want timeout", res.ResolvedBy)
	}
	// Timed-out carries the same consequence as rejection.
	if res.Approved() {
		t.Error("Approved() = true, want false for a timed-out gate")
	}

	// The decision must have been recorded exactly once.
	if err := g.Resolve(DecisionApproved, "alice", ""); !errors.Is(err, errors.ErrGateResolved) {
		t.Errorf("Resolve() after timeout error = %v, want ErrGateResolved", err)
	}
}

func TestGate_ResolveBeatsTimeout(t *testing.T) {
	g := New("phase-0", 0, false, 5*time.Second)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	if err := g.Resolve(DecisionApproved, "alice", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	res, err := g.Decision(context.Background())
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if res.Decision != DecisionApproved {
		t.Errorf("Decision = %q, want approved to win over the armed timer", res.Decision)
	}
}

func TestGate_Decision_ContextCanceled(t *testing.T) {
	g := New("phase-0", 0, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := g.Decision(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Decision() error = %v, want deadline exceeded", err)
	}

	// The gate itself is untouched by a waiter giving up.
	if state := g.Snapshot().State; state != StatePending {
		t.Errorf("State = %q, want still pending", state)
	}
}

func TestGate_Decision_MultipleWaiters(t *testing.T) {
	g := New("phase-0", 0, false, 0)
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	const waiters = 5
	results := make(chan Resolution, waiters)
	var wg sync.WaitGroup
	for range waiters {
		wg.Go(func() {
			res, err := g.Decision(context.Background())
			if err != nil {
				t.Errorf("Decision() error = %v", err)
				return
			}
			results <- res
		})
	}

	if err := g.Resolve(DecisionApproved, "alice", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	wg.Wait()
	close(results)

	count := 0
	for res := range results {
		count++
		if res.Decision != DecisionApproved {
			t.Errorf("waiter saw %q, want approved", res.Decision)
		}
	}
	if count != waiters {
		t.Errorf("resolved waiters = %d, want %d", count, waiters)
	}
}

func TestGate_Decision_BeforeEnter(t *testing.T) {
	g := New("phase-0", 0, false, 0)

	got := make(chan Resolution, 1)
	go func() {
		res, err := g.Decision(context.Background())
		if err != nil {
			t.Errorf("Decision() error = %v", err)
			return
		}
		got <- res
	}()

	if err := g.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	if err := g.Resolve(DecisionApproved, "alice", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	select {
	case res := <-got:
		if res.Decision != DecisionApproved {
			t.Errorf("Decision = %q, want approved", res.Decision)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never unblocked")
	}
}

func TestSet_Lookups(t *testing.T) {
	a := New("phase-0", 0, false, 0)
	b := New("final-review", 2, true, 0)
	s := NewSet(b, a)

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	g, ok := s.Get("final-review")
	if !ok || g != b {
		t.Errorf("Get(final-review) = %v, %v; want the final gate", g, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) found a gate, want none")
	}

	g, ok = s.After(0)
	if !ok || g != a {
		t.Errorf("After(0) = %v, %v; want the phase-0 gate", g, ok)
	}
	if _, ok := s.After(1); ok {
		t.Error("After(1) found a gate, want none")
	}
}

func TestSet_PendingAndSnapshots(t *testing.T) {
	early := New("phase-0", 0, false, 0)
	mid := New("phase-1", 1, false, 0)
	late := New("phase-2", 2, false, 0)
	s := NewSet(late, early, mid)

	if err := early.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	if err := early.Resolve(DecisionApproved, "alice", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := mid.Enter(); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	pending := s.Pending()
	if len(pending) != 1 || pending[0] != mid {
		t.Errorf("Pending() = %v, want just the phase-1 gate", pending)
	}

	snaps := s.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("len(Snapshots()) = %d, want 3", len(snaps))
	}
	wantOrder := []string{"phase-0", "phase-1", "phase-2"}
	for i, want := range wantOrder {
		if snaps[i].ID != want {
			t.Errorf("Snapshots()[%d].ID = %q, want %q (phase order)", i, snaps[i].ID, want)
		}
	}
	if snaps[0].State != StateResolved || snaps[1].State != StatePending || snaps[2].State != StateIdle {
		t.Errorf("states = %q/%q/%q, want resolved/pending/idle",
			snaps[0].State, snaps[1].State, snaps[2].State)
	}
}
