package gate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
)

// Decision is the outcome of a resolved gate.
type Decision string

const (
	// DecisionApproved lets the run proceed into the next phase.
	DecisionApproved Decision = "approved"
	// DecisionRejected aborts the run.
	DecisionRejected Decision = "rejected"
	// DecisionTimedOut is recorded when the gate's timeout expires; the run
	// treats it exactly like a rejection.
	DecisionTimedOut Decision = "timed-out"
)

// State describes where a gate is in its lifecycle.
type State string

const (
	// StateIdle means the guarded phase has not finished yet.
	StateIdle State = "idle"
	// StatePending means the gate is awaiting a decision.
	StatePending State = "pending"
	// StateResolved means a decision has been recorded.
	StateResolved State = "resolved"
)

// Resolution records how and by whom a gate was decided.
type Resolution struct {
	Decision   Decision  `json:"decision"`
	ResolvedBy string    `json:"resolved_by"`
	Comment    string    `json:"comment,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Approved reports whether the resolution lets the run continue.
func (r Resolution) Approved() bool {
	return r.Decision == DecisionApproved
}

// Snapshot is a point-in-time copy of a gate's state for status surfaces.
type Snapshot struct {
	ID          string        `json:"id"`
	AfterPhase  int           `json:"after_phase"`
	AutoApprove bool          `json:"auto_approve,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	State       State         `json:"state"`
	EnteredAt   time.Time     `json:"entered_at"`
	Resolution  *Resolution   `json:"resolution,omitempty"`
}

// Gate is a checkpoint at a phase boundary. It starts idle, becomes pending
// when the guarded phase finishes (Enter), and resolves exactly once to
// approved, rejected, or timed-out.
//
// All methods are safe for concurrent use. Decision blocks; everything else
// returns immediately.
type Gate struct {
	id      string
	phase   int
	auto    bool
	timeout time.Duration

	mu         sync.Mutex
	state      State
	enteredAt  time.Time
	resolution *Resolution
	timer      *time.Timer
	done       chan struct{}
}

// New creates an idle gate guarding the given phase. A zero timeout means
// the gate waits indefinitely. Auto-approve gates resolve themselves the
// moment they are entered.
func New(id string, afterPhase int, autoApprove bool, timeout time.Duration) *Gate {
	return &Gate{
		id:      id,
		phase:   afterPhase,
		auto:    autoApprove,
		timeout: timeout,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// ID returns the gate's identifier.
func (g *Gate) ID() string { return g.id }

// AfterPhase returns the phase this gate guards.
func (g *Gate) AfterPhase() int { return g.phase }

// Enter moves the gate from idle to pending and arms the timeout, if any.
// Auto-approve gates resolve immediately with resolver "auto". Entering a
// gate twice is an invalid transition.
func (g *Gate) Enter() error {
	g.mu.Lock()
	if g.state != StateIdle {
		state := g.state
		g.mu.Unlock()
		return fmt.Errorf("%w: gate %s already %s", errors.ErrInvalidTransition, g.id, state)
	}
	g.state = StatePending
	g.enteredAt = time.Now()

	if g.auto {
		g.resolveLocked(DecisionApproved, "auto", "")
		g.mu.Unlock()
		return nil
	}
	if g.timeout > 0 {
		g.timer = time.AfterFunc(g.timeout, g.expire)
	}
	g.mu.Unlock()
	return nil
}

// Resolve records an approval or rejection for a pending gate. Resolving a
// gate that is not pending fails with ErrGateNotPending; resolving twice
// fails with ErrGateResolved.
func (g *Gate) Resolve(decision Decision, by, comment string) error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return errors.NewValidationError(
			fmt.Sprintf("cannot resolve gate to %q", decision)).
			WithField("decision")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StatePending:
		g.resolveLocked(decision, by, comment)
		return nil
	case StateResolved:
		return fmt.Errorf("%w: gate %s is %s", errors.ErrGateResolved, g.id, g.resolution.Decision)
	default:
		return fmt.Errorf("%w: gate %s", errors.ErrGateNotPending, g.id)
	}
}

// Decision blocks until the gate is resolved or the context is done. It may
// be called before Enter and by any number of waiters.
func (g *Gate) Decision(ctx context.Context) (Resolution, error) {
	select {
	case <-g.done:
		g.mu.Lock()
		res := *g.resolution
		g.mu.Unlock()
		return res, nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

// Snapshot returns a copy of the gate's current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		ID:          g.id,
		AfterPhase:  g.phase,
		AutoApprove: g.auto,
		Timeout:     g.timeout,
		State:       g.state,
		EnteredAt:   g.enteredAt,
	}
	if g.resolution != nil {
		res := *g.resolution
		snap.Resolution = &res
	}
	return snap
}

// expire is the timer callback. Losing the race against Resolve is fine;
// the state check makes the late arrival a no-op.
func (g *Gate) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StatePending {
		return
	}
	g.resolveLocked(DecisionTimedOut, "timeout", "")
}

// resolveLocked finalizes the gate. Caller holds g.mu and has verified the
// gate is pending.
func (g *Gate) resolveLocked(decision Decision, by, comment string) {
	g.state = StateResolved
	g.resolution = &Resolution{
		Decision:   decision,
		ResolvedBy: by,
		Comment:    comment,
		ResolvedAt: time.Now(),
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	close(g.done)
}

// Set is the fixed collection of a run's gates, indexed by ID and by the
// phase each gate guards. It is built once at run start and never mutated,
// so lookups need no locking; the gates themselves handle their own
// synchronization.
type Set struct {
	byID    map[string]*Gate
	byPhase map[int]*Gate
	ordered []*Gate
}

// NewSet builds a set from the given gates. Plan validation guarantees at
// most one gate per phase and unique IDs.
func NewSet(gates ...*Gate) *Set {
	s := &Set{
		byID:    make(map[string]*Gate, len(gates)),
		byPhase: make(map[int]*Gate, len(gates)),
		ordered: make([]*Gate, len(gates)),
	}
	copy(s.ordered, gates)
	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].phase < s.ordered[j].phase
	})
	for _, g := range s.ordered {
		s.byID[g.id] = g
		s.byPhase[g.phase] = g
	}
	return s
}

// Get returns the gate with the given ID.
func (s *Set) Get(id string) (*Gate, bool) {
	g, ok := s.byID[id]
	return g, ok
}

// After returns the gate guarding the given phase, if any.
func (s *Set) After(phase int) (*Gate, bool) {
	g, ok := s.byPhase[phase]
	return g, ok
}

// Len returns the number of gates in the set.
func (s *Set) Len() int {
	return len(s.ordered)
}

// Pending returns the gates currently awaiting a decision, in phase order.
func (s *Set) Pending() []*Gate {
	var pending []*Gate
	for _, g := range s.ordered {
		if g.Snapshot().State == StatePending {
			pending = append(pending, g)
		}
	}
	return pending
}

// Snapshots returns a snapshot of every gate, in phase order.
func (s *Set) Snapshots() []Snapshot {
	snaps := make([]Snapshot, 0, len(s.ordered))
	for _, g := range s.ordered {
		snaps = append(snaps, g.Snapshot())
	}
	return snaps
}
