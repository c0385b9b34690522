// Package gate provides checkpoint gates that hold a run at phase
// boundaries until a human (or the gate itself) decides how to proceed.
//
// A gate guards the boundary after one phase. When every task in that phase
// has reached a terminal state, the engine enters the gate and blocks on its
// decision. The gate resolves exactly once:
//
//   - approved: the run proceeds into the next phase
//   - rejected: the run aborts
//   - timed-out: the optional timeout expired; treated exactly like a
//     rejection
//
// Auto-approve gates resolve themselves at entry, which keeps unattended
// runs moving while still recording that the boundary was crossed.
//
// The core types are [Gate], a single checkpoint's state machine, and [Set],
// the fixed collection of a run's gates indexed by ID and phase.
//
// # Usage
//
//	g := gate.New("phase-1", 1, false, 30*time.Minute)
//
//	// The engine enters the gate once phase 1 is terminal.
//	err := g.Enter()
//
//	// A control operation resolves it...
//	err = g.Resolve(gate.DecisionApproved, "alice", "metrics look good")
//
//	// ...while the engine blocks on the outcome.
//	res, err := g.Decision(ctx)
//
// # Thread Safety
//
// All methods on [Gate] are safe for concurrent use. [Set] is immutable
// after construction and needs no locking.
package gate
