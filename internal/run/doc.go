// Package run holds the runtime state of an executing plan: one task
// instance per graph task, the current phase pointer, the checkpoint gates
// already traversed, and the overall run status.
//
// The core type is [Run], which binds a validated [graph.Graph] to a map of
// [TaskInstance] records and validates every status transition. The engine
// is the only writer while a run executes; concurrent readers get consistent
// copies through [Run.Snapshot] and [Run.Task].
//
// Ready-set computation and cascading skips live here because they are pure
// functions of instance state: a task is ready when every required
// dependency succeeded and every optional dependency is terminal, and a
// failed or skipped task immediately skips its transitive required
// dependents with the originating ancestor recorded as the cause.
//
// [Store] persists snapshots as run.json documents under a data directory
// and discovers past runs for listings. [Lock] marks a run directory as
// owned by a live process so a second orchestrator cannot attach to it;
// stale locks from crashed owners are detected by PID and cleaned.
//
// Usage:
//
//	r := run.New(run.NewID(), "release-build", g)
//	r.Start()
//	for _, id := range r.ReadyTasks(0) {
//	    r.MarkReady(id)
//	    // ... dispatch ...
//	}
package run
