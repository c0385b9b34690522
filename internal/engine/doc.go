// Package engine drives a run from pending to a terminal status.
//
// The engine walks the graph's phases in order. Inside a phase it dispatches
// ready tasks onto a bounded worker pool and consumes their results from a
// single completion loop; that loop is the only place scheduling decisions
// are made and the only caller of the snapshot store, so run state never has
// two writers. Workers execute, persist their artifact, and report back.
//
// Failure semantics follow the task's Fatal flag. A non-fatal failure skips
// the failed task's required dependents (transitively, recording the
// originating task as the cause) and the run keeps going. A fatal failure
// cancels the phase's in-flight siblings, discards their late results, skips
// everything unfinished, and aborts the run. After each phase the engine
// evaluates the phase's checkpoint gate, if any, blocking until a decision
// or cancellation arrives.
//
// Usage:
//
//	eng, err := engine.New(r, engine.Deps{
//		Store:     store,
//		Artifacts: artifacts,
//		Registry:  executor.DefaultRegistry(),
//		Gates:     gates,
//	})
//	if err != nil {
//		return err
//	}
//	result, err := eng.Run(ctx)
package engine
