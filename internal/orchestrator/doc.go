// Package orchestrator is the control surface over runs. It starts runs,
// answers status queries, resolves gates, and aborts, for both the runs it
// owns in-process and runs owned by other processes.
//
// Each started run gets a run directory under the data dir holding the
// snapshot (run.json), a PID-liveness lock (run.lock), a structured log
// (gantry.log), and a control directory. Control operations routed at a run
// another process owns are written as drop files into control/; the owning
// orchestrator's fsnotify watcher picks them up and applies them. Aborting
// a run whose owner has died rewrites the snapshot directly after cleaning
// the stale lock.
//
// Usage:
//
//	o, err := orchestrator.New(orchestrator.Options{DataDir: dir})
//	if err != nil { ... }
//	defer o.Close()
//
//	runID, err := o.Start(ctx, p)
//	if err != nil { ... }
//	result, err := o.Wait(runID)
package orchestrator
