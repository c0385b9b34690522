// Package executor runs tasks and produces their artifacts.
//
// An Executor receives the task spec and one Input per declared dependency.
// Required dependencies always arrive with their artifact attached; optional
// dependencies that failed or were skipped arrive as an explicit missing
// marker carrying the reason, so a degraded task can decide for itself how
// to proceed. Executors never touch run state: they return an artifact or an
// error, and the engine does the bookkeeping.
//
// Executors are resolved by name through a Registry. The builtins "noop" and
// "shell" keep the binary usable end to end; embedders register their own
// executors for anything beyond running commands.
//
// Usage:
//
//	reg := executor.DefaultRegistry()
//	err := reg.Register("deploy", executor.Func(
//		func(ctx context.Context, task *graph.TaskSpec, inputs executor.Inputs) (*artifact.Artifact, error) {
//			// ...
//		},
//	))
package executor
