// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Gantry.
//
// This package enables loose coupling between the engine, orchestrator, CLI,
// and TUI by allowing them to communicate through events rather than direct
// method calls. Components can publish events without knowing who will receive
// them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Run Lifecycle:
//   - [RunStartedEvent]: Emitted when a run begins executing
//   - [RunCompletedEvent]: Emitted when a run reaches a terminal status
//
// Task Lifecycle:
//   - [TaskStartedEvent]: Emitted when a worker begins executing a task
//   - [TaskSucceededEvent]: Emitted when a task completes successfully
//   - [TaskFailedEvent]: Emitted when a task exhausts its attempts
//   - [TaskSkippedEvent]: Emitted when a task is skipped
//
// Phase and Gate Events:
//   - [PhaseCompletedEvent]: Emitted when every task in a phase is terminal
//   - [GateEnteredEvent]: Emitted when a run pauses at a checkpoint gate
//   - [GateResolvedEvent]: Emitted when a pending gate receives a decision
//
// Artifact Events:
//   - [ArtifactStoredEvent]: Emitted when a task artifact becomes visible
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("task.succeeded", func(e event.Event) {
//	    succeeded := e.(event.TaskSucceededEvent)
//	    log.Printf("Task %s finished in %v", succeeded.TaskID, succeeded.Duration)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewTaskStartedEvent("run-1", "compile", 0, "shell", 1))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("gate.resolved", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - run.started, run.completed
//   - task.started, task.succeeded, task.failed, task.skipped
//   - phase.completed
//   - gate.entered, gate.resolved
//   - artifact.stored
package event
