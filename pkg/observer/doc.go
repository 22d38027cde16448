// Package observer provides an event-driven observer pattern for inference
// run monitoring.
//
// # Overview
//
// The observer package lets callers monitor a Session's run lifecycle and
// per-node execution without coupling the engine to a specific logging or
// metrics backend. Observers receive Events through a single OnEvent
// method; Manager fans an event out to every registered Observer
// asynchronously.
//
// # Observer Interface
//
//	type Observer interface {
//	    OnEvent(ctx context.Context, event Event)
//	}
//
// # Events
//
// Run-level: EventRunStart, EventRunEnd.
// Node-level: EventNodeStart, EventNodeEnd, EventNodeSuccess, EventNodeFailure.
//
// Each Event carries a RunID, optional SessionID, and for node events a
// NodeID and OpType, plus timing and an optional Result/Error.
//
// # Basic Usage
//
//	import "github.com/luocf/inferunity/pkg/observer"
//
//	mgr := observer.NewManager()
//	mgr.Register(observer.NewConsoleObserver())
//
//	mgr.Notify(ctx, observer.Event{
//	    Type:   observer.EventRunStart,
//	    Status: observer.StatusStarted,
//	    RunID:  runID,
//	})
//
// # Built-in Observers
//
// NoOpObserver ignores all events and is the default when none is
// configured. ConsoleObserver logs events through a Logger (NoOpLogger or
// DefaultLogger, or a caller-supplied implementation).
//
// # Thread Safety
//
// Manager.Notify dispatches to each observer in its own goroutine and
// recovers observer panics so one misbehaving observer cannot affect
// another or the run itself. Observer implementations must be safe for
// concurrent use.
package observer
