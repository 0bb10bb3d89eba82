// Package workers runs the client's background jobs.
// It defines the Worker interface, a Workers aggregate that starts them
// together, and the periodic sync worker.
package workers

// Worker is the interface implemented by every background worker.
// It defines a single Run method that starts the worker's execution.
//
// Implementations either block for the duration of their work or spawn
// goroutines internally, as SyncWorker does.
type Worker interface {
	Run()
}
