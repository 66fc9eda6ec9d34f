// Package workflow drives the relay pipeline.
//
// The Controller owns the job queue on a single loop goroutine. Directives
// (enqueue, pause, resume, skip, caption, clear, remaining, status) are sent
// to the loop and applied atomically in arrival order. At most one item is in
// flight: the loop dequeues it, consumes any pending skip, and hands it to a
// worker goroutine that resolves renditions, selects the best one under the
// size ceiling, asks the loop for the staged caption, and delivers it through
// the transfer sink. The worker reports the outcome back to the loop, which
// publishes events, takes periodic checkpoints, and dequeues the next item
// while the run flag is set.
//
// Pausing clears the run flag without touching the in-flight item; the
// current transfer always runs to completion.
package workflow
