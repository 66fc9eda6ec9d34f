// Package queue holds the relay's pending links and the operator's staged
// directives.
//
// A Queue is a FIFO of entries plus two counters: pending skips and a staged
// caption with a remaining-use count. Skip and caption directives are lazy;
// they do not touch entries when applied and are resolved one unit at a time
// as entries are dequeued, so they carry over to links enqueued later.
//
// Queue is not safe for concurrent use. The pipeline controller owns the only
// instance and mutates it from a single goroutine.
package queue
