// Package main hosts the linkrelay CLI entrypoint and command graph.
//
// The Cobra command tree starts and stops the daemon, and translates queue
// steering (add, pause, resume, skip, caption, clear, export) into IPC calls
// over the daemon's Unix socket. Status, history and log views render from
// the same socket, falling back to local checks when the daemon is offline.
// The hidden "daemon" command runs the relay in the foreground and is what
// "start" launches.
package main
