// Package daemon coordinates the long-running linkrelay process.
//
// It wires the pipeline controller, the Telegram bot loop, the notification
// outbox and the history store into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon also exposes the
// directive surface used by the control socket.
//
// Keep orchestration logic here: relay steps live in workflow while the
// daemon focuses on startup, shutdown, and high level coordination.
package daemon
