// Package logs tails the daemon log file for the CLI and the control socket.
//
// It reads with bounded memory, supports a negative offset for "last N lines"
// and a follow mode that polls for new lines until a deadline.
package logs
