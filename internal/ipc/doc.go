// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Every
// queue directive the Telegram operator can issue is also reachable here, so
// the relay can be driven from a shell on the host.
package ipc
