// Package preflight provides readiness checks for the Bot API, external
// binaries, and the directories linkrelay writes to.
//
// The daemon runs RunAll at startup and logs failures as warnings; the CLI
// "linkrelay status" command reuses the individual checks for display.
package preflight
