// Package commands interprets operator chat input.
//
// Slash commands map onto controller directives; plain links and uploaded
// text files are normalized and enqueued. Every call returns a Reply with
// the text to send back, optionally carrying a checkpoint to attach.
package commands
