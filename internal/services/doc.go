// Package services defines shared utilities consumed by the relay pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item sequence numbers, pipeline steps, run
//     identifiers, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify per-item
//     failures (resolution failed, too large, transfer failed) so the
//     controller can report a reason without string matching.
//
// Use these helpers when wiring new collaborators so failure reporting stays
// uniform across the pipeline.
package services
