// Package services defines shared utilities used by the bridge, the delivery
// stage and the command line tools.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into exit codes (configuration vs engine vs generic failure).
package services
