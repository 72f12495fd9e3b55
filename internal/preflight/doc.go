// Package preflight runs fast environment checks before a session starts:
// the engine module resolves, the script is readable, the log and remote
// control directories are writable, and the processor features engines may
// rely on are reported.
//
// Checks never fail hard; each returns a Result that the CLI renders.
package preflight
