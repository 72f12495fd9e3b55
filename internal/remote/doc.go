// Package remote exposes a running filter session over JSON-RPC on a Unix
// socket and ships the matching client used by the CLI.
//
// Only one server may own a socket path at a time; a flock lock file next to
// the socket enforces that. The service reports the committed script state
// and lets clients point the session at another script and reload it.
package remote
