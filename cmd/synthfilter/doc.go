// Package main hosts the synthfilter CLI entrypoint and command graph.
//
// The Cobra command tree drives a filter session against a synthetic
// upstream, inspects formats and descriptors, runs preflight checks, talks
// to a running session over the remote control socket, and edits settings.
// Configuration resolution and socket discovery live in commandContext so
// subcommands only deal with presentation.
package main
