// Package bridge owns the script engine for the life of a filter instance.
//
// A Handle loads the engine module, creates one environment, and registers
// the FilterSource and FilterDisconnect functions scripts use to reach the
// upstream stream. Reload runs the import/classify/fallback/commit cycle
// every time the upstream format changes, publishing the committed clip,
// its descriptor, and the timeline figures together as one Snapshot.
//
// Script failures never escape Reload as errors: they are rendered into the
// stream by a generated fallback script. Only module-load failures are
// fatal, and those are reported through a Dialog before NewHandle returns.
package bridge
