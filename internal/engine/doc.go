// Package engine defines the contract between the filter bridge and an
// embedded frame-generation engine.
//
// An engine is distributed as a Module. Opening a module yields an
// Environment that evaluates user scripts, exposes host-registered functions
// to those scripts and produces Clips: frame sequences with a fixed
// VideoInfo. Values crossing the boundary are tagged (Value) so the bridge can
// tell a clip from a scalar, an undefined result, or the host-only Void
// sentinel without relying on dynamic typing.
//
// Modules are either compiled in and registered through Register (the
// built-in Starlark engine lives in the starlarkenv subpackage) or loaded at
// run time from a Go plugin that exports CreateScriptEnvironment.
package engine
