// Package starlarkenv is the built-in script engine. Scripts are Starlark
// programs whose result is the global `last`; a trailing bare expression is
// bound to `last` implicitly.
//
// Importing the package registers the engine under ModuleName.
package starlarkenv
