package bridge

import "errors"

var (
	// ErrFatal marks engine load failures. The caller is expected to stop.
	ErrFatal = errors.New("engine unavailable")
	// ErrDisconnected reports a script that deliberately produced no clip.
	// The previously committed snapshot is left in place.
	ErrDisconnected = errors.New("script disconnected")
	// ErrReload reports a reload that could not commit any clip, including a
	// failed fallback script.
	ErrReload = errors.New("reload failed")
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("handle closed")
)
