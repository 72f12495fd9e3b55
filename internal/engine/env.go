package engine

import (
	"errors"
	"fmt"
)

// MinimumInterfaceVersion is the oldest environment interface the bridge
// accepts.
const MinimumInterfaceVersion = 7

var (
	ErrModuleNotFound     = errors.New("engine module not found")
	ErrEntryPointNotFound = errors.New("engine entry point not found")
	ErrNilEnvironment     = errors.New("engine returned no environment")
	ErrClosed             = errors.New("engine environment closed")
)

// ScriptError is a failure raised while importing or evaluating a script.
// It is recoverable: the bridge renders it into the stream.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// NewScriptError formats a ScriptError.
func NewScriptError(format string, args ...any) *ScriptError {
	return &ScriptError{Message: fmt.Sprintf(format, args...)}
}

// Environment is one live engine instance. Mutating calls (AddFunction,
// Invoke, Close) are not safe for concurrent use; callers serialize them.
type Environment interface {
	// AddFunction exposes fn to scripts under name.
	AddFunction(name string, fn Function) error
	// Invoke calls a named engine procedure such as "Import" or "Eval".
	// names runs parallel to args; empty entries are positional.
	Invoke(name string, args []Value, names []string) (Value, error)
	// NewVideoFrame allocates a frame owned by the environment.
	NewVideoFrame(vi VideoInfo) (*VideoFrame, error)
	Close() error
}

// Linkage is the process-level binding an environment installs for the
// host. It is revoked after the environment is closed and before the module
// is unloaded.
type Linkage interface {
	Revoke()
}

// Linker is implemented by environments that install a Linkage.
type Linker interface {
	Link() Linkage
}
