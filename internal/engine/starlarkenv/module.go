package starlarkenv

import (
	"errors"
	"fmt"
	"sync/atomic"

	"synthfilter/internal/engine"
)

const (
	// ModuleName is the name the engine is registered under.
	ModuleName = "starlark"
	// InterfaceVersion is the environment interface this engine implements.
	InterfaceVersion = 8
	// Version is reported by the VersionString builtin.
	Version = "Synthfilter Starlark engine 1.2"
)

func init() {
	engine.Register(ModuleName, &Module{})
}

// Module creates Starlark environments. It tracks outstanding linkages so
// an out-of-order unload is reported instead of silently ignored.
type Module struct {
	links atomic.Int64
}

func (m *Module) Name() string { return ModuleName }

// CreateEnvironment returns a new environment. It fails when minVersion is
// newer than InterfaceVersion.
func (m *Module) CreateEnvironment(minVersion int) (engine.Environment, error) {
	if minVersion > InterfaceVersion {
		return nil, fmt.Errorf("starlark engine implements interface %d, need %d", InterfaceVersion, minVersion)
	}
	return newEnvironment(m), nil
}

// Unload fails while an environment linkage is still installed.
func (m *Module) Unload() error {
	if n := m.links.Load(); n > 0 {
		return fmt.Errorf("starlark module unloaded with %d linkage(s) installed", n)
	}
	return nil
}

type linkage struct {
	module  *Module
	revoked atomic.Bool
}

func (l *linkage) Revoke() {
	if l.revoked.CompareAndSwap(false, true) {
		l.module.links.Add(-1)
	}
}

var errNotClip = errors.New("not a clip")
