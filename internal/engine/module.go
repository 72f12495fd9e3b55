package engine

import (
	"fmt"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"
)

// EntryPointName is the symbol a plugin module must export. Its type must be
// func(int) (Environment, error).
const EntryPointName = "CreateScriptEnvironment"

// Module is a loaded engine library.
type Module interface {
	Name() string
	// CreateEnvironment returns a fresh environment supporting at least
	// minVersion of the interface. A nil environment with a nil error is
	// treated as a creation failure by the caller.
	CreateEnvironment(minVersion int) (Environment, error)
	// Unload releases the library. It is called once, after every
	// environment created from it has been closed.
	Unload() error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Module{}
)

// Register makes a compiled-in module available under name. It panics when
// called twice with the same name, like database/sql.Register.
func Register(name string, module Module) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if module == nil {
		panic("engine: Register module is nil")
	}
	if _, dup := registry[name]; dup {
		panic("engine: Register called twice for module " + name)
	}
	registry[name] = module
}

// Modules lists the registered module names.
func Modules() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves a module by name. Names that look like a file path are
// loaded as Go plugins; anything else must have been registered.
func Open(name string) (Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty module name", ErrModuleNotFound)
	}
	if isPluginPath(name) {
		return openPlugin(name)
	}
	registryMu.RLock()
	module, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrModuleNotFound, name, strings.Join(Modules(), ", "))
	}
	return module, nil
}

func isPluginPath(name string) bool {
	return strings.HasSuffix(name, ".so") || strings.ContainsRune(name, filepath.Separator)
}

type pluginModule struct {
	path   string
	create func(int) (Environment, error)
}

func openPlugin(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModuleNotFound, path, err)
	}
	sym, err := p.Lookup(EntryPointName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrEntryPointNotFound, EntryPointName, path)
	}
	switch fn := sym.(type) {
	case func(int) (Environment, error):
		return &pluginModule{path: path, create: fn}, nil
	case *func(int) (Environment, error):
		return &pluginModule{path: path, create: *fn}, nil
	default:
		return nil, fmt.Errorf("%w: %s in %s has type %T", ErrEntryPointNotFound, EntryPointName, path, sym)
	}
}

func (m *pluginModule) Name() string { return m.path }

func (m *pluginModule) CreateEnvironment(minVersion int) (Environment, error) {
	return m.create(minVersion)
}

// Unload is a no-op: the Go runtime cannot close a plugin once opened.
func (m *pluginModule) Unload() error { return nil }
