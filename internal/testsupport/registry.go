package testsupport

import (
	"path/filepath"
	"testing"

	"synthfilter/internal/registry"
)

// MustOpenRegistry opens a settings registry in a temp directory and
// registers cleanup.
func MustOpenRegistry(t testing.TB) *registry.Store {
	t.Helper()

	store, err := registry.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
