package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScript writes src to dir/name and returns the path.
func WriteScript(t testing.TB, dir, name, src string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
