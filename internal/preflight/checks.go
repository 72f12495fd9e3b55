package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"synthfilter/internal/config"
	"synthfilter/internal/engine"
)

// CheckEngine verifies that the engine module resolves. Plugin paths are
// opened, which loads them into the process.
func CheckEngine(name string) Result {
	const label = "Engine"
	module, err := engine.Open(name)
	if err != nil {
		return Result{Name: label, Detail: err.Error()}
	}
	return Result{Name: label, Passed: true, Detail: module.Name()}
}

// CheckScript verifies that the script exists and is readable.
func CheckScript(path string) Result {
	const label = "Script"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: label, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: label, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: label, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCPU reports the detected instruction set extensions. Engines fall
// back to portable code, so the check is informational.
func CheckCPU(features config.CPUFeatures) Result {
	var have, missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{{"AVX2", features.AVX2}, {"SSSE3", features.SSSE3}} {
		if f.ok {
			have = append(have, f.name)
		} else {
			missing = append(missing, f.name)
		}
	}
	detail := "none"
	if len(have) > 0 {
		detail = strings.Join(have, ", ")
	}
	if len(missing) > 0 {
		detail += " (missing: " + strings.Join(missing, ", ") + ")"
	}
	return Result{Name: "CPU features", Passed: len(missing) == 0, Optional: true, Detail: detail}
}
