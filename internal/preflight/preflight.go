package preflight

import (
	"path/filepath"

	"synthfilter/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional checks are informational and do not fail the run.
	Optional bool
}

// RunAll executes the checks that apply to cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckEngine(cfg.Engine)}

	if cfg.ScriptPath != "" {
		results = append(results, CheckScript(cfg.ScriptPath))
	} else {
		results = append(results, Result{Name: "Script", Optional: true, Detail: "not configured (stream is disconnected)"})
	}

	if cfg.Logging.File != "" {
		results = append(results, CheckDirectoryAccess("Log directory", filepath.Dir(cfg.Logging.File)))
	}

	if cfg.RemoteControl {
		results = append(results, CheckDirectoryAccess("Remote control directory", filepath.Dir(cfg.RemoteSocket)))
	}

	results = append(results, CheckCPU(config.DetectCPU()))
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
