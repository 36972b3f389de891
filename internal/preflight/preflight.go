package preflight

import (
	"asvprep/internal/config"
	"asvprep/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config: directory
// access for every path the pipeline writes into, plus external binaries.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory prefix", cfg.Paths.DataDirPrefix),
		CheckDirectoryAccess("Target directory", cfg.Paths.TargetDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	for _, status := range deps.Check(deps.For(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if result.Passed {
			result.Detail = status.Command
		}
		results = append(results, result)
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
