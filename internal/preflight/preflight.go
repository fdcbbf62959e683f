package preflight

import (
	"context"

	"dailycraft/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. The extraction worker is
// only checked when it is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Diary directory", cfg.Paths.DiaryDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLLM(ctx, "Chat completion API", cfg.GetLLM()),
	}
	if cfg.OCR.Enabled {
		results = append(results, CheckExtractionWorker(cfg))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
