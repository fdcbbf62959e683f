package ocr

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"dailycraft/internal/deps"
	"dailycraft/internal/services"
)

// ResolveScript locates the worker script. Absolute paths are used as given;
// a relative path is joined with each of dirs in turn and the first regular
// file found wins. An empty script resolves to "" so the worker can be a
// standalone executable.
func ResolveScript(script string, dirs []string) (string, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return "", nil
	}
	if filepath.IsAbs(script) {
		if err := checkScript(script); err != nil {
			return "", services.Wrap(ErrWorkerUnavailable, "ocr", "resolve", "script "+script, err)
		}
		return script, nil
	}

	tried := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		candidate := filepath.Join(dir, script)
		if checkScript(candidate) == nil {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}
	if len(tried) == 0 {
		return "", services.Wrap(ErrWorkerUnavailable, "ocr", "resolve", "script "+script+" is relative and no search directory is known", nil)
	}
	return "", services.Wrap(ErrWorkerUnavailable, "ocr", "resolve",
		fmt.Sprintf("script %s not found (tried %s)", script, strings.Join(tried, ", ")), nil)
}

func checkScript(path string) error {
	status := deps.Check([]deps.Requirement{{Name: "script", File: path}})[0]
	if !status.Available {
		return errors.New(status.Detail)
	}
	return nil
}
