package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dailycraft/internal/api"
	"dailycraft/internal/config"
	"dailycraft/internal/deps"
	"dailycraft/internal/services/llm"
	"dailycraft/internal/services/ocr"
)

// CheckLLM verifies that the chat-completion API is reachable and the key is
// accepted. It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or DAILYCRAFT_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (model %s)", cfg.BaseURL, cfg.Model)}
}

// CheckExtractionWorker verifies the interpreter exists and the worker script
// resolves to a file.
func CheckExtractionWorker(cfg *config.Config) Result {
	const name = "Extraction worker"

	var problems []string
	statuses := deps.Check([]deps.Requirement{{Name: "interpreter", Command: cfg.OCR.Command}})
	for _, m := range deps.Missing(statuses) {
		problems = append(problems, m.Name+": "+m.Detail)
	}
	script, err := ocr.ResolveScript(cfg.OCR.Script, cfg.ScriptSearchDirs())
	if err != nil {
		problems = append(problems, "script: "+err.Error())
	}
	if len(problems) > 0 {
		return Result{Name: name, Detail: strings.Join(problems, "; ")}
	}
	return Result{Name: name, Passed: true, Detail: strings.TrimSpace(fmt.Sprintf("%s %s", statuses[0].Detail, script))}
}

// CheckDaemon reports whether a daemon answers on api.bind.
func CheckDaemon(ctx context.Context, cfg *config.Config) Result {
	const name = "Daemon"

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	health, err := api.NewClient(cfg.API.Bind, cfg.API.Token).Health(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not reachable at %s", cfg.API.Bind)}
	}
	return Result{Name: name, Passed: health.Status == "ok", Detail: fmt.Sprintf("%s at %s (ocr %s, database %s)", health.Status, cfg.API.Bind, health.OCR, health.Database)}
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

func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403:
			return fmt.Sprintf("API rejected the key (%d)", statusErr.StatusCode)
		default:
			return fmt.Sprintf("API returned %d", statusErr.StatusCode)
		}
	}
	return err.Error()
}
