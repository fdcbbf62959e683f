package ocr

import (
	"time"

	"dailycraft/internal/config"
)

// ConfigFrom builds the worker launch settings from the [ocr] section.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Command:          cfg.OCR.Command,
		Script:           cfg.OCR.Script,
		SearchDirs:       cfg.ScriptSearchDirs(),
		Args:             append([]string(nil), cfg.OCR.Args...),
		HandshakeTimeout: time.Duration(cfg.OCR.HandshakeTimeoutSeconds) * time.Second,
		RequestTimeout:   time.Duration(cfg.OCR.RequestTimeoutSeconds) * time.Second,
	}
}
