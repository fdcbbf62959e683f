package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeGeneration()
	if err := c.normalizeOCR(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DiaryDir) == "" {
		c.Paths.DiaryDir = defaultDiaryDir
	}
	if c.Paths.DiaryDir, err = expandPath(c.Paths.DiaryDir); err != nil {
		return fmt.Errorf("paths.diary_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("DAILYCRAFT_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.StreamIdleTimeoutSeconds == 0 {
		c.LLM.StreamIdleTimeoutSeconds = defaultStreamIdleTimeoutSeconds
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.TimeoutSeconds == 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeoutSeconds
	}
	if c.Generation.EventBuffer == 0 {
		c.Generation.EventBuffer = defaultEventBuffer
	}
}

func (c *Config) normalizeOCR() error {
	c.OCR.Command = strings.TrimSpace(c.OCR.Command)
	if c.OCR.Command == "" {
		c.OCR.Command = defaultOCRCommand
	}
	// Relative scripts stay relative; they are resolved against
	// ScriptSearchDirs when the worker starts, not against the working directory.
	c.OCR.Script = strings.TrimSpace(c.OCR.Script)
	if strings.HasPrefix(c.OCR.Script, "~") || filepath.IsAbs(c.OCR.Script) {
		expanded, err := expandPath(c.OCR.Script)
		if err != nil {
			return fmt.Errorf("ocr.script: %w", err)
		}
		c.OCR.Script = expanded
	} else if c.OCR.Script != "" {
		c.OCR.Script = filepath.Clean(c.OCR.Script)
	}
	if c.OCR.HandshakeTimeoutSeconds == 0 {
		c.OCR.HandshakeTimeoutSeconds = defaultOCRHandshakeSeconds
	}
	if c.OCR.RequestTimeoutSeconds == 0 {
		c.OCR.RequestTimeoutSeconds = defaultOCRRequestTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("DAILYCRAFT_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
