package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. An empty llm.api_key is not a
// validation error: generation jobs report it when they run.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	parsed, err := url.Parse(c.LLM.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("llm.base_url must be an absolute URL, got %q", c.LLM.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("llm.base_url must use http or https, got %q", parsed.Scheme)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.StreamIdleTimeoutSeconds < 0 {
		return errors.New("llm.stream_idle_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.TimeoutSeconds < 0 {
		return errors.New("generation.timeout_seconds must be positive")
	}
	if c.Generation.EventBuffer < 0 {
		return errors.New("generation.event_buffer must be positive")
	}
	return nil
}

func (c *Config) validateOCR() error {
	if !c.OCR.Enabled {
		return nil
	}
	if strings.TrimSpace(c.OCR.Script) == "" {
		return errors.New("ocr.script must be set when ocr.enabled is true")
	}
	if c.OCR.HandshakeTimeoutSeconds < 0 {
		return errors.New("ocr.handshake_timeout_seconds must be positive")
	}
	if c.OCR.RequestTimeoutSeconds < 0 {
		return errors.New("ocr.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
