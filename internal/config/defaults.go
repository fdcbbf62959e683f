package config

const (
	defaultConfigPath               = "~/.config/dailycraft/config.toml"
	defaultDataDir                  = "~/.local/share/dailycraft"
	defaultDiaryDir                 = "~/.local/share/dailycraft/diaries"
	defaultLogDir                   = "~/.local/share/dailycraft/logs"
	defaultLLMBaseURL               = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultLLMModel                 = "qwen-plus"
	defaultLLMTimeoutSeconds        = 120
	defaultStreamIdleTimeoutSeconds = 60
	defaultGenerationTimeoutSeconds = 600
	defaultEventBuffer              = 512
	defaultOCRCommand               = "python"
	defaultOCRScript                = "scripts/ocr_service.py"
	defaultOCRHandshakeSeconds      = 60
	defaultOCRRequestTimeoutSeconds = 120
	defaultAPIBind                  = "127.0.0.1:7497"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			DiaryDir: defaultDiaryDir,
			LogDir:   defaultLogDir,
		},
		LLM: LLM{
			BaseURL:                  defaultLLMBaseURL,
			Model:                    defaultLLMModel,
			TimeoutSeconds:           defaultLLMTimeoutSeconds,
			StreamIdleTimeoutSeconds: defaultStreamIdleTimeoutSeconds,
		},
		Generation: Generation{
			TimeoutSeconds: defaultGenerationTimeoutSeconds,
			EventBuffer:    defaultEventBuffer,
		},
		OCR: OCR{
			Enabled:                 true,
			Command:                 defaultOCRCommand,
			Script:                  defaultOCRScript,
			HandshakeTimeoutSeconds: defaultOCRHandshakeSeconds,
			RequestTimeoutSeconds:   defaultOCRRequestTimeoutSeconds,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
