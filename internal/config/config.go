package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type MediaConfig struct {
	ScratchDir         string `yaml:"scratch_dir"`
	TranscoderCommand  string `yaml:"transcoder_command"`
	TranscodeTimeoutMS int    `yaml:"transcode_timeout_ms"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
}

type RecognizerConfig struct {
	Mode      string `yaml:"mode"` // google, mock
	Endpoint  string `yaml:"endpoint"`
	Key       string `yaml:"key"`
	TimeoutMS int    `yaml:"timeout_ms"`
	MockText  string `yaml:"mock_text"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type BotConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Token         string `yaml:"token"`
	MaxVoiceBytes int64  `yaml:"max_voice_bytes"`
	PollTimeoutS  int    `yaml:"poll_timeout_s"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Media       MediaConfig      `yaml:"media"`
	Recognizer  RecognizerConfig `yaml:"recognizer"`
	Store       StoreConfig      `yaml:"store"`
	Bot         BotConfig        `yaml:"bot"`
}

func Default() Config {
	return Config{
		RuntimeName: "ovozd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Media: MediaConfig{
			TranscoderCommand:  "ffmpeg",
			TranscodeTimeoutMS: 30000,
			MaxUploadBytes:     715000,
		},
		Recognizer: RecognizerConfig{
			Mode:      "google",
			TimeoutMS: 15000,
		},
		Store: StoreConfig{
			Path: "./data/ovoz.db",
		},
		Bot: BotConfig{
			Enabled:       false,
			MaxVoiceBytes: 715000,
			PollTimeoutS:  30,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "OVOZ_RUNTIME_NAME")
	overrideString(&cfg.Environment, "OVOZ_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "OVOZ_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "OVOZ_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "OVOZ_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "OVOZ_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "OVOZ_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Media.ScratchDir, "OVOZ_MEDIA_SCRATCH_DIR")
	overrideString(&cfg.Media.TranscoderCommand, "OVOZ_MEDIA_TRANSCODER_COMMAND")
	overrideInt(&cfg.Media.TranscodeTimeoutMS, "OVOZ_MEDIA_TRANSCODE_TIMEOUT_MS")
	overrideInt64(&cfg.Media.MaxUploadBytes, "OVOZ_MEDIA_MAX_UPLOAD_BYTES")
	overrideString(&cfg.Recognizer.Mode, "OVOZ_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.Endpoint, "OVOZ_RECOGNIZER_ENDPOINT")
	overrideString(&cfg.Recognizer.Key, "OVOZ_RECOGNIZER_KEY")
	overrideInt(&cfg.Recognizer.TimeoutMS, "OVOZ_RECOGNIZER_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "OVOZ_STORE_PATH")
	overrideBool(&cfg.Bot.Enabled, "OVOZ_BOT_ENABLED")
	overrideString(&cfg.Bot.Token, "OVOZ_BOT_TOKEN")
	overrideInt64(&cfg.Bot.MaxVoiceBytes, "OVOZ_BOT_MAX_VOICE_BYTES")
	overrideInt(&cfg.Bot.PollTimeoutS, "OVOZ_BOT_POLL_TIMEOUT_S")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.Media.TranscoderCommand) == "" {
		return errors.New("media.transcoder_command must not be empty")
	}
	if cfg.Media.MaxUploadBytes <= 0 {
		return errors.New("media.max_upload_bytes must be positive")
	}
	switch cfg.Recognizer.Mode {
	case "google", "mock":
	default:
		return fmt.Errorf("recognizer.mode must be google or mock, got %q", cfg.Recognizer.Mode)
	}
	if cfg.Bot.Enabled && strings.TrimSpace(cfg.Bot.Token) == "" {
		return errors.New("bot.token must be set when the bot is enabled")
	}
	if cfg.Bot.MaxVoiceBytes <= 0 {
		return errors.New("bot.max_voice_bytes must be positive")
	}
	return nil
}
