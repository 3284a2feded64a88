package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Speech   SpeechConfig
	Language LanguageConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	ConnectionString string
	Container        string
	SASTTL           time.Duration
}

type SpeechConfig struct {
	Key    string
	Region string
	Locale string
}

// Endpoint returns the regional batch transcription base URL.
func (s SpeechConfig) Endpoint() string {
	return fmt.Sprintf("https://%s.api.cognitive.microsoft.com/speechtotext/v3.2", s.Region)
}

type LanguageConfig struct {
	Key              string
	Endpoint         string
	SummarySentences int
}

// Enabled reports whether the enrichment stage is configured at all.
func (l LanguageConfig) Enabled() bool {
	return l.Key != "" && l.Endpoint != ""
}

type PipelineConfig struct {
	PollInterval time.Duration
	MaxPolls     int
	CallTimeout  time.Duration
}

// PollWindow is the worst-case end-to-end polling duration.
func (p PipelineConfig) PollWindow() time.Duration {
	return p.PollInterval * time.Duration(p.MaxPolls)
}

type LogConfig struct {
	Level       string
	Environment string
}

func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	pollInterval, err := getEnvInt("POLL_INTERVAL_SEC", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL_SEC: %w", err)
	}
	maxPolls, err := getEnvInt("MAX_POLL_COUNT", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_POLL_COUNT: %w", err)
	}
	callTimeout, err := getEnvInt("CALL_TIMEOUT_SEC", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid CALL_TIMEOUT_SEC: %w", err)
	}
	sasTTL, err := getEnvInt("SAS_TTL_MIN", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid SAS_TTL_MIN: %w", err)
	}
	sentences, err := getEnvInt("SUMMARY_SENTENCES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_SENTENCES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: port,
		},
		Storage: StorageConfig{
			ConnectionString: getEnv("STORAGE_CONNECTION_STRING", ""),
			Container:        getEnv("STORAGE_CONTAINER", "audio-files"),
			SASTTL:           time.Duration(sasTTL) * time.Minute,
		},
		Speech: SpeechConfig{
			Key:    getEnv("SPEECH_KEY", ""),
			Region: getEnv("SPEECH_REGION", ""),
			Locale: getEnv("SPEECH_LOCALE", "ko-KR"),
		},
		Language: LanguageConfig{
			Key:              getEnv("LANGUAGE_KEY", ""),
			Endpoint:         strings.TrimRight(getEnv("LANGUAGE_ENDPOINT", ""), "/"),
			SummarySentences: sentences,
		},
		Pipeline: PipelineConfig{
			PollInterval: time.Duration(pollInterval) * time.Second,
			MaxPolls:     maxPolls,
			CallTimeout:  time.Duration(callTimeout) * time.Second,
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("ENVIRONMENT", "local"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Storage.ConnectionString == "" {
		missing = append(missing, "STORAGE_CONNECTION_STRING")
	}
	if c.Speech.Key == "" {
		missing = append(missing, "SPEECH_KEY")
	}
	if c.Speech.Region == "" {
		missing = append(missing, "SPEECH_REGION")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Pipeline.MaxPolls <= 0 {
		return fmt.Errorf("MAX_POLL_COUNT must be positive")
	}
	// The SAS URL must outlive the whole polling window, otherwise the remote
	// job loses access to the blob mid-transcription.
	if c.Storage.SASTTL <= c.Pipeline.PollWindow() {
		return fmt.Errorf("SAS_TTL_MIN (%s) must exceed the poll window (%s)",
			c.Storage.SASTTL, c.Pipeline.PollWindow())
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
