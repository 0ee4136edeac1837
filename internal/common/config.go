package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Workers     WorkersConfig   `toml:"workers"`
	Logging     LoggingConfig   `toml:"logging"`
	Whisper     WhisperConfig   `toml:"whisper"`
	FFmpeg      FFmpegConfig    `toml:"ffmpeg"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Embeddings  EmbeddingConfig `toml:"embeddings"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	SQLite    SQLiteConfig `toml:"sqlite"`
	Badger    BadgerConfig `toml:"badger"`
	Workspace string       `toml:"workspace"` // Root directory for derived artifacts (audio, frames)
}

// SQLiteConfig configures the embedded job/metadata database
type SQLiteConfig struct {
	Path          string `toml:"path"`
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
}

// BadgerConfig configures the embedded vector store
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// WorkersConfig controls the job worker pool
type WorkersConfig struct {
	Concurrency  int    `toml:"concurrency"`   // Number of polling worker goroutines
	PollInterval string `toml:"poll_interval"` // e.g. "250ms" - how often workers poll for claimable jobs
	HubInterval  string `toml:"hub_interval"`  // e.g. "150ms" - progress hub re-poll interval
}

func (w *WorkersConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(w.PollInterval, 250*time.Millisecond)
}

func (w *WorkersConfig) HubIntervalDuration() time.Duration {
	return parseDurationOr(w.HubInterval, 150*time.Millisecond)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// WhisperConfig configures the whisper.cpp ASR adapter. Changing BinPath or
// ModelPath at runtime takes effect on the next invocation (hot-reload).
type WhisperConfig struct {
	BinPath     string `toml:"bin_path"`
	ModelPath   string `toml:"model_path"`
	Language    string `toml:"language"`
	Concurrency int    `toml:"concurrency"` // Max concurrent ASR invocations
	Timeout     string `toml:"timeout"`     // Per-window transcription timeout
}

func (w *WhisperConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(w.Timeout, 10*time.Minute)
}

// FFmpegConfig configures the media tool adapter
type FFmpegConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	FrameWidth  int    `toml:"frame_width"` // Scale width for extracted keyframes
}

// LLMProvider identifies the configured LLM backend
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider and bounds concurrent model load
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	Concurrency     int         `toml:"concurrency"` // Max concurrent LLM calls
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"` // Minimum interval between requests
	Temperature float32 `toml:"temperature"`
}

func (g *GeminiConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(g.Timeout, 5*time.Minute)
}

func (g *GeminiConfig) RateLimitDuration() time.Duration {
	return parseDurationOr(g.RateLimit, time.Second)
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

func (c *ClaudeConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 5*time.Minute)
}

func (c *ClaudeConfig) RateLimitDuration() time.Duration {
	return parseDurationOr(c.RateLimit, time.Second)
}

// EmbeddingConfig declares the embedding model and its fixed dimension.
// Changing either namespaces a new vector collection rather than corrupting
// an existing one with mismatched vector shapes.
type EmbeddingConfig struct {
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
}

type WebSocketConfig struct {
	// ThrottleIntervals caps broadcast frequency per event type,
	// e.g. {"job_progress" = "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`
	CleanupSchedule  string `toml:"cleanup_schedule"`   // Cron expression for terminal job cleanup
	JobRetentionDays int    `toml:"job_retention_days"` // Terminal jobs older than this are removed
	GCSchedule       string `toml:"gc_schedule"`        // Cron expression for badger value log GC
}

// NewDefaultConfig returns configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/videosum.db",
				WALMode:       true,
				BusyTimeoutMS: 5000,
				CacheSizeMB:   64,
			},
			Badger: BadgerConfig{
				Path:           "./data/vectors",
				ResetOnStartup: false,
			},
			Workspace: "./data/workspace",
		},
		Workers: WorkersConfig{
			Concurrency:  1,
			PollInterval: "250ms",
			HubInterval:  "150ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Whisper: WhisperConfig{
			BinPath:     "whisper-cli",
			ModelPath:   "",
			Language:    "auto",
			Concurrency: 1,
			Timeout:     "10m",
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			FrameWidth:  640,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			Concurrency:     1,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		Embeddings: EmbeddingConfig{
			Model:     "gemini-embedding-001",
			Dimension: 768,
		},
		WebSocket: WebSocketConfig{
			ThrottleIntervals: map[string]string{
				"job_progress": "250ms",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			CleanupSchedule:  "0 3 * * *",
			JobRetentionDays: 30,
			GCSchedule:       "30 3 * * *",
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path loads defaults plus env overrides only.
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier ones, and environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies VIDEOSUM_* environment variables over the loaded
// configuration.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIDEOSUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("VIDEOSUM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VIDEOSUM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("VIDEOSUM_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("VIDEOSUM_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("VIDEOSUM_WORKSPACE"); dir != "" {
		config.Storage.Workspace = dir
	}
	if v := os.Getenv("VIDEOSUM_WORKERS_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Workers.Concurrency = n
		}
	}
	if v := os.Getenv("VIDEOSUM_WORKERS_POLL_INTERVAL"); v != "" {
		config.Workers.PollInterval = v
	}
	if level := os.Getenv("VIDEOSUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if bin := os.Getenv("VIDEOSUM_WHISPER_BIN"); bin != "" {
		config.Whisper.BinPath = bin
	}
	if model := os.Getenv("VIDEOSUM_WHISPER_MODEL"); model != "" {
		config.Whisper.ModelPath = model
	}
	if bin := os.Getenv("VIDEOSUM_FFMPEG_PATH"); bin != "" {
		config.FFmpeg.FFmpegPath = bin
	}
	if bin := os.Getenv("VIDEOSUM_FFPROBE_PATH"); bin != "" {
		config.FFmpeg.FFprobePath = bin
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if provider := os.Getenv("VIDEOSUM_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// Validate checks configuration consistency at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Workers.Concurrency < 1 {
		return fmt.Errorf("workers.concurrency must be at least 1, got %d", c.Workers.Concurrency)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("invalid llm.default_provider %q: must be 'gemini' or 'claude'", c.LLM.DefaultProvider)
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
