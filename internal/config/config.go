package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	JobTTL           time.Duration
	JobSweepInterval time.Duration

	GenerationTimeout time.Duration
	MinScore          float64
	MaxRetries        int
	RetryBaseDelay    time.Duration

	LLMProvider        string
	OllamaBaseURL      string
	OllamaModel        string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	DefaultContextSize int
	DefaultMaxTokens   int

	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute int

	StorageMode      string
	S3Bucket         string
	S3Endpoint       string
	S3Region         string
	AWSAccessKey     string
	AWSSecretKey     string
	S3ForcePathStyle bool
	LocalStorageDir  string
	LocalStorageURL  string
}

// AuthEnabled reports whether the API requires bearer tokens.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvAny returns the first non-empty value among keys.
func getenvAny(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func mustInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
		slog.Warn("bad int env, using default", "key", key, "value", v)
	}
	return def
}

func mustFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
		slog.Warn("bad float env, using default", "key", key, "value", v)
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "true" || v == "1" {
			return true
		}
		if v == "false" || v == "0" {
			return false
		}
		slog.Warn("bad bool env, using default", "key", key, "value", v)
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		slog.Warn("bad duration env, using default", "key", key, "value", v)
	}
	return def
}

// mustSeconds reads a number of seconds (fractions allowed), e.g. "1.5".
func mustSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
		slog.Warn("bad seconds env, using default", "key", key, "value", v)
	}
	return def
}

func mustPositiveSeconds(key string, def time.Duration) time.Duration {
	if d := mustSeconds(key, def); d > 0 {
		return d
	}
	slog.Warn("non-positive seconds env, using default", "key", key)
	return def
}

func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	// try to find .env files starting from current directory and going up
	currentDir, err := os.Getwd()
	if err != nil {
		slog.Debug("failed to get current directory", "error", err)
		return
	}

	// look in current directory and up to 3 parent directories
	searchDirs := []string{currentDir}
	for i := 0; i < 3; i++ {
		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			break // reached root
		}
		searchDirs = append(searchDirs, parent)
		currentDir = parent
	}

	loadedAny := false
	for _, dir := range searchDirs {
		for _, envFile := range envFiles {
			envPath := filepath.Join(dir, envFile)
			if _, err := os.Stat(envPath); err == nil {
				if err := godotenv.Load(envPath); err == nil {
					slog.Debug("loaded environment file", "path", envPath)
					loadedAny = true
				} else {
					slog.Debug("failed to load environment file", "path", envPath, "error", err)
				}
			}
		}
		if loadedAny {
			break // stop searching once we find .env files in a directory
		}
	}

	if !loadedAny {
		slog.Debug("no .env files found, using system environment variables only")
	}
}

func Load() Config {
	loadEnvFiles()
	return fromEnv()
}

func fromEnv() Config {
	cfg := Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		JobTTL:           mustDuration("JOB_TTL", 20*time.Minute),
		JobSweepInterval: mustDuration("JOB_SWEEP_INTERVAL", 30*time.Second),

		GenerationTimeout: mustPositiveSeconds("GENERATION_TIMEOUT_SECONDS", 60*time.Second),
		MinScore:          mustFloat("GEN_MIN_SCORE", 0.80),
		MaxRetries:        mustInt("GEN_MAX_RETRIES", 5),
		RetryBaseDelay:    mustSeconds("GEN_RETRY_BASE_DELAY_SECONDS", time.Second),

		LLMProvider:        strings.ToLower(getenv("LLM_PROVIDER", "ollama")),
		OllamaBaseURL:      strings.TrimRight(getenv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"), "/"),
		OllamaModel:        getenvAny("qwen2.5-coder:3b", "OLLAMA_MODEL", "MODEL_NAME"),
		OpenAIAPIKey:       getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getenv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getenv("OPENAI_MODEL", "gpt-4o-mini"),
		DefaultContextSize: mustInt("DEFAULT_NUM_CTX", 4096),
		DefaultMaxTokens:   mustInt("DEFAULT_NUM_PREDICT", 512),

		JWTSecret:          getenv("JWT_SECRET", ""),
		JWTIssuer:          getenv("JWT_ISSUER", "pagegen"),
		RateLimitPerMinute: mustInt("RATE_LIMIT_PER_MINUTE", 30),

		StorageMode:      getenv("STORAGE_MODE", "none"),
		S3Bucket:         getenv("S3_BUCKET", "pagegen-artifacts"),
		S3Endpoint:       getenv("S3_ENDPOINT", ""),
		S3Region:         getenv("S3_REGION", "us-east-1"),
		AWSAccessKey:     getenv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     getenv("AWS_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle: getBool("S3_FORCE_PATH_STYLE", true),
		LocalStorageDir:  getenv("LOCAL_STORAGE_DIR", "./artifacts"),
		LocalStorageURL:  getenv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),
	}

	if cfg.MaxRetries < 1 {
		slog.Warn("GEN_MAX_RETRIES below 1, using 1", "value", cfg.MaxRetries)
		cfg.MaxRetries = 1
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		slog.Warn("GEN_MIN_SCORE outside [0,1], using default", "value", cfg.MinScore)
		cfg.MinScore = 0.80
	}
	return cfg
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
