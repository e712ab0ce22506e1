package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string `json:"port"`
	Host string `json:"host"`

	// Gemini API settings
	GeminiAPIKey string `json:"-"` // Don't expose in JSON
	GeminiModel  string `json:"gemini_model"`

	// TTS settings
	MurfAPIKey       string `json:"-"` // Don't expose in JSON
	PiperURL         string `json:"piper_url"`
	VoicesFile       string `json:"voices_file"`
	MaxConcurrentTTS int    `json:"max_concurrent_tts"`
	MaxSegmentChars  int    `json:"max_segment_chars"`

	// Collector settings
	MaxArticlesPerTopic  int `json:"max_articles_per_topic"`
	MaxCommentsPerThread int `json:"max_comments_per_thread"`
	CollectorTimeout     int `json:"collector_timeout_seconds"`

	// Script settings
	WordsPerMinute  int     `json:"words_per_minute"`
	ScriptTolerance float64 `json:"script_tolerance"`

	// Ranking settings
	MaxCorpusItems int  `json:"max_corpus_items"`
	NewsFirst      bool `json:"news_first"`

	// Pipeline settings
	RunTimeout int `json:"run_timeout_seconds"`

	// Storage settings
	StoreType   string `json:"store_type"` // "local" or "cloud-storage"
	AudioDir    string `json:"audio_dir"`
	StoreBucket string `json:"store_bucket"`
	HistoryDB   string `json:"history_db"`

	// Cache settings
	CacheCleanupMinutes int `json:"cache_cleanup_minutes"`

	// Maintenance sweep cron spec
	CleanupSchedule string `json:"cleanup_schedule"`

	// Optional bearer token for mutating endpoints
	APIAuthToken string `json:"-"` // Don't expose in JSON
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MurfAPIKey:           getEnvOrDefault("MURF_API_KEY", ""),
		PiperURL:             getEnvOrDefault("PIPER_URL", ""),
		VoicesFile:           getEnvOrDefault("VOICES_FILE", ""),
		MaxConcurrentTTS:     getEnvOrDefaultInt("MAX_CONCURRENT_TTS", 4),
		MaxSegmentChars:      getEnvOrDefaultInt("TTS_MAX_SEGMENT_CHARS", 3000),
		MaxArticlesPerTopic:  getEnvOrDefaultInt("MAX_ARTICLES_PER_TOPIC", 4),
		MaxCommentsPerThread: getEnvOrDefaultInt("MAX_COMMENTS_PER_THREAD", 5),
		CollectorTimeout:     getEnvOrDefaultInt("COLLECTOR_TIMEOUT_SECONDS", 30),
		WordsPerMinute:       getEnvOrDefaultInt("WORDS_PER_MINUTE", 150),
		ScriptTolerance:      getEnvOrDefaultFloat("SCRIPT_TOLERANCE", 0.15),
		MaxCorpusItems:       getEnvOrDefaultInt("MAX_CORPUS_ITEMS", 12),
		NewsFirst:            getEnvOrDefaultBool("RANK_NEWS_FIRST", true),
		RunTimeout:           getEnvOrDefaultInt("RUN_TIMEOUT_SECONDS", 120),
		StoreType:            getEnvOrDefault("STORE_TYPE", "local"),
		AudioDir:             getEnvOrDefault("AUDIO_DIR", "audio"),
		StoreBucket:          getEnvOrDefault("STORE_BUCKET", ""),
		HistoryDB:            getEnvOrDefault("HISTORY_DB", "data/history.db"),
		CacheCleanupMinutes:  getEnvOrDefaultInt("CACHE_CLEANUP_MINUTES", 10),
		CleanupSchedule:      getEnvOrDefault("CLEANUP_SCHEDULE", "*/15 * * * *"),
		APIAuthToken:         getEnvOrDefault("API_AUTH_TOKEN", ""),
	}

	return config, config.validate()
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return &ConfigError{Field: "GEMINI_API_KEY", Message: "Gemini API key is required"}
	}
	if c.MurfAPIKey == "" && c.PiperURL == "" {
		return &ConfigError{Field: "MURF_API_KEY", Message: "at least one TTS backend is required (MURF_API_KEY or PIPER_URL)"}
	}
	if c.StoreType != "local" && c.StoreType != "cloud-storage" {
		return &ConfigError{Field: "STORE_TYPE", Message: "must be local or cloud-storage"}
	}
	if c.StoreType == "cloud-storage" && c.StoreBucket == "" {
		return &ConfigError{Field: "STORE_BUCKET", Message: "bucket name is required for cloud-storage"}
	}
	if c.ScriptTolerance <= 0 || c.ScriptTolerance >= 1 {
		return &ConfigError{Field: "SCRIPT_TOLERANCE", Message: "must be between 0 and 1"}
	}
	if c.WordsPerMinute <= 0 {
		return &ConfigError{Field: "WORDS_PER_MINUTE", Message: "must be positive"}
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default if not set
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultBool returns environment variable value as bool or default if not set
func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
