package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CacheBackendMemory   = "memory"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendMSSQL    = "mssql"

	KeySourceConfig   = "config"
	KeySourceDatabase = "database"
)

// YouTubeConfig is the resolved client configuration.
type YouTubeConfig struct {
	APIKeys           []string
	Endpoint          string
	Timeout           time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	CacheTTL          time.Duration
	CacheBackend      string
	MaxPages          int
	BatchSize         int
	MaxConcurrency    int
	RequestsPerSecond float64
	QuotaCooldown     time.Duration
	KeySource         string
	KeyCacheTTL       time.Duration
}

// SyncConfig is the resolved channel sync job configuration.
type SyncConfig struct {
	Channels   []string
	Interval   time.Duration
	Lookback   time.Duration
	MaxResults int
}

// GetYouTubeConfig returns YouTube configuration from JSON config with environment variable fallback
func GetYouTubeConfig() (*YouTubeConfig, error) {
	yt := C.YouTube
	config := &YouTubeConfig{
		APIKeys:      getListValue(yt.APIKeys, "YOUTUBE_API_KEYS"),
		Endpoint:     getConfigValue(yt.Endpoint, "YOUTUBE_ENDPOINT", ""),
		CacheBackend: strings.ToLower(getConfigValue(yt.CacheBackend, "YOUTUBE_CACHE_BACKEND", CacheBackendMemory)),
		KeySource:    strings.ToLower(getConfigValue(yt.KeySource, "YOUTUBE_KEY_SOURCE", KeySourceConfig)),
	}
	// Single-key setups from older deployments.
	if len(config.APIKeys) == 0 {
		if k := getEnv("YOUTUBE_API_KEY", ""); k != "" {
			config.APIKeys = []string{k}
		}
	}

	var err error
	if config.Timeout, err = getDurationValue(yt.Timeout, "YOUTUBE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.BackoffBase, err = getDurationValue(yt.BackoffBase, "YOUTUBE_BACKOFF_BASE", time.Second); err != nil {
		return nil, err
	}
	if config.BackoffCap, err = getDurationValue(yt.BackoffCap, "YOUTUBE_BACKOFF_CAP", 60*time.Second); err != nil {
		return nil, err
	}
	if config.CacheTTL, err = getDurationValue(yt.CacheTTL, "YOUTUBE_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if config.QuotaCooldown, err = getDurationValue(yt.QuotaCooldown, "YOUTUBE_QUOTA_COOLDOWN", time.Hour); err != nil {
		return nil, err
	}
	if config.KeyCacheTTL, err = getDurationValue(yt.KeyCacheTTL, "YOUTUBE_KEY_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.MaxAttempts, err = getIntValue(yt.MaxAttempts, "YOUTUBE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if config.MaxPages, err = getIntValue(yt.MaxPages, "YOUTUBE_MAX_PAGES", 20); err != nil {
		return nil, err
	}
	if config.BatchSize, err = getIntValue(yt.BatchSize, "YOUTUBE_BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if config.MaxConcurrency, err = getIntValue(yt.MaxConcurrency, "YOUTUBE_MAX_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.RequestsPerSecond, err = getFloatValue(yt.RequestsPerSecond, "YOUTUBE_REQUESTS_PER_SECOND", 0); err != nil {
		return nil, err
	}

	switch config.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendPostgres, CacheBackendMSSQL:
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.CacheBackend)
	}
	switch config.KeySource {
	case KeySourceConfig, KeySourceDatabase:
	default:
		return nil, fmt.Errorf("unknown key source %q", config.KeySource)
	}
	if config.BackoffCap < config.BackoffBase {
		config.BackoffCap = config.BackoffBase
	}
	return config, nil
}

// GetSyncConfig returns the channel sync job configuration.
func GetSyncConfig() (*SyncConfig, error) {
	s := C.Sync
	config := &SyncConfig{
		Channels: getListValue(s.Channels, "SYNC_CHANNELS"),
	}
	var err error
	if config.Interval, err = getDurationValue(s.Interval, "SYNC_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if config.Lookback, err = getDurationValue(s.Lookback, "SYNC_LOOKBACK", 24*time.Hour); err != nil {
		return nil, err
	}
	if config.MaxResults, err = getIntValue(s.MaxResults, "SYNC_MAX_RESULTS", 50); err != nil {
		return nil, err
	}
	return config, nil
}

// getConfigValue gets value from config first, then environment variable, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	// Environment variable takes precedence when provided
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Otherwise use config value if set and not a placeholder
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListValue reads a comma separated env list, falling back to the config list.
func getListValue(configValue []string, envKey string) []string {
	raw := configValue
	if v := os.Getenv(envKey); v != "" {
		raw = strings.Split(v, ",")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" || strings.HasPrefix(item, "YOUR_") {
			continue
		}
		out = append(out, item)
	}
	return out
}

func getDurationValue(configValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	raw := getConfigValue(configValue, envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envKey, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", envKey, raw)
	}
	return d, nil
}

func getIntValue(configValue int, envKey string, defaultValue int) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, err)
		}
		return n, nil
	}
	if configValue > 0 {
		return configValue, nil
	}
	return defaultValue, nil
}

func getFloatValue(configValue float64, envKey string, defaultValue float64) (float64, error) {
	if v := os.Getenv(envKey); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, err)
		}
		return f, nil
	}
	if configValue > 0 {
		return configValue, nil
	}
	return defaultValue, nil
}
