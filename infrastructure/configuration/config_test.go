package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withYouTubeConfig(t *testing.T, yt YouTube) {
	t.Helper()
	previous := C.YouTube
	C.YouTube = yt
	t.Cleanup(func() { C.YouTube = previous })
}

func TestConfiguration(t *testing.T) {
	t.Run("configuration_struct_exists", func(t *testing.T) {
		require.NotNil(t, &C, "Configuration should not be nil")
		require.NotNil(t, &C.YouTube, "YouTube configuration should exist")
		require.NotNil(t, &C.Database, "Database configuration should exist")
	})

	t.Run("config_name_follows_env", func(t *testing.T) {
		t.Setenv("ENV", "")
		assert.Equal(t, "config", getConfig())
		t.Setenv("ENV", "prod")
		assert.Equal(t, "config-prod", getConfig())
	})
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("YT_TEST_VALUE", "")
	assert.Equal(t, "from-config", getConfigValue("from-config", "YT_TEST_VALUE", "default"))
	assert.Equal(t, "default", getConfigValue("", "YT_TEST_VALUE", "default"))
	assert.Equal(t, "default", getConfigValue("YOUR_API_KEY", "YT_TEST_VALUE", "default"))

	t.Setenv("YT_TEST_VALUE", "from-env")
	assert.Equal(t, "from-env", getConfigValue("from-config", "YT_TEST_VALUE", "default"))
}

func TestGetYouTubeConfig_Defaults(t *testing.T) {
	for _, key := range []string{"YOUTUBE_API_KEYS", "YOUTUBE_API_KEY", "YOUTUBE_ENDPOINT", "YOUTUBE_CACHE_BACKEND",
		"YOUTUBE_KEY_SOURCE", "YOUTUBE_MAX_ATTEMPTS", "YOUTUBE_BACKOFF_BASE", "YOUTUBE_BACKOFF_CAP",
		"YOUTUBE_CACHE_TTL", "YOUTUBE_MAX_PAGES", "YOUTUBE_BATCH_SIZE", "YOUTUBE_MAX_CONCURRENCY",
		"YOUTUBE_REQUESTS_PER_SECOND", "YOUTUBE_QUOTA_COOLDOWN", "YOUTUBE_TIMEOUT", "YOUTUBE_KEY_CACHE_TTL"} {
		t.Setenv(key, "")
	}
	withYouTubeConfig(t, YouTube{})

	cfg, err := GetYouTubeConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKeys)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.BackoffCap)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Equal(t, time.Hour, cfg.QuotaCooldown)
	assert.Equal(t, KeySourceConfig, cfg.KeySource)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestGetYouTubeConfig_ConfigAndEnv(t *testing.T) {
	withYouTubeConfig(t, YouTube{
		APIKeys:      []string{"cfg-key-1", " cfg-key-2 ", "YOUR_KEY", ""},
		MaxAttempts:  5,
		BackoffBase:  "2s",
		CacheBackend: "Redis",
	})
	t.Setenv("YOUTUBE_API_KEYS", "")
	t.Setenv("YOUTUBE_MAX_ATTEMPTS", "")
	t.Setenv("YOUTUBE_BACKOFF_BASE", "")
	t.Setenv("YOUTUBE_CACHE_BACKEND", "")
	t.Setenv("YOUTUBE_BACKOFF_CAP", "1s")

	cfg, err := GetYouTubeConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg-key-1", "cfg-key-2"}, cfg.APIKeys)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BackoffBase)
	assert.Equal(t, 2*time.Second, cfg.BackoffCap, "cap is raised to the base")
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)

	t.Setenv("YOUTUBE_API_KEYS", "env-a, env-b,,env-c")
	t.Setenv("YOUTUBE_MAX_ATTEMPTS", "7")
	cfg, err = GetYouTubeConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"env-a", "env-b", "env-c"}, cfg.APIKeys)
	assert.Equal(t, 7, cfg.MaxAttempts)
}

func TestGetYouTubeConfig_LegacySingleKey(t *testing.T) {
	withYouTubeConfig(t, YouTube{})
	t.Setenv("YOUTUBE_API_KEYS", "")
	t.Setenv("YOUTUBE_API_KEY", "solo")

	cfg, err := GetYouTubeConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, cfg.APIKeys)
}

func TestGetYouTubeConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yt   YouTube
		env  map[string]string
	}{
		{"bad duration", YouTube{}, map[string]string{"YOUTUBE_CACHE_TTL": "soon"}},
		{"negative duration", YouTube{}, map[string]string{"YOUTUBE_BACKOFF_BASE": "-1s"}},
		{"bad int", YouTube{}, map[string]string{"YOUTUBE_MAX_PAGES": "many"}},
		{"bad float", YouTube{}, map[string]string{"YOUTUBE_REQUESTS_PER_SECOND": "fast"}},
		{"unknown backend", YouTube{CacheBackend: "etcd"}, nil},
		{"unknown key source", YouTube{KeySource: "vault"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withYouTubeConfig(t, tc.yt)
			t.Setenv("YOUTUBE_CACHE_BACKEND", "")
			t.Setenv("YOUTUBE_KEY_SOURCE", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := GetYouTubeConfig()
			assert.Error(t, err)
		})
	}
}

func TestGetSyncConfig(t *testing.T) {
	previous := C.Sync
	t.Cleanup(func() { C.Sync = previous })
	C.Sync = Sync{Channels: []string{"UC1", "UC2"}, Interval: "5m"}
	t.Setenv("SYNC_CHANNELS", "")
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("SYNC_LOOKBACK", "")
	t.Setenv("SYNC_MAX_RESULTS", "")

	cfg, err := GetSyncConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"UC1", "UC2"}, cfg.Channels)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Lookback)
	assert.Equal(t, 50, cfg.MaxResults)
}

func TestLoadEnvFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.env")
	content := "# comment\n\nYT_LOADER_A=alpha\nexport YT_LOADER_B=\"beta gamma\"\nYT_LOADER_C=keep # trailing\nYT_LOADER_EXISTING=file\nnot-a-pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("YT_LOADER_EXISTING", "process")
	for _, k := range []string{"YT_LOADER_A", "YT_LOADER_B", "YT_LOADER_C"} {
		k := k
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}

	loaded := LoadEnvFromFile(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, "alpha", os.Getenv("YT_LOADER_A"))
	assert.Equal(t, "beta gamma", os.Getenv("YT_LOADER_B"))
	assert.Equal(t, "keep", os.Getenv("YT_LOADER_C"))
	assert.Equal(t, "process", os.Getenv("YT_LOADER_EXISTING"))
}
