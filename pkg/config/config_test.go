package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, values map[string]interface{}) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestDefaultsDisableUpload(t *testing.T) {
	cfg := fromViper(newTestViper(t, nil))

	assert.Equal(t, "learnupon_exports/", cfg.Storage.PathPrefix)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.False(t, cfg.Storage.UploadEnabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.LearnUpon.Enabled())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.LearnUpon.Timeout)
	assert.Equal(t, "learnupon_exporter", cfg.Metrics.JobName)
}

func TestUploadEnabledRequiresAllValues(t *testing.T) {
	full := StorageConfig{Bucket: "b", PathPrefix: "p/", AccessKeyID: "id", AccessKeySecret: "secret"}
	require.True(t, full.UploadEnabled())

	cases := map[string]func(StorageConfig) StorageConfig{
		"bucket": func(c StorageConfig) StorageConfig { c.Bucket = ""; return c },
		"prefix": func(c StorageConfig) StorageConfig { c.PathPrefix = ""; return c },
		"key":    func(c StorageConfig) StorageConfig { c.AccessKeyID = ""; return c },
		"secret": func(c StorageConfig) StorageConfig { c.AccessKeySecret = ""; return c },
	}
	for name, drop := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, drop(full).UploadEnabled())
		})
	}
}

func TestOverridesAndDurations(t *testing.T) {
	cfg := fromViper(newTestViper(t, map[string]interface{}{
		"DB_DRIVER":             "PGX",
		"LEARNUPON_API_URL":     "https://example.learnupon.com/",
		"LEARNUPON_API_TIMEOUT": "not-a-duration",
		"CONTACT_CACHE_TTL":     "2h",
		"REDIS_HOST":            "cache",
		"EXPORT_WORKERS":        4,
	}))

	assert.Equal(t, DriverPGX, cfg.Database.Driver)
	assert.Equal(t, "https://example.learnupon.com", cfg.LearnUpon.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.LearnUpon.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.LearnUpon.ContactCacheTTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 4, cfg.Export.Workers)
}
