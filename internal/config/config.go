// Package config resolves itcsync settings from ~/.itcsync/config.toml and
// ITCSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/itcsync/internal/logging"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "ITCSYNC"

	DirName = ".itcsync"

	KeyProjectsPath = "projects.path"
	KeyStatePath    = "state.path"
	KeySymbolsPath  = "symbols.path"
	KeySecretsPath  = "secrets.path"

	// KeySecretsBackend is one of chain (pass, then files), pass or file.
	KeySecretsBackend = "secrets.backend"
	// KeySecretsPassDir overrides PASSWORD_STORE_DIR for the pass backend.
	KeySecretsPassDir = "secrets.pass_dir"

	KeySyncInterval        = "sync.interval"
	KeySyncSoftBudget      = "sync.soft_budget"
	KeySyncHardDeadline    = "sync.hard_deadline"
	KeySyncDownloadTimeout = "sync.download_timeout"
	KeyWorkers             = "workers.count"
	KeyQueueSize           = "workers.queue_size"

	KeyITCBaseURL        = "itc.base_url"
	KeyITCAuthURL        = "itc.auth_url"
	KeyITCRequestTimeout = "itc.request_timeout"
	KeyITCRateLimit      = "itc.rate_limit"
	KeyITCRateBurst      = "itc.rate_burst"

	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
	KeyMetricsAddr = "metrics.addr"
)

type Sync struct {
	Interval        time.Duration
	SoftBudget      time.Duration
	HardDeadline    time.Duration
	DownloadTimeout time.Duration
	Workers         int
	QueueSize       int
}

type ITC struct {
	BaseURL           string
	AuthURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// New returns a viper instance with defaults applied and the optional config
// file merged in. home is the user home directory.
func New(home string) (*viper.Viper, error) {
	if home == "" {
		resolved, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		home = resolved
	}

	v := viper.New()
	SetDefaults(v, home)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(filepath.Join(home, DirName))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return v, nil
}

func SetDefaults(v *viper.Viper, home string) {
	dir := filepath.Join(home, DirName)

	v.SetDefault(KeyProjectsPath, filepath.Join(dir, "projects.toml"))
	v.SetDefault(KeyStatePath, filepath.Join(dir, "state.toml"))
	v.SetDefault(KeySymbolsPath, filepath.Join(dir, "symbols"))
	v.SetDefault(KeySecretsPath, filepath.Join(dir, "secrets"))
	v.SetDefault(KeySecretsBackend, "chain")
	v.SetDefault(KeySecretsPassDir, "")

	v.SetDefault(KeySyncInterval, 30*time.Second)
	v.SetDefault(KeySyncSoftBudget, 60*time.Second)
	v.SetDefault(KeySyncHardDeadline, 90*time.Second)
	v.SetDefault(KeySyncDownloadTimeout, 120*time.Second)
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyQueueSize, 256)

	v.SetDefault(KeyITCBaseURL, "https://itunesconnect.apple.com/")
	v.SetDefault(KeyITCAuthURL, "https://idmsa.apple.com/")
	v.SetDefault(KeyITCRequestTimeout, 30*time.Second)
	v.SetDefault(KeyITCRateLimit, 5.0)
	v.SetDefault(KeyITCRateBurst, 5)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyMetricsAddr, "127.0.0.1:9464")
}

func SyncSettings(v *viper.Viper) Sync {
	return Sync{
		Interval:        v.GetDuration(KeySyncInterval),
		SoftBudget:      v.GetDuration(KeySyncSoftBudget),
		HardDeadline:    v.GetDuration(KeySyncHardDeadline),
		DownloadTimeout: v.GetDuration(KeySyncDownloadTimeout),
		Workers:         v.GetInt(KeyWorkers),
		QueueSize:       v.GetInt(KeyQueueSize),
	}
}

func ITCSettings(v *viper.Viper) ITC {
	return ITC{
		BaseURL:           v.GetString(KeyITCBaseURL),
		AuthURL:           v.GetString(KeyITCAuthURL),
		RequestTimeout:    v.GetDuration(KeyITCRequestTimeout),
		RequestsPerSecond: v.GetFloat64(KeyITCRateLimit),
		Burst:             v.GetInt(KeyITCRateBurst),
	}
}

func LogSettings(v *viper.Viper) logging.Config {
	return logging.Config{
		Level:  v.GetString(KeyLogLevel),
		Format: v.GetString(KeyLogFormat),
		Output: os.Stderr,
	}
}
