// Package config loads client settings from defaults, an optional TOML file,
// DROPCHAT_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bjarneo/dropchat/internal/directory"
)

const (
	appName    = "dropchat"
	configName = "config"
	configType = "toml"
	envPrefix  = "DROPCHAT"
)

// Keys understood by Load.
const (
	KeyServerURL        = "server.url"
	KeyPingInterval     = "server.ping_interval"
	KeyWriteTimeout     = "server.write_timeout"
	KeyHandshakeTimeout = "server.handshake_timeout"
	KeyDirectoryMode    = "directory.mode"
	KeyMaxFileSizeMB    = "transfer.max_file_size_mb"
	KeyDownloadDir      = "transfer.download_dir"
	KeyIdentityCache    = "identity.cache_file"
	KeyLogLevel         = "log.level"
	KeyLogFile          = "log.file"
)

type Config struct {
	ServerURL        string
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	DirectoryMode    directory.Mode
	MaxFileSizeMB    int
	DownloadDir      string
	IdentityCache    string
	LogLevel         string
	LogFile          string
}

// MaxFileSize is the attachment limit in bytes.
func (c Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerURL, "ws://localhost:3000/ws")
	v.SetDefault(KeyPingInterval, 20*time.Second)
	v.SetDefault(KeyWriteTimeout, 10*time.Second)
	v.SetDefault(KeyHandshakeTimeout, 10*time.Second)
	v.SetDefault(KeyDirectoryMode, directory.ModeSnapshot.String())
	v.SetDefault(KeyMaxFileSizeMB, 10)
	v.SetDefault(KeyDownloadDir, ".")
	v.SetDefault(KeyIdentityCache, filepath.Join(configDir(), "identity.toml"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, filepath.Join(stateDir(), "dropchat.log"))
}

// Load reads the configuration into v and decodes it. An explicit path must
// exist; the default config file is optional.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	mode, err := directory.ParseMode(v.GetString(KeyDirectoryMode))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyDirectoryMode, err)
	}

	cfg := Config{
		ServerURL:        strings.TrimSpace(v.GetString(KeyServerURL)),
		PingInterval:     v.GetDuration(KeyPingInterval),
		WriteTimeout:     v.GetDuration(KeyWriteTimeout),
		HandshakeTimeout: v.GetDuration(KeyHandshakeTimeout),
		DirectoryMode:    mode,
		MaxFileSizeMB:    v.GetInt(KeyMaxFileSizeMB),
		DownloadDir:      v.GetString(KeyDownloadDir),
		IdentityCache:    v.GetString(KeyIdentityCache),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFile:          v.GetString(KeyLogFile),
	}
	if cfg.ServerURL == "" {
		return Config{}, errors.New("server url is empty")
	}
	if cfg.MaxFileSizeMB < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", KeyMaxFileSizeMB)
	}
	return cfg, nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}
