// Package config resolves cobs settings from flags, the environment and an
// optional cobs.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. COBS_DB.
const EnvPrefix = "COBS"

// Setting keys. Flags bound with BindFlags use the same names.
const (
	KeyDB      = "db"
	KeyKey     = "key"
	KeyAliases = "aliases"
	KeyRepo    = "repo"
	KeyListen  = "listen"
	KeyVerbose = "verbose"
)

// Config is the resolved configuration.
type Config struct {
	// DB is the path of the SQLite journal.
	DB string `mapstructure:"db"`

	// Key is the path of the PEM-encoded signing key.
	Key string `mapstructure:"key"`

	// Aliases is the path of the alias directory.
	Aliases string `mapstructure:"aliases"`

	// Repo is the default repository for issue commands.
	Repo string `mapstructure:"repo"`

	// Listen is the address the HTTP API binds to.
	Listen string `mapstructure:"listen"`

	Verbose bool `mapstructure:"verbose"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		DB:      ".cobs/cobs.db",
		Key:     ".cobs/key.pem",
		Aliases: ".cobs/aliases.yaml",
		Repo:    "default",
		Listen:  "127.0.0.1:8787",
	}
}

// New returns a viper instance with defaults and environment lookup
// configured.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyDB, d.DB)
	v.SetDefault(KeyKey, d.Key)
	v.SetDefault(KeyAliases, d.Aliases)
	v.SetDefault(KeyRepo, d.Repo)
	v.SetDefault(KeyListen, d.Listen)
	v.SetDefault(KeyVerbose, d.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag in flags whose name is a setting key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{KeyDB, KeyKey, KeyAliases, KeyRepo, KeyListen, KeyVerbose} {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the config file and resolves the configuration. An explicit
// path must exist; otherwise cobs.yaml is looked up in the working
// directory and in .cobs/, and a missing file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cobs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".cobs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Repo == "" {
		return Config{}, fmt.Errorf("repo must not be empty")
	}
	return cfg, nil
}
