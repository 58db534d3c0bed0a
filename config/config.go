// Package config loads flinch.toml, the engine's single configuration
// file, auto-creating it with documented defaults on first run and
// layering environment-variable overrides on top via Viper.
package config

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// FileName is the configuration file name searched for in the working
// directory.
const FileName = "flinch.toml"

// LoginConfig holds the bootstrap root credentials.
type LoginConfig struct {
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"password"`
}

// DirConfig holds the on-disk directory layout.
type DirConfig struct {
	Data     string `mapstructure:"data" toml:"data"`
	Log      string `mapstructure:"log" toml:"log"`
	MemWatch string `mapstructure:"mem_watch" toml:"mem_watch"`
}

// EnableConfig toggles optional ambient subsystems.
type EnableConfig struct {
	Log      bool `mapstructure:"log" toml:"log"`
	MemWatch bool `mapstructure:"mem_watch" toml:"mem_watch"`
}

// Config is the fully parsed contents of flinch.toml.
type Config struct {
	Login  LoginConfig  `mapstructure:"login" toml:"login"`
	Dir    DirConfig    `mapstructure:"dir" toml:"dir"`
	Enable EnableConfig `mapstructure:"enable" toml:"enable"`
}

// Defaults returns the configuration written to flinch.toml the first
// time the engine runs in a working directory.
func Defaults() *Config {
	return &Config{
		Login: LoginConfig{Username: "root", Password: "flinch"},
		Dir:   DirConfig{Data: "data", Log: "log", MemWatch: "etc"},
		Enable: EnableConfig{
			Log:      true,
			MemWatch: true,
		},
	}
}

// Load reads path, creating it with Defaults() first if it does not
// exist, and returns the merged configuration (file values overridden by
// any FLINCH_-prefixed environment variable, e.g. FLINCH_LOGIN_PASSWORD).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaults(path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("FLINCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	b, err := toml.Marshal(Defaults())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
