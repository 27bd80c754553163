package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig reads configuration in three layers: built-in defaults, the YAML
// file at path (optional), and BYM_* environment variables. The merged result
// is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			slog.Warn("Config file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation followed by the cross-section rules the
// tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return validateCrossFields(cfg)
}
