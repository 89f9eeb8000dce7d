// Package config manages configuration for the keyforge CLI.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/runvoy/keyforge/internal/constants"
)

// Config is the explicit configuration handed to the provisioner at construction.
// Nothing below the CLI reads the environment.
type Config struct {
	Prefix              string        `mapstructure:"prefix" yaml:"prefix" validate:"required,max=20"`
	BillingAccount      string        `mapstructure:"billing_account" yaml:"billing_account"`
	Services            []string      `mapstructure:"services" yaml:"services" validate:"required,min=1,dive,required"`
	Roles               []string      `mapstructure:"roles" yaml:"roles" validate:"dive,startswith=roles/"`
	ServiceAccountName  string        `mapstructure:"service_account_name" yaml:"service_account_name" validate:"required,min=6,max=30"`
	APIKeyDisplayName   string        `mapstructure:"api_key_display_name" yaml:"api_key_display_name" validate:"required"`
	APIKeyTargetService string        `mapstructure:"api_key_target_service" yaml:"api_key_target_service" validate:"required"`
	MaxAttempts         int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=20"`
	BackoffStep         time.Duration `mapstructure:"backoff_step" yaml:"backoff_step" validate:"min=0"`
	BackoffJitter       time.Duration `mapstructure:"backoff_jitter" yaml:"backoff_jitter" validate:"min=0"`
	ConvergencePause    time.Duration `mapstructure:"convergence_pause" yaml:"convergence_pause" validate:"min=0"`
	KeyDir              string        `mapstructure:"key_dir" yaml:"key_dir" validate:"required"`
	ArchiveDir          string        `mapstructure:"archive_dir" yaml:"archive_dir" validate:"required"`
	CredentialsFile     string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	QuotaProject        string        `mapstructure:"quota_project" yaml:"quota_project"`
	AssumeYes           bool          `mapstructure:"assume_yes" yaml:"assume_yes"`
	ParallelCredentials bool          `mapstructure:"parallel_credentials" yaml:"parallel_credentials"`
	LogLevel            string        `mapstructure:"log_level" yaml:"log_level"`
}

var validate = validator.New()

// Load loads the configuration using Viper.
// Order of precedence: environment variables (KEYFORGE_*), then the config
// file (configFile, or ~/.keyforge/config.yaml when empty), then defaults.
// A missing default config file is not an error; a missing explicit one is.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v, configFile); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if configFile != "" || !missing {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	return decode(v)
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration, e.g. after CLI flags were applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// GetLogLevel returns the slog.Level from the string configuration.
// Defaults to INFO if the level string is invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// AutoSelectBillingAccount reports whether the first open billing account
// should be used instead of a configured one.
func (c *Config) AutoSelectBillingAccount() bool {
	account := strings.TrimSpace(c.BillingAccount)
	return account == "" || strings.EqualFold(account, constants.AutoBillingAccount)
}

// GetConfigPath returns the path to the default config file
func GetConfigPath() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("error getting current user: %w", err)
	}

	return constants.ConfigFilePath(currentUser.HomeDir), nil
}

// Save writes cfg as YAML to path, or to the default config file when path
// is empty. The file is readable by its owner only.
func Save(cfg *Config, path string) error {
	if path == "" {
		defaultPath, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err = os.WriteFile(path, data, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	// WriteFile keeps the mode of an existing file
	if err = os.Chmod(path, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Prefix = strings.ToLower(strings.TrimSpace(cfg.Prefix))
	cfg.BillingAccount = strings.TrimPrefix(strings.TrimSpace(cfg.BillingAccount), "billingAccounts/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Helper functions

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	baseDir := filepath.Join(home, constants.ConfigDirName)

	v.SetDefault("prefix", constants.DefaultProjectPrefix)
	v.SetDefault("billing_account", constants.AutoBillingAccount)
	v.SetDefault("services", constants.DefaultServices)
	v.SetDefault("roles", constants.DefaultRoles)
	v.SetDefault("service_account_name", constants.DefaultServiceAccountName)
	v.SetDefault("api_key_display_name", constants.DefaultAPIKeyDisplayName)
	v.SetDefault("api_key_target_service", constants.DefaultAPIKeyTargetService)
	v.SetDefault("max_attempts", constants.DefaultMaxAttempts)
	v.SetDefault("backoff_step", constants.DefaultBackoffStep)
	v.SetDefault("backoff_jitter", constants.DefaultBackoffJitter)
	v.SetDefault("convergence_pause", constants.DefaultConvergencePause)
	v.SetDefault("key_dir", filepath.Join(baseDir, "keys"))
	v.SetDefault("archive_dir", filepath.Join(baseDir, "runs"))
	v.SetDefault("assume_yes", false)
	v.SetDefault("parallel_credentials", true)
	v.SetDefault("log_level", "INFO")
}

func loadConfigFile(v *viper.Viper, configFile string) error {
	if configFile == "" {
		path, err := GetConfigPath()
		if err != nil {
			return err
		}
		configFile = path
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	return v.ReadInConfig()
}

func bindEnvVars(v *viper.Viper) {
	envVars := []string{
		"PREFIX",
		"BILLING_ACCOUNT",
		"SERVICES",
		"ROLES",
		"SERVICE_ACCOUNT_NAME",
		"API_KEY_DISPLAY_NAME",
		"API_KEY_TARGET_SERVICE",
		"MAX_ATTEMPTS",
		"BACKOFF_STEP",
		"BACKOFF_JITTER",
		"CONVERGENCE_PAUSE",
		"KEY_DIR",
		"ARCHIVE_DIR",
		"CREDENTIALS_FILE",
		"QUOTA_PROJECT",
		"ASSUME_YES",
		"PARALLEL_CREDENTIALS",
		"LOG_LEVEL",
	}

	for _, envVar := range envVars {
		// Convert to lowercase to match mapstructure tags (keep underscores)
		_ = v.BindEnv(strings.ToLower(envVar), constants.EnvPrefix+"_"+envVar)
	}
}
