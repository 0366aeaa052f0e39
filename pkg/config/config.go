package config

// Package config provides a reusable loader for asset-pipeline configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"canister-assets/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for an asset-server node or
// asset-sync client. It mirrors the structure of the YAML files Load reads
// (default.yaml and <env>.yaml, searched in cmd/config, then config); no
// such files ship with this repository.
type Config struct {
	Server struct {
		ListenAddr      string `mapstructure:"listen_addr" json:"listen_addr"`
		PrincipalHex    string `mapstructure:"principal_hex" json:"principal_hex"`
		Persist         bool   `mapstructure:"persist" json:"persist"`
		StatePath       string `mapstructure:"state_path" json:"state_path"`
		InsecureDevMode bool   `mapstructure:"insecure_dev_mode" json:"insecure_dev_mode"`
	} `mapstructure:"server" json:"server"`

	Batch struct {
		ExpiryNanos int64 `mapstructure:"expiry_nanos" json:"expiry_nanos"`
	} `mapstructure:"batch" json:"batch"`

	Auth struct {
		AuthorizedPrincipals []string `mapstructure:"authorized_principals" json:"authorized_principals"`
	} `mapstructure:"auth" json:"auth"`

	Sync struct {
		CanisterID        string   `mapstructure:"canister_id" json:"canister_id"`
		SourceDirectories []string `mapstructure:"source_directories" json:"source_directories"`
		MaxConcurrency    int      `mapstructure:"max_concurrency" json:"max_concurrency"`
	} `mapstructure:"sync" json:"sync"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // overlays matching process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ASSET_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("ASSET_ENV", ""))
}
