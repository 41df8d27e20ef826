package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "CRUDKIT"

	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeyRedisAddr  = "redis_addr"
	cfgKeyAPIBaseURL = "api_base_url"
	cfgKeyAPIToken   = "api_token"
	cfgKeyTimeout    = "timeout"
	cfgKeyRetries    = "retries"
	cfgKeyLogLevel   = "log_level"
)

// configFile is the document written to config.yaml on first run.
type configFile struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir,omitempty"`
	APIBaseURL string `yaml:"api_base_url"`
	Timeout    string `yaml:"timeout"`
	Retries    int    `yaml:"retries"`
	LogLevel   string `yaml:"log_level"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:  types.BackendSQLite,
		Timeout:  "30s",
		Retries:  2,
		LogLevel: "warn",
	}
}

// loadConfig reads config.yaml from the resolved config directory, creating
// the directory and a default file on first run. Environment variables
// prefixed CRUDKIT_ override file values.
func loadConfig(configDirFlag, dataDirFlag string) (*viper.Viper, types.Config, error) {
	var cfg types.Config
	configDir, err := paths.ResolveConfigDir(configDirFlag)
	if err != nil {
		return nil, cfg, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, cfg, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	def := defaultConfigFile()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyRedisAddr, "")
	v.SetDefault(cfgKeyAPIBaseURL, "")
	v.SetDefault(cfgKeyAPIToken, "")
	v.SetDefault(cfgKeyTimeout, def.Timeout)
	v.SetDefault(cfgKeyRetries, def.Retries)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, cfg, usagef("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cfg, usagef("decode config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(dataDirFlag, cfg.DataDir)
	if err != nil {
		return nil, cfg, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, usagef("config: %w", err)
	}
	return v, cfg, nil
}

// ensureDefaultConfigFile writes a default config.yaml unless one exists.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(defaultConfigFile())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# crudkit configuration. Every key can be overridden with CRUDKIT_<KEY>.\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
