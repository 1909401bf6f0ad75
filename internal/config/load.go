package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "DELETARR_CONFIG"
	envPrefix     = "DELETARR"
	appDir        = "deletarr-go"
	fileName      = "config.yaml"
)

// ErrNotFound is returned by Find when no config file exists in any of the
// searched locations.
var ErrNotFound = errors.New("no config file found")

// envKeys can be overridden from the environment even when the file omits them.
var envKeys = []string{
	"dryRun",
	"deleteDelay",
	"scanTimeout",
	"scanMaxFiles",
	"concurrency",
	"interval",
	"logging.level",
	"logging.file",
	"server.host",
	"server.port",
}

// Find resolves the config path. An explicit path wins, then DELETARR_CONFIG,
// then the docker location, the working directory and the user config dir.
func Find(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}

	candidates := []string{
		filepath.Join("/config", fileName),
		filepath.Join("config", fileName),
		fileName,
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, appDir, fileName))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	log.Error().Strs("searched", candidates).Msg("no config file found")
	return "", fmt.Errorf("%w in %s", ErrNotFound, strings.Join(candidates, ", "))
}

// DefaultPath is where init writes a new config when no path is given.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Load reads, defaults and validates the config at path. Environment
// variables prefixed with DELETARR_ override file values.
func Load(path string) (*Config, error) {
	log.Debug().Str("path", path).Msg("loading config file")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to read config file")
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to parse config file")
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to path through a temp file and rename, so a crash never
// leaves a half-written config behind.
func Save(path string, cfg *Config, header string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	log.Info().Str("path", path).Msg("config saved")
	return nil
}

// Example returns the config written by init.
func Example() *Config {
	dryRun := true
	deleteDelay := defaultDeleteDelay
	minSeed := 30
	movies := 50.0
	tv := 25.0

	return &Config{
		DryRun:      &dryRun,
		DeleteDelay: &deleteDelay,
		ScanTimeout: 300,
		Concurrency: 1,
		Interval:    0,
		Logging: Logging{
			Level:      defaultLogLevel,
			MaxSize:    defaultMaxSize,
			MaxBackups: defaultMaxBackups,
		},
		Server: Server{
			Host: defaultHost,
			Port: defaultPort,
		},
		QBittorrent: &QBitConfig{
			URL:      "http://localhost:8080",
			Username: "admin",
			Password: "adminadmin",
		},
		Services: []Service{
			{
				Name:             "Radarr",
				URL:              "http://localhost:7878",
				Category:         "radarr",
				MediaRoot:        "/data/media/movies",
				MinSeedDays:      &minSeed,
				MaxDeletePercent: &movies,
			},
			{
				Name:             "Sonarr",
				URL:              "http://localhost:8989",
				Category:         "tv-sonarr",
				MediaRoot:        "/data/media/tv",
				MinSeedDays:      &minSeed,
				MaxDeletePercent: &tv,
			},
		},
	}
}

// ExampleHeader is prepended to the file written by init.
const ExampleHeader = `# deletarr-go configuration
#
# Torrents in a service category are removed once they have seeded for
# minSeedDays and none of their files is hardlinked into mediaRoot.
#
# Configure exactly one download client: qbittorrent, deluge or rtorrent.
#
# dryRun defaults to true. Set it to false only after reviewing a dry run.
# maxDeletePercent aborts a service when more than that share of its
# torrents would be removed in one run.

`
