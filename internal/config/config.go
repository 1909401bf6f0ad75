package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/s0up4200/deletarr-go/internal/retention"
)

const (
	defaultDeleteDelay = 200
	defaultHost        = "0.0.0.0"
	defaultPort        = 8686
	defaultLogLevel    = "info"
	defaultMaxSize     = 50
	defaultMaxBackups  = 3
)

type Config struct {
	// DryRun defaults to true. Nothing is deleted unless it is explicitly false.
	DryRun *bool `yaml:"dryRun" json:"dryRun" mapstructure:"dryRun"`
	// DeleteDelay is the pause between individual delete calls, in
	// milliseconds. Unset means 200, an explicit 0 disables the pause
	DeleteDelay *int `yaml:"deleteDelay,omitempty" json:"deleteDelay,omitempty" mapstructure:"deleteDelay"`
	// ScanTimeout bounds each media root walk, in seconds. 0 disables the bound
	ScanTimeout int `yaml:"scanTimeout" json:"scanTimeout" mapstructure:"scanTimeout"`
	// ScanMaxFiles aborts a media root walk after this many files. 0 disables the bound
	ScanMaxFiles int `yaml:"scanMaxFiles" json:"scanMaxFiles" mapstructure:"scanMaxFiles"`
	// Concurrency is the number of torrents checked in parallel within a service
	Concurrency int `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	// Interval schedules runs in serve mode, in minutes. 0 disables scheduling
	Interval int `yaml:"interval" json:"interval" mapstructure:"interval"`

	Logging     Logging       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Server      Server        `yaml:"server" json:"server" mapstructure:"server"`
	QBittorrent *QBitConfig   `yaml:"qbittorrent,omitempty" json:"qbittorrent,omitempty" mapstructure:"qbittorrent"`
	Deluge      *DelugeConfig `yaml:"deluge,omitempty" json:"deluge,omitempty" mapstructure:"deluge"`
	RTorrent    *RTorrConfig  `yaml:"rtorrent,omitempty" json:"rtorrent,omitempty" mapstructure:"rtorrent"`
	Services    []Service     `yaml:"services" json:"services" mapstructure:"services"`
}

type Logging struct {
	Level      string `yaml:"level" json:"level" mapstructure:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty" mapstructure:"file"`
	MaxSize    int    `yaml:"maxSize,omitempty" json:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty" mapstructure:"maxBackups"`
}

type Server struct {
	Host string `yaml:"host" json:"host" mapstructure:"host"`
	Port int    `yaml:"port" json:"port" mapstructure:"port"`
	// WebDir overrides FRONTEND_DIST as the dashboard build directory
	WebDir string `yaml:"webDir,omitempty" json:"webDir,omitempty" mapstructure:"webDir"`
}

type QBitConfig struct {
	URL       string `yaml:"url" json:"url" mapstructure:"url"`
	Username  string `yaml:"username" json:"username" mapstructure:"username"`
	Password  string `yaml:"password" json:"password" mapstructure:"password"`
	BasicUser string `yaml:"basicUser,omitempty" json:"basicUser,omitempty" mapstructure:"basicUser"`
	BasicPass string `yaml:"basicPass,omitempty" json:"basicPass,omitempty" mapstructure:"basicPass"`
}

type DelugeConfig struct {
	Host     string `yaml:"host" json:"host" mapstructure:"host"`
	Port     uint   `yaml:"port" json:"port" mapstructure:"port"`
	Username string `yaml:"username" json:"username" mapstructure:"username"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
}

type RTorrConfig struct {
	URL       string `yaml:"url" json:"url" mapstructure:"url"`
	BasicUser string `yaml:"basicUser,omitempty" json:"basicUser,omitempty" mapstructure:"basicUser"`
	BasicPass string `yaml:"basicPass,omitempty" json:"basicPass,omitempty" mapstructure:"basicPass"`
}

// Service is one managed library: a download client category whose torrents
// are protected by hardlinks into MediaRoot.
type Service struct {
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// URL and APIKey point at the Radarr/Sonarr instance. Only used for health checks
	URL    string `yaml:"url,omitempty" json:"url,omitempty" mapstructure:"url"`
	APIKey string `yaml:"apiKey,omitempty" json:"apiKey,omitempty" mapstructure:"apiKey"`

	Category  string `yaml:"category" json:"category" mapstructure:"category"`
	MediaRoot string `yaml:"mediaRoot" json:"mediaRoot" mapstructure:"mediaRoot"`
	// MinSeedDays defaults to 30
	MinSeedDays *int `yaml:"minSeedDays,omitempty" json:"minSeedDays,omitempty" mapstructure:"minSeedDays"`
	// MaxDeletePercent aborts the service batch when exceeded. Unset means no limit
	MaxDeletePercent *float64 `yaml:"maxDeletePercent,omitempty" json:"maxDeletePercent,omitempty" mapstructure:"maxDeletePercent"`
	// Enabled defaults to true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" mapstructure:"enabled"`
}

// IsEnabled reports whether the service should be processed.
func (s Service) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SeedDays returns the configured minimum seed time, or the default.
func (s Service) SeedDays() int {
	if s.MinSeedDays == nil {
		return retention.DefaultMinSeedDays
	}
	return *s.MinSeedDays
}

// IsDryRun reports the configured dry run mode. Unset means dry run.
func (c *Config) IsDryRun() bool {
	return c.DryRun == nil || *c.DryRun
}

func (c *Config) DeleteDelayDuration() time.Duration {
	if c.DeleteDelay == nil {
		return defaultDeleteDelay * time.Millisecond
	}
	return time.Duration(*c.DeleteDelay) * time.Millisecond
}

func (c *Config) ScanTimeoutDuration() time.Duration {
	return time.Duration(c.ScanTimeout) * time.Second
}

// ApplyDefaults fills unset fields. Pointer fields stay nil and are resolved
// through their accessors so an explicit zero is never overwritten.
func (c *Config) ApplyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSize <= 0 {
		c.Logging.MaxSize = defaultMaxSize
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = defaultMaxBackups
	}
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Deluge != nil && c.Deluge.Port == 0 {
		c.Deluge.Port = 58846
	}
}

// Validate checks the config for mistakes that would make a run unsafe or
// impossible. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	clients := 0
	if c.QBittorrent != nil {
		clients++
		if c.QBittorrent.URL == "" {
			errs = append(errs, errors.New("qbittorrent: url is required"))
		}
	}
	if c.Deluge != nil {
		clients++
		if c.Deluge.Host == "" {
			errs = append(errs, errors.New("deluge: host is required"))
		}
	}
	if c.RTorrent != nil {
		clients++
		if c.RTorrent.URL == "" {
			errs = append(errs, errors.New("rtorrent: url is required"))
		}
	}
	switch {
	case clients == 0:
		errs = append(errs, errors.New("no download client configured"))
	case clients > 1:
		errs = append(errs, errors.New("only one download client may be configured"))
	}

	if c.DeleteDelay != nil && *c.DeleteDelay < 0 {
		errs = append(errs, errors.New("deleteDelay must not be negative"))
	}

	if len(c.Services) == 0 {
		errs = append(errs, errors.New("no services configured"))
	}

	names := make(map[string]struct{}, len(c.Services))
	categories := make(map[string]string, len(c.Services))
	for i, svc := range c.Services {
		label := svc.Name
		if label == "" {
			label = fmt.Sprintf("services[%d]", i)
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else if _, dup := names[strings.ToLower(svc.Name)]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate service name", label))
		}
		names[strings.ToLower(svc.Name)] = struct{}{}

		if svc.Category == "" {
			errs = append(errs, fmt.Errorf("%s: category is required", label))
		}
		if svc.MediaRoot == "" {
			errs = append(errs, fmt.Errorf("%s: mediaRoot is required", label))
		}
		if svc.MinSeedDays != nil && *svc.MinSeedDays < 0 {
			errs = append(errs, fmt.Errorf("%s: minSeedDays must not be negative", label))
		}
		if p := svc.MaxDeletePercent; p != nil && (*p < 0 || *p > 100) {
			errs = append(errs, fmt.Errorf("%s: maxDeletePercent must be between 0 and 100", label))
		}

		if !svc.IsEnabled() || svc.Category == "" {
			continue
		}
		if other, dup := categories[svc.Category]; dup {
			errs = append(errs, fmt.Errorf("%s: category %q is already used by %s", label, svc.Category, other))
		}
		categories[svc.Category] = label
	}

	return errors.Join(errs...)
}

// EnabledCategories returns the categories of all enabled services in order.
func (c *Config) EnabledCategories() []string {
	var out []string
	for _, svc := range c.Services {
		if svc.IsEnabled() {
			out = append(out, svc.Category)
		}
	}
	return out
}
