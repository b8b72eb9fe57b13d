package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// MinPollInterval is the fastest poll rate the Read API rules permit.
	MinPollInterval     = 600 * time.Millisecond
	DefaultPollInterval = 650 * time.Millisecond
	DefaultAPITimeout   = 5 * time.Second

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Environment variables that override values from the config file.
const (
	EnvUser     = "ROSTERWATCH_USER"
	EnvNation   = "ROSTERWATCH_NATION"
	EnvPassword = "ROSTERWATCH_PASSWORD"
	EnvRegion   = "ROSTERWATCH_REGION"
	EnvRedisURL = "ROSTERWATCH_REDIS_URL"
)

// ErrMissingSection is returned when a required table is absent.
var ErrMissingSection = errors.New("config: required section missing")

// Lists are the explicit nations and regions of one policy list.
type Lists struct {
	Nations []string `toml:"nations"`
	Regions []string `toml:"regions"`
}

type API struct {
	BaseURL string
	Timeout time.Duration
}

type Queue struct {
	Backend  string
	RedisURL string
	RedisKey string
}

// Config is the resolved runtime configuration.
type Config struct {
	User     string
	Nation   string
	Password string

	WAOnly          bool
	IgnoreOfficers  bool
	BanUnknowns     bool
	IgnoreResidents bool
	StopOnUpdate    bool
	PollInterval    time.Duration
	Jitter          time.Duration
	RegionOverride  string

	Whitelist Lists
	Blacklist Lists

	API         API
	Queue       Queue
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// Warnings collects defaults applied while loading, for logging once a
	// logger exists.
	Warnings []string
}

type document struct {
	Identity struct {
		User string `toml:"user"`
	} `toml:"identity"`
	Session struct {
		Nation string `toml:"nation"`
	} `toml:"session"`
	Config struct {
		WAOnly          bool   `toml:"wa_only"`
		IgnoreROs       bool   `toml:"ignore_ros"`
		TargetBogeys    bool   `toml:"target_bogeys"`
		IgnoreResidents bool   `toml:"ignore_residents"`
		StopOnUpdate    bool   `toml:"stoponupdate"`
		PollSpeed       int64  `toml:"pollspeed"`
		Jitter          int64  `toml:"jitter"`
		RegionOverride  string `toml:"region_override"`
	} `toml:"config"`
	Whitelist Lists `toml:"whitelist"`
	Blacklist Lists `toml:"blacklist"`
	API       struct {
		BaseURL   string `toml:"base_url"`
		TimeoutMS int64  `toml:"timeout_ms"`
	} `toml:"api"`
	Queue struct {
		Backend  string `toml:"backend"`
		RedisURL string `toml:"redis_url"`
		RedisKey string `toml:"redis_key"`
	} `toml:"queue"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads the TOML file at path and applies environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse resolves a TOML document. Missing switches default to true and a
// missing or too fast pollspeed is corrected, each with a warning.
func Parse(data string) (Config, error) {
	var doc document
	md, err := toml.Decode(data, &doc)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	for _, section := range []string{"config", "whitelist", "blacklist"} {
		if !md.IsDefined(section) {
			return Config{}, fmt.Errorf("%w: [%s]", ErrMissingSection, section)
		}
	}

	cfg := Config{
		User:           doc.Identity.User,
		Nation:         doc.Session.Nation,
		RegionOverride: strings.TrimSpace(doc.Config.RegionOverride),
		Whitelist:      doc.Whitelist,
		Blacklist:      doc.Blacklist,
		API: API{
			BaseURL: doc.API.BaseURL,
			Timeout: time.Duration(doc.API.TimeoutMS) * time.Millisecond,
		},
		Queue: Queue{
			Backend:  strings.ToLower(doc.Queue.Backend),
			RedisURL: doc.Queue.RedisURL,
			RedisKey: doc.Queue.RedisKey,
		},
		MetricsAddr: doc.Metrics.Addr,
		LogLevel:    doc.Log.Level,
		LogFormat:   doc.Log.Format,
	}

	flag := func(key string, value bool) bool {
		if md.IsDefined("config", key) {
			return value
		}
		cfg.warnf("setting %q not found in [config], assuming true", key)
		return true
	}
	cfg.WAOnly = flag("wa_only", doc.Config.WAOnly)
	cfg.IgnoreOfficers = flag("ignore_ros", doc.Config.IgnoreROs)
	cfg.BanUnknowns = flag("target_bogeys", doc.Config.TargetBogeys)
	cfg.StopOnUpdate = flag("stoponupdate", doc.Config.StopOnUpdate)
	cfg.IgnoreResidents = flag("ignore_residents", doc.Config.IgnoreResidents)

	switch {
	case !md.IsDefined("config", "pollspeed"):
		cfg.warnf("setting %q not found in [config], assuming %dms", "pollspeed", DefaultPollInterval.Milliseconds())
		cfg.PollInterval = DefaultPollInterval
	case time.Duration(doc.Config.PollSpeed)*time.Millisecond < MinPollInterval:
		cfg.warnf("poll speeds faster than one request every %dms break the API rules, using %dms",
			MinPollInterval.Milliseconds(), MinPollInterval.Milliseconds())
		cfg.PollInterval = MinPollInterval
	default:
		cfg.PollInterval = time.Duration(doc.Config.PollSpeed) * time.Millisecond
	}

	if !md.IsDefined("config", "jitter") {
		cfg.warnf("setting %q not found in [config], assuming 0ms", "jitter")
	}
	if doc.Config.Jitter > 0 {
		cfg.Jitter = time.Duration(doc.Config.Jitter) * time.Millisecond
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = BackendMemory
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	return cfg, nil
}

// ApplyEnv overrides identity, credentials, region and Redis URL from the
// environment so secrets never live in the config file.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvUser); v != "" {
		c.User = v
	}
	if v := getenv(EnvNation); v != "" {
		c.Nation = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := getenv(EnvRegion); v != "" {
		c.RegionOverride = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Queue.RedisURL = v
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Queue.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Queue.RedisURL == "" {
			return fmt.Errorf("config: redis queue backend requires [queue] redis_url or %s", EnvRedisURL)
		}
	default:
		return fmt.Errorf("config: unknown queue backend %q", c.Queue.Backend)
	}
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("config: poll interval %s below %s", c.PollInterval, MinPollInterval)
	}
	return nil
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
