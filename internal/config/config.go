package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultMprisService = "org.mpris.MediaPlayer2.mpv"
	DefaultLrclibGetURL = "https://lrclib.net/api/get"
	DefaultManifest     = "data/songs.json"
	PollInterval        = 100 * time.Millisecond
)

type HTTP struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type Config struct {
	MprisService string        `mapstructure:"mpris_service"`
	Manifest     string        `mapstructure:"manifest"`
	BaseURL      string        `mapstructure:"base_url"`
	LrclibURL    string        `mapstructure:"lrclib_url"`
	DefaultCover string        `mapstructure:"default_cover"`
	SyncOffset   float64       `mapstructure:"sync_offset"`
	HideHeader   bool          `mapstructure:"hide_header"`
	Volume       int           `mapstructure:"volume"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	AdvanceDelay time.Duration `mapstructure:"advance_delay"`
	LyricsTTL    time.Duration `mapstructure:"lyrics_ttl"`
	Watch        bool          `mapstructure:"watch"`
	HTTP         HTTP          `mapstructure:"http"`
	Log          Log           `mapstructure:"log"`
}

// legacy unprefixed variables still honoured
var legacyEnv = map[string]string{
	"mpris_service": "MPRIS_SERVICE",
	"lrclib_url":    "LRCLIB_GET_URL",
	"sync_offset":   "SYNC_OFFSET",
	"hide_header":   "HIDE_HEADER",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mpris_service", DefaultMprisService)
	v.SetDefault("manifest", DefaultManifest)
	v.SetDefault("base_url", "")
	v.SetDefault("lrclib_url", DefaultLrclibGetURL)
	v.SetDefault("default_cover", "/img/default-album.svg")
	v.SetDefault("sync_offset", 0.0)
	v.SetDefault("hide_header", false)
	v.SetDefault("volume", 80)
	v.SetDefault("probe_timeout", 8*time.Second)
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("ready_timeout", 15*time.Second)
	v.SetDefault("advance_delay", 1500*time.Millisecond)
	v.SetDefault("lyrics_ttl", 30*time.Minute)
	v.SetDefault("watch", true)

	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.retries", 2)
	v.SetDefault("http.rate_limit", 5.0)
	v.SetDefault("http.burst", 5)
	v.SetDefault("http.user_agent", "lyreplay/1.0")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 14)
}

// Load reads defaults, then an optional yaml config file, then the
// environment. A .env file in the working directory is loaded first and never
// overrides variables that are already set. An empty path searches the
// working directory and $HOME/.config/lyreplay.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lyreplay")
	}

	v.SetEnvPrefix("LYREPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "LYREPLAY_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MprisService == "" {
		return errors.New("mpris_service must not be empty")
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume %d not in [0,100]", c.Volume)
	}
	for name, d := range map[string]time.Duration{
		"probe_timeout": c.ProbeTimeout,
		"fetch_timeout": c.FetchTimeout,
		"ready_timeout": c.ReadyTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
