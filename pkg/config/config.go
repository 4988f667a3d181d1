// Package config loads the service configuration from flags, environment, config.toml and defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "DIRECT_PRINTING"

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	CUPS      CUPSConfig
	Settings  SettingsConfig
	Print     PrintConfig
	Names     NamesConfig
	Discovery DiscoveryConfig
	Relay     RelayConfig

	// Discover lists network printers and exits instead of serving.
	Discover bool
	// File is the config file that was read, empty when none was found.
	File string
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
}

// Address returns host:port to listen on.
func (c HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stdout, stderr or a file path
}

type CUPSConfig struct {
	Server   string // ipp://host:port of the spooler
	Username string // requesting-user-name for submitted jobs
	Timeout  time.Duration
}

type SettingsConfig struct {
	// Path of the default settings file, <user config dir>/direct-printing/settings.json when empty.
	Path string
}

type PrintConfig struct {
	TempDir string
}

type NamesConfig struct {
	// Replacements are extra "garbled=fixed" rules for driver supplied names.
	Replacements []string
}

type DiscoveryConfig struct {
	Timeout time.Duration
}

type RelayConfig struct {
	Enabled    bool
	ServerURL  string
	Space      string
	Token      string
	Printer    string
	JobTTL     time.Duration
	JobTimeout time.Duration
}

// RegisterFlags adds the command line options to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config.toml")
	fs.String("host", "127.0.0.1", "Address to listen on")
	fs.IntP("port", "p", 63856, "Port to listen on")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.Bool("discover", false, "List IPP printers announced on the local network and exit")
	fs.Bool("relay", false, "Accept print jobs from the remote printing server")
}

var flagKeys = map[string]string{
	"host":      "http.host",
	"port":      "http.port",
	"log-level": "log.level",
	"relay":     "relay.enabled",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "direct-printing")
	v.SetDefault("app.env", "production")

	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 63856)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 2*time.Minute)
	v.SetDefault("http.idle_timeout", 2*time.Minute)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_size", 64<<20)
	v.SetDefault("http.cors_allow_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("cups.server", "ipp://localhost:631")
	v.SetDefault("cups.username", "direct-printing")
	v.SetDefault("cups.timeout", 30*time.Second)

	v.SetDefault("settings.path", "")
	v.SetDefault("print.temp_dir", "")
	v.SetDefault("names.replacements", []string{})
	v.SetDefault("discovery.timeout", time.Minute)

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.server_url", "https://printer.eolymp.com")
	v.SetDefault("relay.space", "")
	v.SetDefault("relay.token", "")
	v.SetDefault("relay.printer", "")
	v.SetDefault("relay.job_ttl", 5*time.Minute)
	v.SetDefault("relay.job_timeout", 10*time.Minute)
}

// Load builds the configuration. Priority, highest first: flags set on fs, DIRECT_PRINTING_* environment
// variables, config.toml, built-in defaults. fs must have been populated by RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %q: %w", name, err)
		}
	}

	v.SetConfigType("toml")

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "direct-printing"))
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	discover, _ := fs.GetBool("discover")

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Host:             v.GetString("http.host"),
			Port:             v.GetInt("http.port"),
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		CUPS: CUPSConfig{
			Server:   strings.TrimSuffix(v.GetString("cups.server"), "/"),
			Username: v.GetString("cups.username"),
			Timeout:  v.GetDuration("cups.timeout"),
		},
		Settings: SettingsConfig{
			Path: v.GetString("settings.path"),
		},
		Print: PrintConfig{
			TempDir: v.GetString("print.temp_dir"),
		},
		Names: NamesConfig{
			Replacements: v.GetStringSlice("names.replacements"),
		},
		Discovery: DiscoveryConfig{
			Timeout: v.GetDuration("discovery.timeout"),
		},
		Relay: RelayConfig{
			Enabled:    v.GetBool("relay.enabled"),
			ServerURL:  v.GetString("relay.server_url"),
			Space:      v.GetString("relay.space"),
			Token:      v.GetString("relay.token"),
			Printer:    v.GetString("relay.printer"),
			JobTTL:     v.GetDuration("relay.job_ttl"),
			JobTimeout: v.GetDuration("relay.job_timeout"),
		},
		Discover: discover,
		File:     v.ConfigFileUsed(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if c.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be positive")
	}

	if !strings.HasPrefix(c.CUPS.Server, "ipp://") && !strings.HasPrefix(c.CUPS.Server, "ipps://") {
		return fmt.Errorf("cups.server must be an ipp:// or ipps:// URI, got %q", c.CUPS.Server)
	}

	for _, rule := range c.Names.Replacements {
		if from, _, ok := strings.Cut(rule, "="); !ok || from == "" {
			return fmt.Errorf("names.replacements: invalid rule %q, expected garbled=fixed", rule)
		}
	}

	if c.Relay.Enabled {
		if c.Relay.Space == "" {
			return fmt.Errorf("relay.space is required when relay is enabled")
		}
		if c.Relay.Token == "" {
			return fmt.Errorf("relay.token is required when relay is enabled")
		}
		if c.Relay.Printer == "" {
			return fmt.Errorf("relay.printer is required when relay is enabled")
		}
	}

	return nil
}
