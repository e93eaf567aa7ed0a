package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultPort        = 8080
	DefaultHost        = "0.0.0.0"
	DefaultMetricsPort = 9090
	DefaultEnvironment = "development"
	DefaultLogLevel    = "info"

	// DefaultFileWriteDelay gives a config-file write time to land on disk
	// before the reload handler re-reads it (mirrors what the teacher
	// observed on Windows, where the fsnotify event fires early).
	DefaultFileWriteDelay = 150 * time.Millisecond
	reloadDebounce        = 500 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns the configuration used when --config is absent
// (spec.md §6): a single gateway on DefaultHost:DefaultPort with one
// catch-all route to a loopback backend (mirroring the teacher's own
// assumption of a locally running upstream), signal handling and
// graceful shutdown on.
func DefaultConfig() *Config {
	return &Config{
		Environment:             DefaultEnvironment,
		LogLevel:                DefaultLogLevel,
		GracefulShutdown:        true,
		GracefulShutdownTimeout: 15 * time.Second,
		HandleSignals:           true,
		Metrics:                 true,
		MetricsPort:             DefaultMetricsPort,
		Gateways: []GatewayConfig{
			{
				Host:              DefaultHost,
				Port:              DefaultPort,
				ConnectionTimeout: 10 * time.Second,
				RequestTimeout:    30 * time.Second,
				MaxConnections:    10000,
				KeepAlive:         true,
				KeepAliveTimeout:  90 * time.Second,
				Middleware:        []string{"request-id", "logging"},
				Routes: []RouteConfig{
					{
						ID:          "default",
						PathPattern: "/*",
						Priority:    0,
						Enabled:     true,
						Upstream: UpstreamConfig{
							LoadBalancingStrategy: "round-robin",
							Timeout:               30 * time.Second,
							Servers: []ServerConfig{
								{ID: "local", Host: "127.0.0.1", Port: 8081, Protocol: "http", Weight: 1, Enabled: true},
							},
						},
					},
				},
			},
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     "json",
			Output:     "stdout",
			Theme:      "default",
			LogDir:     "./logs",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Flags registers the CLI flags spec.md §6 names onto fs, returning it for
// chaining. Call before fs.Parse.
func Flags(fs *pflag.FlagSet) *pflag.FlagSet {
	fs.String("config", "", "path to a JSON or YAML configuration file")
	fs.Int("port", 0, "override the first gateway's listen port")
	fs.String("host", "", "override the first gateway's listen host")
	fs.String("log-level", "", "override the log level (debug, info, warn, error)")
	fs.String("env", "", "override the environment (development, production, test)")
	fs.Int("metrics-port", 0, "override the /metrics listen port")
	return fs
}

// Load reads configuration from the file named by --config (or the
// GATEWIRE_CONFIG_FILE environment variable), overlays environment
// variables and CLI flags, and validates the result. onConfigChange, if
// non-nil, is invoked after a debounced file-watch reload; per spec.md §1
// this is observability only — it never swaps the live route table.
func Load(fs *pflag.FlagSet, onConfigChange func(*Config)) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("GATEWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("binding cli flags: %w", err)
		}
	}

	configFile := v.GetString("config")
	if configFile == "" {
		configFile = os.Getenv("GATEWIRE_CONFIG_FILE")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if lower := strings.ToLower(configFile); strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decoding config: %w", err)
		}
	}

	applyFlagOverrides(cfg, fs)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.WatchConfig()
		if onConfigChange != nil {
			v.OnConfigChange(func(e fsnotify.Event) {
				reloadMutex.Lock()
				defer reloadMutex.Unlock()

				now := time.Now()
				if now.Sub(lastReload) < reloadDebounce {
					return
				}
				lastReload = now

				time.Sleep(DefaultFileWriteDelay)
				reloaded := DefaultConfig()
				if err := v.Unmarshal(reloaded); err != nil {
					onConfigChange(nil)
					return
				}
				if err := Validate(reloaded); err != nil {
					onConfigChange(nil)
					return
				}
				onConfigChange(reloaded)
			})
		}
	}

	return cfg, nil
}

func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil || len(cfg.Gateways) == 0 {
		return
	}
	if fs.Changed("port") {
		if port, err := fs.GetInt("port"); err == nil {
			cfg.Gateways[0].Port = port
		}
	}
	if fs.Changed("host") {
		if host, err := fs.GetString("host"); err == nil {
			cfg.Gateways[0].Host = host
		}
	}
	if fs.Changed("log-level") {
		if level, err := fs.GetString("log-level"); err == nil {
			cfg.LogLevel = level
			cfg.Logging.Level = level
		}
	}
	if fs.Changed("env") {
		if env, err := fs.GetString("env"); err == nil {
			cfg.Environment = env
		}
	}
	if fs.Changed("metrics-port") {
		if port, err := fs.GetInt("metrics-port"); err == nil {
			cfg.MetricsPort = port
		}
	}
}
