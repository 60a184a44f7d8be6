package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StrategyHealthAware = "health-aware"
	StrategyNaive       = "naive"
)

var pathPattern = regexp.MustCompile(`^/`)

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	AdminAddress string `mapstructure:"admin_address"`
	Environment  string `mapstructure:"environment"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
	Path     string `mapstructure:"path"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type ProxyConfig struct {
	Timeout string `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Capacity    int    `mapstructure:"capacity"`
	ServiceName string `mapstructure:"service_name"`
}

type AlertsConfig struct {
	Window    string  `mapstructure:"window"`
	ErrorRate float64 `mapstructure:"error_rate"`
	Latency   string  `mapstructure:"latency"`
}

type EndpointConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Endpoints   []EndpointConfig  `mapstructure:"endpoints"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Load reads config.yaml from ./config or the working directory.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the given file, or searches the default locations when path
// is empty. A missing file in the default locations is not an error. Variables
// from a .env file in the working directory are exported first without
// overriding the process environment.
func LoadFrom(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if raw := v.GetString("endpoint_urls"); raw != "" {
		cfg.Endpoints = parseEndpointList(raw)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8001")
	v.SetDefault("server.admin_address", ":8005")
	v.SetDefault("health_check.interval", "30s")
	v.SetDefault("health_check.timeout", "5s")
	v.SetDefault("health_check.path", "/health")
	v.SetDefault("strategy.type", StrategyHealthAware)
	v.SetDefault("proxy.timeout", "30s")
	v.SetDefault("metrics.capacity", 1000)
	v.SetDefault("metrics.service_name", "load_balancer")
	v.SetDefault("alerts.window", "5m")
	v.SetDefault("alerts.error_rate", 0.10)
	v.SetDefault("alerts.latency", "2s")
	v.SetDefault("endpoint_urls", "")
	v.SetDefault("logging.level", LogLevelInfo)
}

// parseEndpointList accepts a comma separated list of URLs, each optionally
// prefixed with "name=".
func parseEndpointList(raw string) []EndpointConfig {
	var out []EndpointConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ec := EndpointConfig{URL: item}
		if name, rawURL, ok := strings.Cut(item, "="); ok && !strings.Contains(name, "/") {
			ec.Name, ec.URL = name, rawURL
		}
		out = append(out, ec)
	}
	return out
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.AdminAddress,
						validation.Required,
						validation.By(validateHostPort),
						validation.NotIn(sc.Address).Error("must differ from the proxy address"),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.Timeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.Path,
						validation.Required,
						validation.Match(pathPattern).Error("must start with /"),
					),
				)
			}),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In(StrategyHealthAware, StrategyNaive),
					),
				)
			}),
		),
		validation.Field(&c.Proxy,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Timeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Capacity, validation.Required, validation.Min(1)),
					validation.Field(&mc.ServiceName, validation.Required),
				)
			}),
		),
		validation.Field(&c.Alerts,
			validation.Required,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AlertsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AlertsConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Window, validation.Required, validation.By(validateDuration)),
					validation.Field(&ac.ErrorRate, validation.Required, validation.Min(0.0), validation.Max(1.0)),
					validation.Field(&ac.Latency, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Endpoints,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateEndpointConfig)),
			validation.By(validateUniqueNames),
		),
	)
}

// Durations parsed from their string form. Validate guarantees they parse.

func (h HealthCheckConfig) IntervalDuration() time.Duration { return mustDuration(h.Interval) }
func (h HealthCheckConfig) TimeoutDuration() time.Duration  { return mustDuration(h.Timeout) }
func (p ProxyConfig) TimeoutDuration() time.Duration        { return mustDuration(p.Timeout) }
func (a AlertsConfig) WindowDuration() time.Duration        { return mustDuration(a.Window) }
func (a AlertsConfig) LatencyDuration() time.Duration       { return mustDuration(a.Latency) }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateEndpointConfig(value interface{}) error {
	ec, ok := value.(EndpointConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an EndpointConfig")
	}

	if ec.URL == "" {
		return validation.NewError("validation_empty_url", "endpoint URL cannot be empty")
	}

	parsedURL, err := url.Parse(ec.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateUniqueNames(value interface{}) error {
	endpoints, ok := value.([]EndpointConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of EndpointConfig")
	}

	seen := make(map[string]struct{}, len(endpoints))
	for _, ec := range endpoints {
		name := ec.Name
		if name == "" {
			if u, err := url.Parse(ec.URL); err == nil {
				name = u.Host
			}
		}
		if _, dup := seen[name]; dup {
			return validation.NewError("validation_duplicate_endpoint", fmt.Sprintf("duplicate endpoint name %q", name))
		}
		seen[name] = struct{}{}
	}

	return nil
}
