package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/celcat-feed/internal/domain/events"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	App         AppConfig         `yaml:"app"`
	HTTP        HTTPConfig        `yaml:"http"`
	Celcat      CelcatConfig      `yaml:"celcat"`
	Cache       CacheConfig       `yaml:"cache"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Events      EventsConfig      `yaml:"events"`
	Feed        FeedConfig        `yaml:"feed"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Notify      NotifyConfig      `yaml:"notify"`
	Warmup      WarmupConfig      `yaml:"warmup"`
}

// AppConfig selects the deployment environment.
type AppConfig struct {
	Env string `yaml:"env"`
}

// Production reports whether error details must be hidden from clients.
func (a AppConfig) Production() bool {
	return !strings.EqualFold(a.Env, EnvDevelopment)
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// CelcatConfig points at the upstream timetable server.
type CelcatConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	Timeout      time.Duration `yaml:"timeout"`
	ResType      string        `yaml:"resType"`
	CalView      string        `yaml:"calView"`
	ColourScheme string        `yaml:"colourScheme"`
}

// CacheConfig sizes the two cache tiers.
type CacheConfig struct {
	FreshTTL         time.Duration `yaml:"freshTtl"`
	StaleTTL         time.Duration `yaml:"staleTtl"`
	MemoryMaxEntries int           `yaml:"memoryMaxEntries"`
	PruneProbability float64       `yaml:"pruneProbability"`
	KeyPrefix        string        `yaml:"keyPrefix"`
	Redis            RedisConfig   `yaml:"redis"`
	Breaker          BreakerConfig `yaml:"breaker"`
}

// RedisConfig contains connection information for cache storage.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// BreakerConfig guards the remote cache tier.
type BreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// FetchConfig tunes the fetch coordinator.
type FetchConfig struct {
	RetryDelay  time.Duration `yaml:"retryDelay"`
	StatsWindow time.Duration `yaml:"statsWindow"`
	MaxGroups   int           `yaml:"maxGroups"`
}

// EventsConfig feeds the event transformer.
type EventsConfig struct {
	Timezone        string            `yaml:"timezone"`
	DefaultType     string            `yaml:"defaultType"`
	Blacklist       []string          `yaml:"blacklist"`
	HolidayKeywords []string          `yaml:"holidayKeywords"`
	TypeRules       []events.TypeRule `yaml:"typeRules"`
}

// FeedConfig controls the calendar response.
type FeedConfig struct {
	CalendarName         string `yaml:"calendarName"`
	MaxAge               int    `yaml:"maxAge"`
	StaleWhileRevalidate int    `yaml:"staleWhileRevalidate"`
}

// PreferencesConfig locates the token store.
type PreferencesConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// NotifyConfig configures the usage webhook.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhookUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	Queue      QueueConfig   `yaml:"queue"`
}

// QueueConfig enables the Valkey outbox in front of the webhook.
type QueueConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
}

// WarmupConfig protects and schedules cache warmups.
type WarmupConfig struct {
	Token    string `yaml:"token"`
	TopN     int    `yaml:"topN"`
	Schedule string `yaml:"schedule"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("CELCAT_BASE_URL"); v != "" {
		cfg.Celcat.BaseURL = v
	}
	setDuration("CELCAT_TIMEOUT", &cfg.Celcat.Timeout)
	setDuration("CACHE_FRESH_TTL", &cfg.Cache.FreshTTL)
	setDuration("CACHE_STALE_TTL", &cfg.Cache.StaleTTL)
	setInt("CACHE_MEMORY_MAX_ENTRIES", &cfg.Cache.MemoryMaxEntries)
	setBool("CACHE_REDIS_ENABLED", &cfg.Cache.Redis.Enabled)
	if v := os.Getenv("CACHE_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("EVENTS_TIMEZONE"); v != "" {
		cfg.Events.Timezone = v
	}
	if v := os.Getenv("EVENT_BLACKLIST"); v != "" {
		for _, term := range strings.Split(v, ",") {
			if term = strings.TrimSpace(term); term != "" {
				cfg.Events.Blacklist = append(cfg.Events.Blacklist, term)
			}
		}
	}
	if v := os.Getenv("PREFERENCES_POSTGRES_DSN"); v != "" {
		cfg.Preferences.Postgres.DSN = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	setBool("NOTIFY_QUEUE_ENABLED", &cfg.Notify.Queue.Enabled)
	if v := os.Getenv("WARMUP_TOKEN"); v != "" {
		cfg.Warmup.Token = v
	}
	setInt("WARMUP_TOP_N", &cfg.Warmup.TopN)
	if v, ok := os.LookupEnv("WARMUP_SCHEDULE"); ok {
		cfg.Warmup.Schedule = v
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{Env: EnvProduction},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Celcat: CelcatConfig{
			BaseURL:      "https://services-web.cyu.fr/calendar",
			Timeout:      10 * time.Second,
			ResType:      "103",
			CalView:      "month",
			ColourScheme: "3",
		},
		Cache: CacheConfig{
			FreshTTL:         15 * time.Minute,
			StaleTTL:         24 * time.Hour,
			MemoryMaxEntries: 500,
			PruneProbability: 0.1,
			KeyPrefix:        "celcat",
			Breaker: BreakerConfig{
				Threshold: 5,
				Cooldown:  30 * time.Second,
			},
		},
		Fetch: FetchConfig{
			RetryDelay:  500 * time.Millisecond,
			StatsWindow: 24 * time.Hour,
			MaxGroups:   10,
		},
		Events: EventsConfig{
			Timezone:        "Europe/Paris",
			DefaultType:     "Other",
			Blacklist:       append([]string(nil), events.DefaultBlacklist...),
			HolidayKeywords: append([]string(nil), events.DefaultHolidayKeywords...),
			TypeRules:       append([]events.TypeRule(nil), events.DefaultTypeRules...),
		},
		Feed: FeedConfig{
			CalendarName:         "Emploi du temps",
			MaxAge:               300,
			StaleWhileRevalidate: 3600,
		},
		Preferences: PreferencesConfig{
			Postgres: PostgresConfig{MaxConns: 4},
		},
		Notify: NotifyConfig{
			Timeout: 5 * time.Second,
			Queue:   QueueConfig{Key: "celcat:notifications"},
		},
		Warmup: WarmupConfig{
			TopN: 20,
		},
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Events.Timezone)
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if env := strings.ToLower(c.App.Env); env != EnvProduction && env != EnvDevelopment {
		return fmt.Errorf("app.env must be %q or %q", EnvProduction, EnvDevelopment)
	}
	if strings.TrimSpace(c.Celcat.BaseURL) == "" {
		return errors.New("celcat.baseUrl cannot be empty")
	}
	if c.Celcat.Timeout <= 0 {
		return errors.New("celcat.timeout must be positive")
	}
	if c.Cache.FreshTTL <= 0 {
		return errors.New("cache.freshTtl must be positive")
	}
	if c.Cache.StaleTTL <= c.Cache.FreshTTL {
		return errors.New("cache.staleTtl must be greater than cache.freshTtl")
	}
	if c.Cache.MemoryMaxEntries <= 0 {
		return errors.New("cache.memoryMaxEntries must be positive")
	}
	if c.Cache.PruneProbability < 0 || c.Cache.PruneProbability > 1 {
		return errors.New("cache.pruneProbability must be within [0,1]")
	}
	if c.Cache.Redis.Enabled && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return errors.New("cache.redis.addr cannot be empty when redis cache is enabled")
	}
	if c.Cache.Breaker.Threshold <= 0 {
		return errors.New("cache.breaker.threshold must be positive")
	}
	if c.Fetch.MaxGroups <= 0 {
		return errors.New("fetch.maxGroups must be positive")
	}
	if c.Fetch.RetryDelay < 0 {
		return errors.New("fetch.retryDelay cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("events.timezone: %w", err)
	}
	if c.Notify.Queue.Enabled && !c.Cache.Redis.Enabled {
		return errors.New("notify.queue requires cache.redis to be enabled")
	}
	return nil
}
