package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"20"`
			Burst int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Engine struct {
		CycleInterval     time.Duration `yaml:"cycle_interval" default:"30s" validate:"gt=0"`
		FallbackThreshold float64       `yaml:"fallback_threshold" default:"70" validate:"gte=0,lte=100"`
		EventMargin       float64       `yaml:"event_margin" default:"5" validate:"gte=0"`
		AdvisoryShiftCap  float64       `yaml:"advisory_shift_cap" default:"5" validate:"gte=0"`
		CommandQueueSize  int           `yaml:"command_queue_size" default:"256" validate:"gt=0"`
		AlwaysOpenStaleX  float64       `yaml:"always_open_stale_multiplier" default:"2" validate:"gte=1"`
	} `yaml:"engine"`
	Refresh struct {
		Symbols        []string      `yaml:"symbols"`
		ActiveInterval time.Duration `yaml:"active_interval" default:"30s" validate:"gt=0"`
		IdleInterval   time.Duration `yaml:"idle_interval" default:"300s" validate:"gt=0"`
		StaleAfter     time.Duration `yaml:"stale_after" default:"180s" validate:"gt=0"`
		FetchCount     int           `yaml:"fetch_count" default:"200" validate:"gte=30"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" default:"5s" validate:"gt=0"`
		Retries        int           `yaml:"retries" default:"3" validate:"gte=0,lte=10"`
		BackoffMin     time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"2s"`
		Workers        int           `yaml:"workers" default:"8" validate:"gt=0"`
		Weekend        struct {
			Enabled   bool   `yaml:"enabled" default:"true"`
			StartDay  string `yaml:"start_day" default:"friday" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
			StartHour int    `yaml:"start_hour" default:"21" validate:"gte=0,lte=23"`
			EndDay    string `yaml:"end_day" default:"sunday" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
			EndHour   int    `yaml:"end_hour" default:"21" validate:"gte=0,lte=23"`
		} `yaml:"weekend"`
	} `yaml:"refresh"`
	Cache struct {
		BarCapacity int           `yaml:"bar_capacity" default:"500" validate:"gte=30"`
		MinWindow   int           `yaml:"min_window" default:"30" validate:"gte=2"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"15s"`
	} `yaml:"cache"`
	Threshold struct {
		Floor       float64 `yaml:"floor" default:"50" validate:"gte=0,lte=100"`
		Ceiling     float64 `yaml:"ceiling" default:"95" validate:"gte=0,lte=100"`
		DefaultBase float64 `yaml:"default_base" default:"70" validate:"gt=0"`
		BiasFloor   float64 `yaml:"bias_floor" default:"0.8" validate:"gt=0"`
		BiasCeiling float64 `yaml:"bias_ceiling" default:"1.2" validate:"gt=0"`
	} `yaml:"threshold"`
	BarSource struct {
		Type      string        `yaml:"type" default:"http" validate:"oneof=http clickhouse"`
		URL       string        `yaml:"url"`
		Interval  string        `yaml:"interval" default:"1m"`
		Table     string        `yaml:"table" default:"plansentry.bars_1m"`
		Timeout   time.Duration `yaml:"timeout" default:"5s"`
		RateLimit struct {
			RPS   float64 `yaml:"rps" default:"10" validate:"gt=0"`
			Burst int     `yaml:"burst" default:"5" validate:"gt=0"`
		} `yaml:"rate_limit"`
		Breaker struct {
			ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"5" validate:"gt=0"`
			OpenTimeout         time.Duration `yaml:"open_timeout" default:"30s"`
		} `yaml:"breaker"`
	} `yaml:"bar_source"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Symbols        []string      `yaml:"symbols"`
		Interval       string        `yaml:"interval" default:"1m"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		MaxRPS         int           `yaml:"max_rps" default:"5"`
	} `yaml:"stream"`
	Kafka struct {
		Enabled         bool     `yaml:"enabled"`
		Brokers         []string `yaml:"brokers"`
		ExecutionsTopic string   `yaml:"executions_topic" default:"plansentry.executions"`
		CommandsTopic   string   `yaml:"commands_topic" default:"plansentry.plan-commands"`
		RequiredAcks    int      `yaml:"required_acks" default:"-1"`
		Compression     string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"plansentry"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"plansentry"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"plansentry"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		MinIdle  int    `yaml:"min_idle" default:"2"`
	} `yaml:"redis"`
	Persistence struct {
		MaxAge       time.Duration `yaml:"max_age" default:"1h"`
		SaveInterval time.Duration `yaml:"save_interval" default:"60s"`
	} `yaml:"persistence"`
	Learning struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"learning"`
	ProfilesPath string `yaml:"profiles_path" default:"config/profiles.yaml" validate:"required"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file on top of struct defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML document, applies defaults and validates it.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present) and config from YAML, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PLANSENTRY_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Refresh.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BAR_SOURCE_URL"); v != "" {
		c.BarSource.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LEARNING_URL"); v != "" {
		c.Learning.URL = v
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Threshold.Floor > c.Threshold.Ceiling {
		return fmt.Errorf("threshold.floor %.2f exceeds ceiling %.2f", c.Threshold.Floor, c.Threshold.Ceiling)
	}
	if c.Threshold.BiasFloor > c.Threshold.BiasCeiling {
		return fmt.Errorf("threshold.bias_floor exceeds bias_ceiling")
	}
	if c.Cache.MinWindow > c.Cache.BarCapacity {
		return fmt.Errorf("cache.min_window %d exceeds bar_capacity %d", c.Cache.MinWindow, c.Cache.BarCapacity)
	}
	if c.BarSource.Type == "http" && c.BarSource.URL == "" {
		return errors.New("bar_source.url is required for http source")
	}
	if c.BarSource.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return errors.New("bar_source.type clickhouse requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return errors.New("stream.url is required when stream is enabled")
	}
	return nil
}

// WeekendWindow returns the configured closed-market window bounds.
func (c *Config) WeekendWindow() (startDay time.Weekday, startHour int, endDay time.Weekday, endHour int) {
	w := c.Refresh.Weekend
	return parseWeekday(w.StartDay), w.StartHour, parseWeekday(w.EndDay), w.EndHour
}

func parseWeekday(s string) time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d
		}
	}
	return time.Sunday
}
