package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServerPort              string        `yaml:"server_port"                env:"SERVER_PORT"                env-default:"8080"`
	ServerReadHeaderTimeout time.Duration `yaml:"server_read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT" env-default:"10s"`
	ServerWriteTimeout      time.Duration `yaml:"server_write_timeout"       env:"SERVER_WRITE_TIMEOUT"       env-default:"30s"`
	ServerIdleTimeout       time.Duration `yaml:"server_idle_timeout"        env:"SERVER_IDLE_TIMEOUT"        env-default:"120s"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout"           env:"SHUTDOWN_TIMEOUT"           env-default:"10s"`
	RequestTimeout          time.Duration `yaml:"request_timeout"            env:"REQUEST_TIMEOUT"            env-default:"30s"`

	StoreDriver         string        `yaml:"store_driver"           env:"STORE_DRIVER"           env-default:"postgres"`
	DatabaseURL         string        `yaml:"database_url"           env:"DATABASE_URL"`
	DBMaxConns          int32         `yaml:"db_max_conns"           env:"DB_MAX_CONNS"           env-default:"10"`
	DBMinConns          int32         `yaml:"db_min_conns"           env:"DB_MIN_CONNS"           env-default:"2"`
	DBMaxConnLifetime   time.Duration `yaml:"db_max_conn_lifetime"   env:"DB_MAX_CONN_LIFETIME"   env-default:"30m"`
	DBMaxConnIdleTime   time.Duration `yaml:"db_max_conn_idle_time"  env:"DB_MAX_CONN_IDLE_TIME"  env-default:"5m"`
	DBHealthCheckPeriod time.Duration `yaml:"db_health_check_period" env:"DB_HEALTH_CHECK_PERIOD" env-default:"30s"`

	JWTSecret         string   `yaml:"jwt_secret"           env:"JWT_SECRET"`
	JWTIssuer         string   `yaml:"jwt_issuer"           env:"JWT_ISSUER"`
	CORSOrigins       []string `yaml:"cors_origins"         env:"CORS_ORIGINS"         env-default:"*" env-separator:","`
	RateLimitRPM      int      `yaml:"rate_limit_rpm"       env:"RATE_LIMIT_RPM"       env-default:"100"`
	WriteRateLimitRPM int      `yaml:"write_rate_limit_rpm" env:"WRITE_RATE_LIMIT_RPM" env-default:"30"`

	RetentionDays          int    `yaml:"retention_days"           env:"RETENTION_DAYS"           env-default:"7"`
	RetentionSweepSchedule string `yaml:"retention_sweep_schedule" env:"RETENTION_SWEEP_SCHEDULE" env-default:"0 3 * * *"`
	DefaultActor           string `yaml:"default_actor"            env:"DEFAULT_ACTOR"            env-default:"admin"`

	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"  env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"pretty"`
}

// Load reads .env into the environment, then the YAML file named by
// CONFIG_PATH if set, then environment variables. Environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.DefaultActor = strings.TrimSpace(c.DefaultActor)

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORSOrigins = origins
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT cannot be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
		if c.DBMinConns > c.DBMaxConns {
			errs = append(errs, errors.New("DB_MIN_CONNS cannot exceed DB_MAX_CONNS"))
		}
		if c.DBMaxConnLifetime < 0 || c.DBMaxConnIdleTime < 0 || c.DBHealthCheckPeriod < 0 {
			errs = append(errs, errors.New("DB pool durations cannot be negative"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}

	if c.RetentionDays <= 0 {
		errs = append(errs, errors.New("RETENTION_DAYS must be positive"))
	}
	if c.RetentionSweepSchedule != "" {
		if _, err := cron.ParseStandard(c.RetentionSweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("RETENTION_SWEEP_SCHEDULE: %w", err))
		}
	}
	if c.DefaultActor == "" {
		errs = append(errs, errors.New("DEFAULT_ACTOR cannot be empty"))
	}

	return errors.Join(errs...)
}
