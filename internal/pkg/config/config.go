package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Geofence  GeofenceConfig  `mapstructure:"geofence"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  int `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout int `mapstructure:"write_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	RouteTTL int    `mapstructure:"route_ttl" validate:"gte=0"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr" validate:"required_if=Enabled true"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// SchedulerConfig holds the period of each tracking task. Enabled=false leaves
// the ticks to the Temporal worker.
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	GeofenceInterval time.Duration `mapstructure:"geofence_interval" validate:"gt=0"`
	PickupInterval   time.Duration `mapstructure:"pickup_interval" validate:"gt=0"`
	DropoffInterval  time.Duration `mapstructure:"dropoff_interval" validate:"gt=0"`
}

type GeofenceConfig struct {
	EnterRadius float64 `mapstructure:"enter_radius" validate:"gt=0"`
	ExitBuffer  float64 `mapstructure:"exit_buffer" validate:"gte=0"`
}

type MatchingConfig struct {
	PickupThreshold     float64 `mapstructure:"pickup_threshold" validate:"gt=0"`
	DropoffThreshold    float64 `mapstructure:"dropoff_threshold" validate:"gt=0"`
	ExclusiveAssignment bool    `mapstructure:"exclusive_assignment"`
}

// FeedConfig configures the GTFS-Realtime poller. An empty URL disables it.
type FeedConfig struct {
	GTFSRTURL    string        `mapstructure:"gtfsrt_url" validate:"omitempty,url"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" validate:"required"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRACKER_DATABASE_HOST → database.host
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tracker")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.route_ttl", 300)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.geofence_interval", 30*time.Second)
	v.SetDefault("scheduler.pickup_interval", 30*time.Second)
	v.SetDefault("scheduler.dropoff_interval", time.Minute)
	v.SetDefault("geofence.enter_radius", 150.0)
	v.SetDefault("geofence.exit_buffer", 30.0)
	v.SetDefault("matching.pickup_threshold", 100.0)
	v.SetDefault("matching.dropoff_threshold", 50.0)
	v.SetDefault("matching.exclusive_assignment", false)
	v.SetDefault("feed.gtfsrt_url", "")
	v.SetDefault("feed.poll_interval", 30*time.Second)
	v.SetDefault("feed.http_timeout", 30*time.Second)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "tracking")
}

var validate = newValidator()

// newValidator reports fields by their mapstructure keys.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, describe(fe))
	}
	return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
}

func describe(fe validator.FieldError) string {
	// Config.server.port → server.port
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "gt":
		return field + " must be positive"
	case "gte":
		return field + " must not be negative"
	case "min", "max":
		return fmt.Sprintf("%s out of range, got %v", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %v", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
