package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("tracker")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "tracker", cfg.Telemetry.ServiceName)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.GeofenceInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PickupInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.DropoffInterval)
	assert.Equal(t, 150.0, cfg.Geofence.EnterRadius)
	assert.Equal(t, 30.0, cfg.Geofence.ExitBuffer)
	assert.Equal(t, 100.0, cfg.Matching.PickupThreshold)
	assert.Equal(t, 50.0, cfg.Matching.DropoffThreshold)
	assert.False(t, cfg.Matching.ExclusiveAssignment)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRACKER_SERVER_PORT", "9090")
	t.Setenv("TRACKER_MATCHING_PICKUP_THRESHOLD", "75")
	t.Setenv("TRACKER_SCHEDULER_DROPOFF_INTERVAL", "2m")

	cfg, err := Load("tracker")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 75.0, cfg.Matching.PickupThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.DropoffInterval)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("TRACKER_LOG_LEVEL", "verbose")

	_, err := Load("tracker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level must be one of")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "tracker", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/tracker?sslmode=disable", d.DSN())
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database:  DatabaseConfig{Host: "localhost", Port: 5432, User: "transit", DBName: "tracker", SSLMode: "disable"},
		NATS:      NATSConfig{URL: "nats://localhost:4222"},
		Valkey:    ValkeyConfig{Addr: "localhost:6379", RouteTTL: 300},
		Telemetry: TelemetryConfig{ServiceName: "tracker"},
		Log:       LogConfig{Level: "info", Format: "json"},
		Scheduler: SchedulerConfig{GeofenceInterval: time.Second, PickupInterval: time.Second, DropoffInterval: time.Second},
		Geofence:  GeofenceConfig{EnterRadius: 150, ExitBuffer: 30},
		Matching:  MatchingConfig{PickupThreshold: 100, DropoffThreshold: 50},
		Feed:      FeedConfig{PollInterval: time.Second, HTTPTimeout: time.Second},
		Temporal:  TemporalConfig{HostPort: "localhost:7233", Namespace: "default", TaskQueue: "tracking"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port out of range"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host is required"},
		{"missing nats", func(c *Config) { c.NATS.URL = "" }, "nats.url is required"},
		{"zero interval", func(c *Config) { c.Scheduler.PickupInterval = 0 }, "scheduler.pickup_interval must be positive"},
		{"negative buffer", func(c *Config) { c.Geofence.ExitBuffer = -1 }, "geofence.exit_buffer must not be negative"},
		{"bad feed url", func(c *Config) { c.Feed.GTFSRTURL = "not a url" }, "feed.gtfsrt_url must be a URL"},
		{"tempo required when enabled", func(c *Config) { c.Telemetry.Enabled = true }, "telemetry.tempo_addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "config validation failed:"))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Database.User = ""
	cfg.Temporal.TaskQueue = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user is required")
	assert.Contains(t, err.Error(), "temporal.task_queue is required")
}
