package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Capture    CaptureConfig    `yaml:"capture"`
	Movement   MovementConfig   `yaml:"movement"`
	Presence   PresenceConfig   `yaml:"presence"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration for position ingestion
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// CaptureConfig holds the capture policy. Probability is a percentage in
// [0,100]: a hunter inside the radius commits a capture only when a uniform
// draw lands below it, which deliberately keeps in-range captures from being
// instant.
type CaptureConfig struct {
	RadiusMeters float64       `yaml:"radius_meters"`
	Cooldown     time.Duration `yaml:"cooldown"`
	Probability  int           `yaml:"probability"`
}

// MovementConfig holds bot movement tuning
type MovementConfig struct {
	PursuitGain      float64 `yaml:"pursuit_gain"`
	FlightGain       float64 `yaml:"flight_gain"`
	MaxStepMeters    float64 `yaml:"max_step_meters"`
	JitterMeters     float64 `yaml:"jitter_meters"`
	WanderStepMeters float64 `yaml:"wander_step_meters"`
	ThreatMeters     float64 `yaml:"threat_meters"`
	SpawnLat         float64 `yaml:"spawn_lat"`
	SpawnLng         float64 `yaml:"spawn_lng"`
	SpawnRadius      float64 `yaml:"spawn_radius_meters"`
}

// PresenceConfig holds the two activity windows: the short one gates which
// positions the engine treats as live during a tick, the long one drives
// human-facing online indicators.
type PresenceConfig struct {
	SimulationWindow time.Duration `yaml:"simulation_window"`
	OnlineWindow     time.Duration `yaml:"online_window"`
}

// SimulationConfig holds simulation loop configuration
type SimulationConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	TickDeadline  time.Duration `yaml:"tick_deadline"`
	DemoAutoStart bool          `yaml:"demo_auto_start"`
	DemoAutoReset bool          `yaml:"demo_auto_reset"`
	ResetDelay    time.Duration `yaml:"reset_delay"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "position-reports"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "manhunt-engine"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 1 * time.Second
	}

	// Capture defaults
	if c.Capture.RadiusMeters == 0 {
		c.Capture.RadiusMeters = 50
	}
	if c.Capture.Cooldown == 0 {
		c.Capture.Cooldown = 120 * time.Second
	}
	if c.Capture.Probability == 0 {
		c.Capture.Probability = 30
	}

	// Movement defaults
	if c.Movement.PursuitGain == 0 {
		c.Movement.PursuitGain = 0.25
	}
	if c.Movement.FlightGain == 0 {
		c.Movement.FlightGain = 0.4
	}
	if c.Movement.MaxStepMeters == 0 {
		c.Movement.MaxStepMeters = 60
	}
	if c.Movement.JitterMeters == 0 {
		c.Movement.JitterMeters = 3
	}
	if c.Movement.WanderStepMeters == 0 {
		c.Movement.WanderStepMeters = 15
	}
	if c.Movement.ThreatMeters == 0 {
		c.Movement.ThreatMeters = 200
	}
	if c.Movement.SpawnLat == 0 && c.Movement.SpawnLng == 0 {
		c.Movement.SpawnLat = 48.2082
		c.Movement.SpawnLng = 16.3738
	}
	if c.Movement.SpawnRadius == 0 {
		c.Movement.SpawnRadius = 500
	}

	// Presence defaults
	if c.Presence.SimulationWindow == 0 {
		c.Presence.SimulationWindow = 120 * time.Second
	}
	if c.Presence.OnlineWindow == 0 {
		c.Presence.OnlineWindow = 300 * time.Second
	}

	// Simulation defaults
	if c.Simulation.Interval == 0 {
		c.Simulation.Interval = 5 * time.Second
	}
	if c.Simulation.RetryBackoff == 0 {
		c.Simulation.RetryBackoff = 10 * time.Second
	}
	if c.Simulation.TickDeadline == 0 {
		c.Simulation.TickDeadline = 30 * time.Second
	}
	if c.Simulation.ResetDelay == 0 {
		c.Simulation.ResetDelay = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Simulation.Enabled = true
	return cfg
}
