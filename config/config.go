package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RIDEHOLD_DATABASE_HOST.
const EnvPrefix = "RIDEHOLD"

type Config struct {
	Env       string          `yaml:"env" split_words:"true"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Events    EventsConfig    `yaml:"events"`
	Holds     HoldsConfig     `yaml:"holds"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Providers ProvidersConfig `yaml:"providers"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type HTTPConfig struct {
	Address    string `yaml:"address" split_words:"true"`
	SwaggerDir string `yaml:"swagger_dir" split_words:"true"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url" split_words:"true"`
	Exchange   string `yaml:"exchange" split_words:"true"`
	RoutingKey string `yaml:"routing_key" split_words:"true"`
}

// EventsConfig selects where hold events go: kafka, rabbitmq or none.
type EventsConfig struct {
	Driver string `yaml:"driver" split_words:"true"`
}

type HoldsConfig struct {
	AuthorizationWindowMinutes int `yaml:"authorization_window_minutes" split_words:"true"`
	LockTTLSeconds             int `yaml:"lock_ttl_seconds" split_words:"true"`
}

func (h HoldsConfig) AuthorizationWindow() time.Duration {
	return time.Duration(h.AuthorizationWindowMinutes) * time.Minute
}

func (h HoldsConfig) LockTTL() time.Duration {
	return time.Duration(h.LockTTLSeconds) * time.Second
}

type SchedulerConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" split_words:"true"`
	BatchSize       int `yaml:"batch_size" split_words:"true"`
}

func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

type ProvidersConfig struct {
	BreakerFailureThreshold int  `yaml:"breaker_failure_threshold" split_words:"true"`
	BreakerOpenSeconds      int  `yaml:"breaker_open_seconds" split_words:"true"`
	PayPalManualApproval    bool `yaml:"paypal_manual_approval" split_words:"true"`
}

func (p ProvidersConfig) BreakerOpenTimeout() time.Duration {
	return time.Duration(p.BreakerOpenSeconds) * time.Second
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" split_words:"true"`
	ServiceName string `yaml:"service_name" split_words:"true"`
}

// LoadConfig reads the YAML file, then applies RIDEHOLD_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "notifications.topic"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "ride_events"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "payment.hold"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "kafka"
	}
	if c.Holds.AuthorizationWindowMinutes == 0 {
		c.Holds.AuthorizationWindowMinutes = 12 * 60
	}
	if c.Holds.LockTTLSeconds == 0 {
		c.Holds.LockTTLSeconds = 30
	}
	if c.Scheduler.IntervalMinutes == 0 {
		c.Scheduler.IntervalMinutes = 5
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 25
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "ridehold"
	}
}

func (c *Config) validate() error {
	switch c.Events.Driver {
	case "kafka", "rabbitmq", "none":
	default:
		return fmt.Errorf("invalid events.driver %q: want kafka, rabbitmq or none", c.Events.Driver)
	}
	if c.Holds.AuthorizationWindowMinutes < 0 || c.Scheduler.BatchSize < 0 {
		return fmt.Errorf("holds and scheduler settings must not be negative")
	}
	return nil
}
