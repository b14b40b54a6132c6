// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with TRADEGUARD_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or TRADEGUARD_DATA_DATABASE_SOURCE: MySQL connection string
//   - OPS_TOKEN or TRADEGUARD_OPS_TOKEN: operator API bearer token
//
// Optional environment variables:
//   - AUDIT_SIGNING_KEY or TRADEGUARD_AUDIT_SIGNING_KEY: HMAC key for
//     tamper-evident audit signatures (empty disables signing)
//
// Parameters:
//   - configPath: Path to the configuration file or directory
//
// Returns:
//   - *Bootstrap: Loaded configuration
//   - error: Configuration loading or validation error
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with TRADEGUARD_ prefix
	v.SetEnvPrefix("TRADEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without TRADEGUARD_ prefix) for compatibility
	// Bind specific environment variables for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "TRADEGUARD_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "TRADEGUARD_DATA_REDIS_ADDR")
	_ = v.BindEnv("audit.signing_key", "AUDIT_SIGNING_KEY", "TRADEGUARD_AUDIT_SIGNING_KEY")
	_ = v.BindEnv("ops.token", "OPS_TOKEN", "TRADEGUARD_OPS_TOKEN")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
			Grpc: &ServerGRPC{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: v.GetDuration("server.grpc.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver:          v.GetString("data.database.driver"),
				Source:          v.GetString("data.database.source"),
				MaxIdleConns:    v.GetInt("data.database.max_idle_conns"),
				MaxOpenConns:    v.GetInt("data.database.max_open_conns"),
				ConnMaxLifetime: v.GetDuration("data.database.conn_max_lifetime"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt("data.redis.db"),
				DialTimeout:  v.GetDuration("data.redis.dial_timeout"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
			Kafka: &Kafka{
				Brokers:      v.GetStringSlice("data.kafka.brokers"),
				Topic:        v.GetString("data.kafka.topic"),
				BatchTimeout: v.GetDuration("data.kafka.batch_timeout"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
		Audit: &Audit{
			SigningKey:     v.GetString("audit.signing_key"),
			QueueSize:      v.GetInt("audit.queue_size"),
			AlertQueueSize: v.GetInt("audit.alert_queue_size"),
			AlertTimeout:   v.GetDuration("audit.alert_timeout"),
			Retention:      v.GetDuration("audit.retention"),
			Webhook: &Webhook{
				Url:        v.GetString("audit.webhook.url"),
				Timeout:    v.GetDuration("audit.webhook.timeout"),
				MaxRetries: v.GetInt("audit.webhook.max_retries"),
			},
		},
		Resilience: &Resilience{
			CacheSize: v.GetInt("resilience.cache_size"),
			CacheTTL:  v.GetDuration("resilience.cache_ttl"),
		},
		Ops: &Ops{
			Token: v.GetString("ops.token"),
		},
	}

	// The named policy maps have operator-chosen keys, so they are decoded
	// rather than read field by field.
	if err := v.UnmarshalKey("resilience.breakers", &bc.Resilience.Breakers); err != nil {
		return nil, fmt.Errorf("failed to parse resilience.breakers: %w", err)
	}
	if err := v.UnmarshalKey("resilience.retries", &bc.Resilience.Retries); err != nil {
		return nil, fmt.Errorf("failed to parse resilience.retries: %w", err)
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", time.Minute)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment
	v.SetDefault("data.database.max_idle_conns", 10)
	v.SetDefault("data.database.max_open_conns", 50)
	v.SetDefault("data.database.conn_max_lifetime", time.Hour)

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.dial_timeout", time.Second)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Kafka defaults; no brokers means the SIEM export stays off
	v.SetDefault("data.kafka.topic", "tradeguard.audit")
	v.SetDefault("data.kafka.batch_timeout", time.Second)

	// Audit defaults
	// Note: audit.signing_key is optional; empty runs without signatures
	v.SetDefault("audit.queue_size", 1000)
	v.SetDefault("audit.alert_queue_size", 256)
	v.SetDefault("audit.alert_timeout", 10*time.Second)
	v.SetDefault("audit.webhook.timeout", 10*time.Second)
	v.SetDefault("audit.webhook.max_retries", 3)

	// Resilience defaults
	v.SetDefault("resilience.cache_size", 512)
	v.SetDefault("resilience.cache_ttl", 10*time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	// Check required ops API configuration
	if bc.Ops == nil || bc.Ops.Token == "" {
		missingFields = append(missingFields, "ops.token (OPS_TOKEN)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	return nil
}
