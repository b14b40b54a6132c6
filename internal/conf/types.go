package conf

import "time"

// Bootstrap is the root configuration for the service.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Log        *Log
	Audit      *Audit
	Resilience *Resilience
	Ops        *Ops
}

// Server holds the transport listener configuration.
type Server struct {
	Http *ServerHTTP
	Grpc *ServerGRPC
}

// ServerHTTP configures the HTTP listener.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// ServerGRPC configures the gRPC listener.
type ServerGRPC struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds backing store configuration.
type Data struct {
	Database *Database
	Redis    *Redis
	Kafka    *Kafka
}

// Database configures the relational audit store.
type Database struct {
	Driver          string
	Source          string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Redis configures the cache and rate counters. Redis is optional: when it is
// unreachable the service degrades to in-memory behavior.
type Redis struct {
	Network      string
	Addr         string
	Password     string
	Db           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the SIEM export stream. Empty brokers disable the export.
type Kafka struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Log configures the zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Audit configures the audit trail.
type Audit struct {
	// SigningKey enables HMAC tamper evidence; empty disables signing.
	SigningKey string
	// QueueSize bounds the async write buffer.
	QueueSize int
	// AlertQueueSize bounds the alert dispatch queue.
	AlertQueueSize int
	// AlertTimeout bounds one alert dispatch attempt.
	AlertTimeout time.Duration
	// Retention is how long persisted events are kept; zero keeps forever.
	Retention time.Duration
	// Webhook is the alert delivery endpoint; empty URL logs alerts only.
	Webhook *Webhook
}

// Webhook configures alert delivery.
type Webhook struct {
	Url        string
	Timeout    time.Duration
	MaxRetries int
}

// Resilience configures the named circuit breakers and retry policies
// registered at startup. Operators add entries without code changes.
type Resilience struct {
	Breakers map[string]*BreakerPolicy
	Retries  map[string]*RetryPolicy
	// CacheSize bounds the last-known-good fallback cache.
	CacheSize int
	// CacheTTL expires last-known-good entries.
	CacheTTL time.Duration
}

// BreakerPolicy configures one named circuit breaker.
type BreakerPolicy struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

// RetryPolicy configures one named retry policy. DisableJitter is inverted so
// the zero value keeps jitter on.
type RetryPolicy struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	Multiplier    float64       `mapstructure:"multiplier"`
	DisableJitter bool          `mapstructure:"disable_jitter"`
}

// Ops configures the operator API surface.
type Ops struct {
	// Token authenticates ops API clients.
	Token string
}
