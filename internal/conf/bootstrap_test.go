package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	// Create a minimal valid config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `server:
  http:
    addr: :8080
  grpc:
    addr: :9000
data:
  database:
    driver: mysql
  redis:
    addr: 127.0.0.1:6379
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set required environment variables
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/testdb")
	t.Setenv("OPS_TOKEN", "test-ops-token")

	// Load configuration
	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	// Verify server defaults
	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "tcp", bc.Server.Http.Network)
	assert.Equal(t, time.Minute, bc.Server.Http.Timeout)

	assert.Equal(t, ":9000", bc.Server.Grpc.Addr)
	assert.Equal(t, "tcp", bc.Server.Grpc.Network)
	assert.Equal(t, time.Minute, bc.Server.Grpc.Timeout)

	// Verify data defaults
	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/testdb", bc.Data.Database.Source)
	assert.Equal(t, 10, bc.Data.Database.MaxIdleConns)
	assert.Equal(t, 50, bc.Data.Database.MaxOpenConns)

	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, "tcp", bc.Data.Redis.Network)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.WriteTimeout)

	// Kafka export disabled by default
	assert.Empty(t, bc.Data.Kafka.Brokers)
	assert.Equal(t, "tradeguard.audit", bc.Data.Kafka.Topic)

	// Verify audit defaults
	assert.Empty(t, bc.Audit.SigningKey)
	assert.Equal(t, 1000, bc.Audit.QueueSize)
	assert.Equal(t, 256, bc.Audit.AlertQueueSize)
	assert.Equal(t, 10*time.Second, bc.Audit.AlertTimeout)

	// Verify ops token from environment
	assert.Equal(t, "test-ops-token", bc.Ops.Token)

	// Verify log defaults
	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
}

func TestNewBootstrap_ResiliencePolicies(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `resilience:
  cache_size: 128
  cache_ttl: 5m
  breakers:
    pricing-api:
      failure_threshold: 5
      recovery_timeout: 30s
      half_open_max_calls: 2
    settlement-db:
      failure_threshold: 3
      recovery_timeout: 10s
  retries:
    pricing-api:
      max_attempts: 4
      initial_delay: 100ms
      max_delay: 5s
      multiplier: 2.0
    settlement-db:
      max_attempts: 2
      initial_delay: 50ms
      max_delay: 1s
      multiplier: 2.0
      disable_jitter: true
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/testdb")
	t.Setenv("OPS_TOKEN", "test-ops-token")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, 128, bc.Resilience.CacheSize)
	assert.Equal(t, 5*time.Minute, bc.Resilience.CacheTTL)

	require.Len(t, bc.Resilience.Breakers, 2)
	pricing := bc.Resilience.Breakers["pricing-api"]
	require.NotNil(t, pricing)
	assert.Equal(t, 5, pricing.FailureThreshold)
	assert.Equal(t, 30*time.Second, pricing.RecoveryTimeout)
	assert.Equal(t, 2, pricing.HalfOpenMaxCalls)

	require.Len(t, bc.Resilience.Retries, 2)
	settlement := bc.Resilience.Retries["settlement-db"]
	require.NotNil(t, settlement)
	assert.Equal(t, 2, settlement.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, settlement.InitialDelay)
	assert.True(t, settlement.DisableJitter)

	// Jitter stays on unless disabled explicitly
	assert.False(t, bc.Resilience.Retries["pricing-api"].DisableJitter)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectedVal func(*Bootstrap) bool
		description string
	}{
		{
			name: "override_http_addr",
			envVars: map[string]string{
				"TRADEGUARD_SERVER_HTTP_ADDR": ":9999",
				"MYSQL_DSN":                   "user:pass@tcp(localhost:3306)/testdb",
				"OPS_TOKEN":                   "test-ops-token",
			},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Server.Http.Addr == ":9999"
			},
			description: "TRADEGUARD_SERVER_HTTP_ADDR should override default :8080",
		},
		{
			name: "override_redis_addr",
			envVars: map[string]string{
				"TRADEGUARD_DATA_REDIS_ADDR": "redis.example.com:6379",
				"MYSQL_DSN":                  "user:pass@tcp(localhost:3306)/testdb",
				"OPS_TOKEN":                  "test-ops-token",
			},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Data.Redis.Addr == "redis.example.com:6379"
			},
			description: "TRADEGUARD_DATA_REDIS_ADDR should override default",
		},
		{
			name: "override_log_level",
			envVars: map[string]string{
				"TRADEGUARD_LOG_LEVEL": "debug",
				"MYSQL_DSN":            "user:pass@tcp(localhost:3306)/testdb",
				"OPS_TOKEN":            "test-ops-token",
			},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Log.Level == "debug"
			},
			description: "TRADEGUARD_LOG_LEVEL should override default info",
		},
		{
			name: "signing_key_from_env",
			envVars: map[string]string{
				"AUDIT_SIGNING_KEY": "0123456789abcdef0123456789abcdef",
				"MYSQL_DSN":         "user:pass@tcp(localhost:3306)/testdb",
				"OPS_TOKEN":         "test-ops-token",
			},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Audit.SigningKey == "0123456789abcdef0123456789abcdef"
			},
			description: "AUDIT_SIGNING_KEY should populate audit.signing_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create minimal config file
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			configContent := `server:
  http:
    addr: :8080
data:
  redis:
    addr: 127.0.0.1:6379
`
			err := os.WriteFile(configPath, []byte(configContent), 0644)
			require.NoError(t, err)

			// Set environment variables
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			// Load configuration
			bc, err := NewBootstrap(configPath)
			require.NoError(t, err, tt.description)
			require.NotNil(t, bc)

			// Verify expected override
			assert.True(t, tt.expectedVal(bc), tt.description)
		})
	}
}

func TestNewBootstrap_MissingRequired(t *testing.T) {
	tests := []struct {
		name          string
		envVars       map[string]string
		expectedError string
	}{
		{
			name: "missing_mysql_dsn",
			envVars: map[string]string{
				"OPS_TOKEN": "test-ops-token",
			},
			expectedError: "data.database.source (MYSQL_DSN)",
		},
		{
			name: "missing_ops_token",
			envVars: map[string]string{
				"MYSQL_DSN": "user:pass@tcp(localhost:3306)/testdb",
			},
			expectedError: "ops.token (OPS_TOKEN)",
		},
		{
			name:          "missing_all_required",
			envVars:       map[string]string{},
			expectedError: "missing required configuration fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create minimal config file
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			configContent := `server:
  http:
    addr: :8080
`
			err := os.WriteFile(configPath, []byte(configContent), 0644)
			require.NoError(t, err)

			// Clear all relevant environment variables first to ensure isolation
			os.Unsetenv("MYSQL_DSN")
			os.Unsetenv("TRADEGUARD_DATA_DATABASE_SOURCE")
			os.Unsetenv("OPS_TOKEN")
			os.Unsetenv("TRADEGUARD_OPS_TOKEN")

			// Set only the environment variables specified for this test
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			// Load configuration - should fail
			bc, err := NewBootstrap(configPath)
			assert.Error(t, err, "Expected error for missing required fields")
			assert.Nil(t, bc, "Bootstrap should be nil when validation fails")
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestNewBootstrap_ConfigFileNotFound(t *testing.T) {
	// Set required environment variables
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/testdb")
	t.Setenv("OPS_TOKEN", "test-ops-token")

	// Try to load non-existent config file
	bc, err := NewBootstrap("/non/existent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewBootstrap_EmptyConfigPath(t *testing.T) {
	// Set required environment variables
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/testdb")
	t.Setenv("OPS_TOKEN", "test-ops-token")

	// Load with empty config path (should use defaults + env vars)
	bc, err := NewBootstrap("")
	require.NoError(t, err)
	require.NotNil(t, bc)

	// Verify defaults were applied
	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, ":9000", bc.Server.Grpc.Addr)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/testdb", bc.Data.Database.Source)
	assert.Equal(t, "test-ops-token", bc.Ops.Token)
}

func TestNewBootstrap_PriorityOrder(t *testing.T) {
	// Create config file with one value
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `server:
  http:
    addr: :7777
data:
  redis:
    addr: 127.0.0.1:6379
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set environment variable that should override file value
	t.Setenv("TRADEGUARD_SERVER_HTTP_ADDR", ":8888")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/testdb")
	t.Setenv("OPS_TOKEN", "test-ops-token")

	// Load configuration
	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	// Environment variable should win over file value
	assert.Equal(t, ":8888", bc.Server.Http.Addr, "Environment variable should override config file")
}

func TestValidate_AllFieldsPresent(t *testing.T) {
	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{Addr: ":8080"},
			Grpc: &ServerGRPC{Addr: ":9000"},
		},
		Data: &Data{
			Database: &Database{
				Driver: "mysql",
				Source: "user:pass@tcp(localhost:3306)/testdb",
			},
			Redis: &Redis{Addr: "127.0.0.1:6379"},
		},
		Ops: &Ops{Token: "test-ops-token"},
		Log: &Log{
			Level:  "info",
			Format: "json",
		},
	}

	err := Validate(bc)
	assert.NoError(t, err)
}

func TestValidate_NilBootstrap(t *testing.T) {
	err := Validate(&Bootstrap{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration fields")
}
