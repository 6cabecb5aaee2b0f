package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blertbank/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_TOKEN", "token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "ledger", cfg.Database.Name)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyCacheTTL)
	assert.Equal(t, "@every 15m", cfg.Reconciliation.Schedule)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Server.PublicHost)

	policy, err := cfg.Ledger.BalancePolicy()
	require.NoError(t, err)
	assert.True(t, policy.AllowsNegative(models.AccountKindTreasury))
	assert.True(t, policy.AllowsNegative(models.AccountKindLiability))
	assert.False(t, policy.AllowsNegative(models.AccountKindUser))
	assert.False(t, policy.AllowsNegative(models.AccountKindSink))

	systemAccounts, err := cfg.Ledger.SystemAccountKinds()
	require.NoError(t, err)
	assert.Equal(t, map[string]models.AccountKind{
		"treasury": models.AccountKindTreasury,
		"fees":     models.AccountKindSink,
	}, systemAccounts)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("LEDGER_NEGATIVE_BALANCE_KINDS", "treasury")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "750ms")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("SERVER_PUBLIC_HOST", "ledger.internal:8080")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "ledger.internal:8080", cfg.Server.PublicHost)

	policy, err := cfg.Ledger.BalancePolicy()
	require.NoError(t, err)
	assert.False(t, policy.AllowsNegative(models.AccountKindLiability))
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVICE_TOKEN=from-file\nPORT=9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.ServiceToken)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Setenv("SERVICE_TOKEN", "token")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		t.Setenv("SERVICE_TOKEN", "")
		t.Setenv("JWT_SECRET_KEY", "")

		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("unknown account kind", func(t *testing.T) {
		t.Setenv("SERVICE_TOKEN", "token")
		t.Setenv("LEDGER_NEGATIVE_BALANCE_KINDS", "treasury,vault")

		_, err := Load("")
		assert.ErrorContains(t, err, "vault")
	})

	t.Run("user system account", func(t *testing.T) {
		t.Setenv("SERVICE_TOKEN", "token")
		t.Setenv("LEDGER_SYSTEM_ACCOUNTS", "treasury:user")

		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("malformed system account", func(t *testing.T) {
		t.Setenv("SERVICE_TOKEN", "token")
		t.Setenv("LEDGER_SYSTEM_ACCOUNTS", "treasury")

		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", Name: "ledger", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=ledger sslmode=disable", cfg.DSN())
}
