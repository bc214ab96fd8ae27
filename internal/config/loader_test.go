package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cachesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	l, err := NewLoader("", nil)
	require.NoError(t, err)
	cfg := l.Config()

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, 32, cfg.Engine.EventWorkers)
	assert.Equal(t, 5*time.Second, cfg.Engine.EventTimeout())
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, DriverMemory, cfg.Queue.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Store.TTL.Account)
	assert.Equal(t, 2*time.Hour, cfg.Store.TTL.Request)
	assert.Zero(t, cfg.Store.TTL.LoanGrace)
	assert.Equal(t, TablesConf{Accounts: "accounts", Loans: "loans", Requests: "requests"}, cfg.Store.Tables)
}

func TestLoader_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
version: "1"
engine:
  event_workers: 4
store:
  driver: sqlite
  dsn: /tmp/cache.db
  ttl:
    account: 90m
    loan_grace: 24h
queue:
  driver: sqs
  name: from-file
`)
	t.Setenv("USER_CACHE_TABLE_NAME", "user_cache")
	t.Setenv("USERS_QUEUE_NAME", "from-deployment")
	t.Setenv("USERS_QUEUE_OWNER", "123456789012")
	t.Setenv("CACHESYNC_QUEUE_NAME", "from-prefix")
	t.Setenv("CACHESYNC_STORE_TTL_REQUEST", "30m")

	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	cfg := l.Config()

	assert.Equal(t, 4, cfg.Engine.EventWorkers)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "user_cache", cfg.Store.Tables.Accounts)
	assert.Equal(t, 90*time.Minute, cfg.Store.TTL.Account)
	assert.Equal(t, 30*time.Minute, cfg.Store.TTL.Request)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL.LoanGrace)
	assert.Equal(t, "from-prefix", cfg.Queue.Name, "prefixed variables win")
	assert.Equal(t, "123456789012", cfg.Queue.Owner)
}

func TestLoader_RejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
version: "1"
store:
  driver: postgres
  tables:
    accounts: user-cache
    loans: loans
    requests: loans
queue:
  driver: kafka
log:
  level: verbose
`)
	_, err := NewLoader(path, nil)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"store.dsn is required for driver postgres",
		`store.tables.accounts "user-cache" is not a valid SQL identifier`,
		`store.tables.requests reuses table "loans"`,
		`queue.driver "kafka"`,
		`log.level "verbose"`,
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in:\n%s", want, msg)
	}
}

func TestLoader_DynamoAllowsAnyTableName(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: dynamodb
  tables:
    accounts: user-cache-prod
`)
	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-cache-prod", l.Config().Store.Tables.Accounts)
}

func TestLoader_SQSNeedsQueue(t *testing.T) {
	path := writeConfig(t, "queue:\n  driver: sqs\n")
	_, err := NewLoader(path, nil)
	assert.ErrorContains(t, err, "queue.url or queue.name is required")
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	var seen []string
	l.OnChange(func(c *Config) { seen = append(seen, c.Log.Level) })

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"debug"}, seen)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))
	_, err = l.Reload()
	require.Error(t, err)
	assert.Equal(t, "debug", l.Config().Log.Level, "invalid reload keeps the previous config")
	assert.Len(t, seen, 1)
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	cfg := &Config{Version: "2"}
	assert.EqualError(t, Validate(cfg), `config: unsupported version "2"`)
}
