package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/config"
	"github.com/gyaneshwarpardhi/cachesync/internal/event"
	"github.com/gyaneshwarpardhi/cachesync/internal/link"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
)

func loadConfig(t *testing.T, driver, dsn string) *config.Config {
	t.Helper()
	t.Setenv("CACHESYNC_STORE_DRIVER", driver)
	t.Setenv("CACHESYNC_STORE_DSN", dsn)
	l, err := config.NewLoader("", nil)
	require.NoError(t, err)
	return l.Config()
}

func exercise(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.Ready(ctx))
	require.NoError(t, a.Stores.Accounts.Put(ctx, cache.Account{ID: "U1"}))

	res, err := a.Engine.Dispatch(ctx, &event.Event{
		Kind: event.LoanCreated,
		Loan: &cache.Loan{ID: "L1", AccountID: "U1", DueDate: "2030-01-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, link.Linked, res.Link)

	acct, err := a.Stores.Accounts.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, cache.RefSet{"L1"}, acct.LoanIDs)

	res, err = a.Engine.Dispatch(ctx, &event.Event{
		Kind:    event.RequestCreated,
		Request: &cache.Request{ID: "R1", AccountID: "U2"},
	})
	require.NoError(t, err)
	assert.Equal(t, link.Deferred, res.Link)
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), loadConfig(t, config.DriverMemory, ""), nil)
	require.NoError(t, err)
	defer a.Close()

	exercise(t, a)
	_, ok := a.Queue.(*queue.Instrumented)
	assert.True(t, ok, "queue is instrumented")
}

func TestNew_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	a, err := New(context.Background(), loadConfig(t, config.DriverSQLite, dsn), nil)
	require.NoError(t, err)

	exercise(t, a)
	require.NoError(t, a.Close())
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := loadConfig(t, config.DriverMemory, "")
	cfg.Store.Driver = "cassandra"
	_, err := New(context.Background(), cfg, nil)
	assert.EqualError(t, err, `unknown store driver "cassandra"`)
}
