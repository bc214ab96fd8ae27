package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cachesync/internal/config"
	"github.com/gyaneshwarpardhi/cachesync/internal/engine"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cachesync", cmd.Use)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "dispatch", "validate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("store:\n  driver: sqlite\n  dsn: cache.db\n"), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("store:\n  driver: sqlite\n"), 0o600))

	out, _, err := run(t, "", "validate", "--config", good)
	require.NoError(t, err)
	assert.Equal(t, "config OK: store=sqlite queue=memory tables=accounts,loans,requests\n", out)

	_, _, err = run(t, "", "validate", "-c", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn is required")
}

func TestDispatchCommand(t *testing.T) {
	msg := `{"event":{"value":"REQUEST_CREATED"},"user_request":{"request_id":"R1","user_primary_id":"U1"}}`
	out, _, err := run(t, msg, "dispatch")
	require.NoError(t, err)
	assert.Contains(t, out, `"item_id": "R1"`)
	assert.Contains(t, out, `"link": "deferred"`)
}

func TestDispatchCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"event":{"value":"LOAN_RETURNED"},"item_loan":{"loan_id":"L1","user_id":"U1"}}`), 0o600))

	out, _, err := run(t, "", "dispatch", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"link": "no_account"`)
}

func TestDispatchCommandUnsupportedKind(t *testing.T) {
	_, _, err := run(t, `{"event":{"value":"LOAN_ARCHIVED"},"item_loan":{"loan_id":"L1","user_id":"U1"}}`, "dispatch")
	assert.ErrorIs(t, err, engine.ErrUnsupportedEventKind)

	_, _, err = run(t, `not json`, "dispatch")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, level := newLogger(config.LogConf{Level: "warn", Format: "json"}, buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	logger.Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
