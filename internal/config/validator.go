package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/cachesync/internal/store/sqlstore"
)

// Validate checks the config for:
//   - Unknown drivers, log levels and formats
//   - Table names that the selected store cannot use
//   - Missing connection settings for the selected drivers
func Validate(cfg *Config) error {
	if cfg.Version != "1" {
		return fmt.Errorf("config: unsupported version %q", cfg.Version)
	}
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if cfg.Engine.EventWorkers < 1 {
		add("engine.event_workers must be positive")
	}
	if cfg.Engine.QueueDepth < 1 {
		add("engine.queue_depth must be positive")
	}
	if cfg.Engine.EventTimeoutMs < 1 {
		add("engine.event_timeout_ms must be positive")
	}
	if cfg.HTTP.MaxBatch < 1 {
		add("http.max_batch must be positive")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q must be one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		add("log.format %q must be text or json", cfg.Log.Format)
	}

	validateStore(&cfg.Store, add)
	validateQueue(&cfg.Queue, add)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateStore(s *StoreConf, add func(string, ...any)) {
	switch s.Driver {
	case DriverMemory, DriverDynamoDB:
	case DriverSQLite, DriverPostgres:
		if s.DSN == "" {
			add("store.dsn is required for driver %s", s.Driver)
		}
	default:
		add("store.driver %q must be one of memory, sqlite, postgres, dynamodb", s.Driver)
	}

	tables := map[string]string{
		"accounts": s.Tables.Accounts,
		"loans":    s.Tables.Loans,
		"requests": s.Tables.Requests,
	}
	seen := make(map[string]string)
	for _, key := range []string{"accounts", "loans", "requests"} {
		name := tables[key]
		if name == "" {
			add("store.tables.%s is required", key)
			continue
		}
		if prev, ok := seen[name]; ok {
			add("store.tables.%s reuses table %q (already used by %s)", key, name, prev)
		} else {
			seen[name] = key
		}
		if (s.Driver == DriverSQLite || s.Driver == DriverPostgres) && !sqlstore.ValidIdentifier(name) {
			add("store.tables.%s %q is not a valid SQL identifier", key, name)
		}
	}

	if s.TTL.Account <= 0 {
		add("store.ttl.account must be positive")
	}
	if s.TTL.Request <= 0 {
		add("store.ttl.request must be positive")
	}
	if s.TTL.LoanGrace < 0 {
		add("store.ttl.loan_grace must not be negative")
	}
	if s.JanitorInterval < 0 {
		add("store.janitor_interval must not be negative")
	}
}

func validateQueue(q *QueueConf, add func(string, ...any)) {
	switch q.Driver {
	case DriverMemory:
	case DriverSQS:
		if q.URL == "" && q.Name == "" {
			add("queue.url or queue.name is required for driver sqs")
		}
	default:
		add("queue.driver %q must be memory or sqs", q.Driver)
	}
}
