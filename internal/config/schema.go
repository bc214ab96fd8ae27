package config

import (
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// Config is the top-level YAML structure. Every field can be overridden from
// the environment with the CACHESYNC_ prefix, e.g. CACHESYNC_STORE_DRIVER.
type Config struct {
	Version string     `yaml:"version" env:"VERSION"`
	Engine  EngineConf `yaml:"engine" envPrefix:"ENGINE_"`
	HTTP    HTTPConf   `yaml:"http" envPrefix:"HTTP_"`
	Log     LogConf    `yaml:"log" envPrefix:"LOG_"`
	Store   StoreConf  `yaml:"store" envPrefix:"STORE_"`
	Queue   QueueConf  `yaml:"queue" envPrefix:"QUEUE_"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	EventWorkers   int `yaml:"event_workers" env:"EVENT_WORKERS"`
	QueueDepth     int `yaml:"queue_depth" env:"QUEUE_DEPTH"`
	EventTimeoutMs int `yaml:"event_timeout_ms" env:"EVENT_TIMEOUT_MS"`
}

// EventTimeout bounds a single event's processing, store and queue calls included.
func (c EngineConf) EventTimeout() time.Duration {
	return time.Duration(c.EventTimeoutMs) * time.Millisecond
}

type HTTPConf struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	MaxBatch int    `yaml:"max_batch" env:"MAX_BATCH"`
}

type LogConf struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // text | json
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
	DriverSQS      = "sqs"
)

// StoreConf selects the record store backend shared by the three tables.
type StoreConf struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the sqlite file or postgres connection string.
	DSN string `yaml:"dsn" env:"DSN"`
	// Region and Endpoint apply to the dynamodb driver. Endpoint targets a
	// local emulator.
	Region   string `yaml:"region" env:"REGION"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	Tables TablesConf `yaml:"tables" envPrefix:"TABLE_"`
	TTL    cache.TTL  `yaml:"ttl" envPrefix:"TTL_"`
	// JanitorInterval is how often the SQL drivers purge expired rows.
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"JANITOR_INTERVAL"`
}

type TablesConf struct {
	Accounts string `yaml:"accounts" env:"ACCOUNTS"`
	Loans    string `yaml:"loans" env:"LOANS"`
	Requests string `yaml:"requests" env:"REQUESTS"`
}

// QueueConf selects the reconciliation queue backend. For sqs, URL wins over
// Name; Owner is the account id owning a queue looked up by name.
type QueueConf struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	Name     string `yaml:"name" env:"NAME"`
	Owner    string `yaml:"owner" env:"OWNER"`
	URL      string `yaml:"url" env:"URL"`
	Region   string `yaml:"region" env:"REGION"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// deploymentEnv carries the unprefixed variable names existing deployments
// already set for table and queue names.
type deploymentEnv struct {
	AccountsTable string `env:"USER_CACHE_TABLE_NAME"`
	LoansTable    string `env:"LOAN_CACHE_TABLE_NAME"`
	RequestsTable string `env:"REQUEST_CACHE_TABLE_NAME"`
	QueueName     string `env:"USERS_QUEUE_NAME"`
	QueueOwner    string `env:"USERS_QUEUE_OWNER"`
	QueueURL      string `env:"USERS_QUEUE_URL"`
}
