// Package app wires the configured store and queue backends into an engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/gyaneshwarpardhi/cachesync/internal/awsconf"
	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/config"
	"github.com/gyaneshwarpardhi/cachesync/internal/engine"
	"github.com/gyaneshwarpardhi/cachesync/internal/handler"
	"github.com/gyaneshwarpardhi/cachesync/internal/link"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue/sqs"
	"github.com/gyaneshwarpardhi/cachesync/internal/store"
	"github.com/gyaneshwarpardhi/cachesync/internal/store/dynamo"
	"github.com/gyaneshwarpardhi/cachesync/internal/store/memory"
	"github.com/gyaneshwarpardhi/cachesync/internal/store/sqlstore"
)

// Stores holds one store per record kind.
type Stores struct {
	Accounts cache.Store[cache.Account]
	Loans    cache.Store[cache.Loan]
	Requests cache.Store[cache.Request]
}

// App owns the engine and the backend connections behind it.
type App struct {
	Engine *engine.Engine
	Stores Stores
	Queue  queue.Queue

	logger  *slog.Logger
	cancel  context.CancelFunc
	sqlDB   *sqlstore.DB
	closers []func() error
}

// New builds the stores, the queue and the engine described by cfg. The
// engine's workers and the SQL janitor run until Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	a := &App{logger: logger, cancel: cancel}

	stores, err := a.openStores(ctx, runCtx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	q, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Stores = Stores{
		Accounts: store.Instrument(cfg.Store.Tables.Accounts, stores.Accounts),
		Loans:    store.Instrument(cfg.Store.Tables.Loans, stores.Loans),
		Requests: store.Instrument(cfg.Store.Tables.Requests, stores.Requests),
	}
	a.Queue = queue.Instrument(q)

	links := link.NewManager(a.Stores.Accounts, a.Queue)
	a.Engine = engine.New(runCtx,
		handler.NewLoans(a.Stores.Loans, links),
		handler.NewRequests(a.Stores.Requests, links),
		cfg.Engine, logger)

	logger.Info("cache backends ready",
		"store", cfg.Store.Driver, "queue", cfg.Queue.Driver,
		"accounts", cfg.Store.Tables.Accounts, "loans", cfg.Store.Tables.Loans, "requests", cfg.Store.Tables.Requests)
	return a, nil
}

func (a *App) openStores(ctx, runCtx context.Context, sc config.StoreConf) (Stores, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return Stores{
			Accounts: memory.NewTable[cache.Account](sc.TTL),
			Loans:    memory.NewTable[cache.Loan](sc.TTL),
			Requests: memory.NewTable[cache.Request](sc.TTL),
		}, nil

	case config.DriverSQLite, config.DriverPostgres:
		dialect, err := sqlstore.DialectFor(sc.Driver)
		if err != nil {
			return Stores{}, err
		}
		db, err := sqlstore.Open(ctx, dialect, sc.DSN)
		if err != nil {
			return Stores{}, err
		}
		a.sqlDB = db
		a.closers = append(a.closers, db.Close)

		var s Stores
		if s.Accounts, err = sqlstore.NewTable[cache.Account](ctx, db, sc.Tables.Accounts, sc.TTL); err != nil {
			return Stores{}, err
		}
		if s.Loans, err = sqlstore.NewTable[cache.Loan](ctx, db, sc.Tables.Loans, sc.TTL); err != nil {
			return Stores{}, err
		}
		if s.Requests, err = sqlstore.NewTable[cache.Request](ctx, db, sc.Tables.Requests, sc.TTL); err != nil {
			return Stores{}, err
		}
		if sc.JanitorInterval > 0 {
			go db.RunJanitor(runCtx, sc.JanitorInterval, a.logger)
		}
		return s, nil

	case config.DriverDynamoDB:
		awsCfg, err := awsconf.Load(ctx, awsconf.Config{Region: sc.Region, Endpoint: sc.Endpoint})
		if err != nil {
			return Stores{}, err
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return Stores{
			Accounts: dynamo.NewTable[cache.Account](client, sc.Tables.Accounts, "primary_id", sc.TTL),
			Loans:    dynamo.NewTable[cache.Loan](client, sc.Tables.Loans, "loan_id", sc.TTL),
			Requests: dynamo.NewTable[cache.Request](client, sc.Tables.Requests, "request_id", sc.TTL),
		}, nil
	}
	return Stores{}, fmt.Errorf("unknown store driver %q", sc.Driver)
}

func openQueue(ctx context.Context, qc config.QueueConf) (queue.Queue, error) {
	switch qc.Driver {
	case config.DriverMemory:
		return queue.NewMemory(), nil
	case config.DriverSQS:
		awsCfg, err := awsconf.Load(ctx, awsconf.Config{Region: qc.Region, Endpoint: qc.Endpoint})
		if err != nil {
			return nil, err
		}
		return sqs.New(awssqs.NewFromConfig(awsCfg), sqs.Config{URL: qc.URL, Name: qc.Name, Owner: qc.Owner})
	}
	return nil, fmt.Errorf("unknown queue driver %q", qc.Driver)
}

// Ready reports whether the backends can serve traffic.
func (a *App) Ready(ctx context.Context) error {
	if a.sqlDB != nil {
		if err := a.sqlDB.SQL().PingContext(ctx); err != nil {
			return fmt.Errorf("store ping: %w", err)
		}
	}
	return nil
}

// Close drains the engine, stops background work and closes connections.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Shutdown()
	}
	a.cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
