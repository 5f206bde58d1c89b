// Package postgres implements persist.Repository against a PostgreSQL
// database, using pgx/v4 for the pool the indexer and API share and
// database/sql (via the pgx stdlib driver) for the golang-migrate runner,
// which requires a *sql.DB.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	// register postgres driver for database/sql
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/mikeydub/indexing-serv/service/logger"
	"github.com/mikeydub/indexing-serv/util/retry"
)

// DefaultConnectRetry retries connection establishment three times with a
// short linear backoff; used for both the pgxpool and the database/sql
// connections opened at startup.
var DefaultConnectRetry = retry.Retry{MinWait: 2, MaxWait: 4, MaxRetries: 3}

type connectionParams struct {
	connString string
	maxConns   int32
	appname    string
	retry      *retry.Retry
}

type ConnectionOption func(*connectionParams)

func WithMaxConns(n int32) ConnectionOption {
	return func(p *connectionParams) { p.maxConns = n }
}

func WithAppName(name string) ConnectionOption {
	return func(p *connectionParams) { p.appname = name }
}

func WithNoRetries() ConnectionOption {
	return func(p *connectionParams) { p.retry = nil }
}

// defaultMaxConns caps the pool at 5 per the spec's concurrency model
// (§5: "a bounded SQL connection pool (default max 5) shared across all
// tasks").
const defaultMaxConns = 5

func newConnectionParams(databaseURL string) connectionParams {
	return connectionParams{
		connString: databaseURL,
		maxConns:   defaultMaxConns,
		retry:      &DefaultConnectRetry,
	}
}

// NewClient opens a database/sql connection for golang-migrate, which needs
// the standard library interface rather than a pgx pool.
func NewClient(databaseURL string, opts ...ConnectionOption) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	params := newConnectionParams(databaseURL)
	for _, opt := range opts {
		opt(&params)
	}

	var db *sql.DB
	connectF := func(ctx context.Context) error {
		var err error
		db, err = sql.Open("pgx", params.connString)
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	}

	if params.retry != nil {
		if err := retry.RetryFunc(ctx, connectF, func(error) bool { return true }, *params.retry); err != nil {
			return nil, err
		}
	} else if err := connectF(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// NewPgxClient opens the pgxpool.Pool the indexer and API share, capped per
// the spec's connection pool budget.
func NewPgxClient(databaseURL string, opts ...ConnectionOption) (*pgxpool.Pool, error) {
	ctx := context.Background()

	params := newConnectionParams(databaseURL)
	for _, opt := range opts {
		opt(&params)
	}

	poolConfig, err := pgxpool.ParseConfig(params.connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: could not parse connection string: %w", err)
	}

	if params.appname != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = params.appname
	}
	poolConfig.ConnConfig.Logger = &pgxLogger{}
	poolConfig.MaxConns = params.maxConns

	var pool *pgxpool.Pool
	connectF := func(ctx context.Context) error {
		var err error
		pool, err = pgxpool.ConnectConfig(ctx, poolConfig)
		return err
	}

	if params.retry != nil {
		if err := retry.RetryFunc(ctx, connectF, func(error) bool { return true }, *params.retry); err != nil {
			return nil, err
		}
	} else if err := connectF(ctx); err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// pgxLogger routes pgx's internal query/connect logging through the
// application's structured logger instead of pgx's own stderr writer.
type pgxLogger struct{}

func (l *pgxLogger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	entry := logger.For(ctx).WithField("pgx_data", data)
	switch level {
	case pgx.LogLevelError:
		entry.Error(msg)
	case pgx.LogLevelWarn:
		entry.Warn(msg)
	default:
		entry.Debug(msg)
	}
}
