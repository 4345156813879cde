package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaai/pharmadb/pkg/types"
)

// Pool wraps a bounded pgxpool and is the single shared mutable resource
// of the access layer. It is constructed once at process start and
// passed by reference to every DAO and service; there is no package
// global. Acquire blocks when the pool is exhausted, which is the only
// backpressure mechanism the layer provides.
type Pool struct {
	mu   sync.Mutex
	px   *pgxpool.Pool
	cfg  Config
	log  *slog.Logger
}

// Open validates the config, establishes the pool, and verifies
// connectivity with a ping. Connection-establishment failures are logged
// with actionable diagnostics and returned; Open never degrades to a
// smaller pool or retries.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Pool, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	px, err := connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("connection pool ready",
		"target", cfg.Redacted(),
		"min_conns", cfg.MinConns,
		"max_conns", cfg.MaxConns)
	return &Pool{px: px, cfg: cfg, log: log}, nil
}

func connect(ctx context.Context, cfg Config, log *slog.Logger) (*pgxpool.Pool, error) {
	pxCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	pxCfg.MinConns = cfg.MinConns
	pxCfg.MaxConns = cfg.MaxConns

	px, err := pgxpool.NewWithConfig(ctx, pxCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := px.Ping(ctx); err != nil {
		px.Close()
		log.Error("database unreachable",
			"target", cfg.Redacted(),
			"err", err,
			"hint", "check that PostgreSQL is running, the database exists, and DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD are correct")
		return nil, fmt.Errorf("ping %s: %w", cfg.Redacted(), err)
	}
	return px, nil
}

// Reconfigure closes the current pool and opens a new one with the given
// config. Connections borrowed before the call drain normally; callers
// holding one across a Reconfigure keep a connection to the old pool
// until they release it.
func (p *Pool) Reconfigure(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid pool config: %w", err)
	}
	px, err := connect(ctx, cfg, p.log)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.px
	p.px = px
	p.cfg = cfg
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	p.log.Info("connection pool reconfigured", "target", cfg.Redacted())
	return nil
}

// Close closes every pooled connection. Used at process shutdown and in
// test teardown. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.px != nil {
		p.px.Close()
		p.px = nil
	}
}

// Ping verifies connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	px, err := p.pgx()
	if err != nil {
		return err
	}
	return px.Ping(ctx)
}

// Config returns the config the pool was last opened with.
func (p *Pool) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

func (p *Pool) pgx() (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.px == nil {
		return nil, types.ErrPoolClosed
	}
	return p.px, nil
}

// WithConn borrows a connection, runs fn, and returns the connection to
// the pool on every exit path. No transaction is opened; each statement
// fn issues commits individually.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	px, err := p.pgx()
	if err != nil {
		return err
	}
	start := time.Now()
	conn, err := px.Acquire(ctx)
	if err != nil {
		p.log.Error("acquire connection", "target", p.Config().Redacted(), "err", err)
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		conn.Release()
		p.log.Debug("connection scope done", "duration", time.Since(start))
	}()
	return fn(ctx, conn)
}

// WithTx borrows a connection, begins a transaction, and runs fn. A nil
// return from fn commits; an error (or panic) rolls back. This is the
// only place multi-statement atomicity is guaranteed: callers must issue
// all related writes inside one WithTx scope.
func (p *Pool) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return p.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback(ctx)
			}
		}()
		if err := fn(ctx, tx); err != nil {
			p.log.Warn("transaction rolled back", "err", err)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	})
}
