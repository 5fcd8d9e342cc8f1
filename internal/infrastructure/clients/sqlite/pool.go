package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/cabinethub/clinicdesk/pkg/config"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
	"github.com/cabinethub/clinicdesk/pkg/retry"
)

// Conn is one pooled database connection. Each Conn owns exactly one
// underlying connection to the database file, with foreign-key enforcement
// and the busy timeout already applied through the DSN.
type Conn struct {
	*sqlx.DB
}

// Pool bounds the number of concurrently open connections to the database
// file. Idle connections are reused; exhaustion beyond the configured wait
// is reported to the caller, never a silent hang.
type Pool struct {
	cfg *config.DatabaseConfig
	dsn string
	log zerolog.Logger

	idle chan *Conn

	mu sync.Mutex
	// issued counts connections currently owned by the pool, idle and
	// checked out together. Only mutated under mu; never exceeds
	// cfg.MaxConns.
	issued int
}

// NewPool opens a pool against the configured database file and pre-warms
// MinConns connections. The first open is retried with backoff since it is
// the one that creates the file and surfaces environment problems.
func NewPool(cfg *config.DatabaseConfig, logger zerolog.Logger) (*Pool, error) {
	if cfg.MaxConns <= 0 || cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		return nil, apperrors.NewValidationError("invalid pool configuration: min/max connections")
	}

	p := &Pool{
		cfg: cfg,
		dsn: fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
			cfg.Path, int(cfg.Timeout/time.Millisecond)),
		log:  logger.With().Str("component", "sqlite_pool").Logger(),
		idle: make(chan *Conn, cfg.MaxConns),
	}

	p.log.Info().
		Str("path", cfg.Path).
		Int("min_conns", cfg.MinConns).
		Int("max_conns", cfg.MaxConns).
		Msg("initializing connection pool")

	for i := 0; i < cfg.MinConns; i++ {
		var (
			c   *Conn
			err error
		)
		open := func() error {
			c, err = p.open(context.Background())
			return err
		}
		if i == 0 {
			err = retry.Do(context.Background(), retry.DefaultConfig(), open)
		} else {
			err = open()
		}
		if err != nil {
			p.Shutdown()
			return nil, apperrors.NewConnectionError("failed to initialize connection pool", err)
		}
		p.mu.Lock()
		p.issued++
		p.mu.Unlock()
		p.idle <- c
	}

	return p, nil
}

// open creates one new connection and verifies it within the configured
// creation timeout.
func (p *Pool) open(ctx context.Context) (*Conn, error) {
	db, err := sqlx.Open("sqlite", p.dsn)
	if err != nil {
		return nil, err
	}
	// One pooled Conn maps to one real connection; database/sql must not
	// multiplex behind it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{DB: db}, nil
}

// Acquire returns a ready connection. An idle connection is preferred; when
// none is available and the issued count is below the ceiling a new one is
// created. At the ceiling the caller waits up to the configured timeout for
// a release, then receives a CONNECTION error.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}

	p.mu.Lock()
	if p.issued < p.cfg.MaxConns {
		p.issued++
		p.mu.Unlock()
		c, err := p.open(ctx)
		if err != nil {
			p.mu.Lock()
			p.issued--
			p.mu.Unlock()
			return nil, apperrors.NewConnectionError("failed to open database connection", err)
		}
		p.log.Debug().Msg("pool empty, created new connection")
		return c, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case c := <-p.idle:
		return c, nil
	case <-timer.C:
		p.log.Error().Msg("connection pool exhausted and at maximum capacity")
		return nil, apperrors.NewConnectionError("no available database connections", nil)
	case <-ctx.Done():
		return nil, apperrors.NewConnectionError("connection wait cancelled", ctx.Err())
	}
}

// Release returns a connection to the pool. The connection is probed first;
// a broken connection is closed and never re-enqueued. When the idle queue
// is unexpectedly full the connection is closed instead, keeping the issued
// count accurate.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	var one int
	if err := c.Get(&one, "SELECT 1"); err != nil {
		p.log.Warn().Err(err).Msg("connection failed probe, discarding")
		p.discard(c)
		return
	}

	select {
	case p.idle <- c:
	default:
		p.log.Warn().Msg("idle queue full, closing returned connection")
		p.discard(c)
	}
}

// WithConn runs fn with a pooled connection and guarantees the connection
// is accounted for on every exit path. If fn returns an error the
// connection is discarded rather than reused: a failed operation may have
// left it mid-transaction.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		p.discard(c)
		return err
	}
	p.Release(c)
	return nil
}

func (p *Pool) discard(c *Conn) {
	if err := c.Close(); err != nil {
		p.log.Warn().Err(err).Msg("error closing connection")
	}
	p.mu.Lock()
	p.issued--
	p.mu.Unlock()
}

// Issued reports how many connections the pool currently owns, idle and
// checked out together.
func (p *Pool) Issued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issued
}

// Shutdown drains the idle queue and closes every pooled connection.
// Connections currently checked out are not reclaimed; they terminate on
// their own release path.
func (p *Pool) Shutdown() {
	p.log.Info().Msg("closing all database connections")
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		select {
		case c := <-p.idle:
			if err := c.Close(); err != nil {
				p.log.Warn().Err(err).Msg("error closing connection")
			}
			p.issued--
		default:
			return
		}
	}
}
