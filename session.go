package actum

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/actum/dialect"
	"github.com/syssam/actum/dialect/sql"
)

// Session is the engine context for one request or task. It owns the
// connection handle, the query log, the optional result cache and the
// transaction state, so no state is shared implicitly between sessions.
// A Session is safe for concurrent use, but the intended model is one
// session per logical unit of work.
type Session struct {
	id  uuid.UUID
	drv dialect.Driver
	log *QueryLog

	cache    Cache
	cacheTTL time.Duration
	sf       singleflight.Group

	strictFill bool

	mu      sync.Mutex // guards tx and txDepth
	tx      dialect.Tx
	txDepth int

	now func() time.Time // test seam for timestamp columns
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCache enables the result cache with the given store and TTL.
func WithCache(c Cache, ttl time.Duration) SessionOption {
	return func(s *Session) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithQueryCache enables an in-memory FIFO result cache.
func WithQueryCache(capacity int, ttl time.Duration) SessionOption {
	return WithCache(NewMemoryCache(capacity), ttl)
}

// WithStrictFill makes mass-assignment violations an error instead of
// silently dropping the offending fields.
func WithStrictFill() SessionOption {
	return func(s *Session) { s.strictFill = true }
}

// WithSlowThreshold sets the query log's slow threshold.
func WithSlowThreshold(d time.Duration) SessionOption {
	return func(s *Session) { s.log.SetSlowThreshold(d) }
}

// WithoutLogging starts the session with query logging disabled.
func WithoutLogging() SessionOption {
	return func(s *Session) { s.log.Disable() }
}

// NewSession returns a Session bound to the given driver.
func NewSession(drv dialect.Driver, opts ...SessionOption) *Session {
	s := &Session{
		id:  uuid.New(),
		drv: drv,
		log: NewQueryLog(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identity stamped into diagnostics output.
func (s *Session) ID() uuid.UUID { return s.id }

// Log returns the session's query log.
func (s *Session) Log() *QueryLog { return s.log }

// Driver returns the bound driver, or nil.
func (s *Session) Driver() dialect.Driver { return s.drv }

// Dialect returns the bound driver's dialect, or "" when unbound.
func (s *Session) Dialect() string {
	if s.drv == nil {
		return ""
	}
	return s.drv.Dialect()
}

// conn returns the execution target: the open transaction if one is
// active, the driver otherwise.
func (s *Session) conn() dialect.ExecQuerier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.drv
}

// inTx reports whether a transaction is currently open.
func (s *Session) inTx() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txDepth > 0
}

// Select runs a compiled SELECT and returns the rows as column-keyed
// maps. When the cache is enabled, a live entry for the same (SQL,
// bindings) pair is served without touching the connection; a miss
// executes, then populates the cache with expiry now+TTL. Statements
// inside a transaction bypass the cache. Concurrent identical misses
// are collapsed into a single driver call.
func (s *Session) Select(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	if s.drv == nil {
		return nil, ErrNotConfigured
	}
	if s.cache == nil || s.inTx() {
		return s.query(ctx, query, args)
	}
	key := cacheKey(query, args)
	if raw, err := s.cache.Get(ctx, key); err == nil && raw != nil {
		return unmarshalRows(raw)
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		rows, err := s.query(ctx, query, args)
		if err != nil {
			return nil, err
		}
		if raw, err := marshalRows(rows); err == nil {
			_ = s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]map[string]any), nil
}

// query executes a SELECT through the connection, recording a log
// entry on success and on failure.
func (s *Session) query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	rows := &sql.Rows{}
	start := time.Now()
	err := s.conn().Query(ctx, query, args, rows)
	s.log.Record(query, args, time.Since(start), err != nil)
	if err != nil {
		return nil, NewExecError("select", query, err)
	}
	return sql.ScanMaps(rows)
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	return s.exec(ctx, "exec", query, args)
}

// exec runs a write statement, recording a log entry on success and on
// failure, and wraps driver failures with the operation context.
// Recognized constraint violations surface as ConstraintError.
func (s *Session) exec(ctx context.Context, op, query string, args []any) (sql.Result, error) {
	if s.drv == nil {
		return nil, ErrNotConfigured
	}
	var res sql.Result
	start := time.Now()
	err := s.conn().Exec(ctx, query, args, &res)
	s.log.Record(query, args, time.Since(start), err != nil)
	if err != nil {
		if sql.IsConstraintViolation(err) {
			return nil, NewConstraintError(err.Error(), NewExecError(op, query, err))
		}
		return nil, NewExecError(op, query, err)
	}
	return res, nil
}

// FlushCache drops every cached result set.
func (s *Session) FlushCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// Close closes the underlying driver.
func (s *Session) Close() error {
	if s.drv == nil {
		return nil
	}
	return s.drv.Close()
}

// Open opens a database connection and returns a session configured
// from cfg.
func Open(cfg *Config) (*Session, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, ErrNotConfigured
	}
	drv, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return NewSession(drv, cfg.sessionOptions()...), nil
}
