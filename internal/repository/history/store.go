package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
)

// Store buffers quotes in memory and flushes them to SQLite in batches.
type Store struct {
	db *sql.DB

	mx  sync.Mutex
	buf []entity.Price

	flushSize  int
	flushEvery time.Duration
	keep       func(pair string) bool
	log        *slog.Logger
}

type Options struct {
	Path       string
	FlushSize  int
	FlushEvery time.Duration
	// Keep selects the pairs whose quotes are stored. Nil keeps all.
	Keep func(pair string) bool
}

func Open(opts Options, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.FlushSize < 1 {
		opts.FlushSize = 512
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 5 * time.Second
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			instrument TEXT NOT NULL,
			bid REAL NOT NULL,
			ask REAL NOT NULL,
			ts INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS quotes_instrument_ts ON quotes (instrument, ts);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create quotes table: %w", err)
	}

	return &Store{
		db:         db,
		buf:        make([]entity.Price, 0, opts.FlushSize),
		flushSize:  opts.FlushSize,
		flushEvery: opts.FlushEvery,
		keep:       opts.Keep,
		log:        log,
	}, nil
}

func (s *Store) HandlePrice(ctx context.Context, price event.PriceReceived) error {
	if s.keep != nil && !s.keep(price.Instrument) {
		return nil
	}

	s.mx.Lock()
	s.buf = append(s.buf, price.Price)
	full := len(s.buf) >= s.flushSize
	s.mx.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes buffered quotes in one transaction.
func (s *Store) Flush(ctx context.Context) error {
	s.mx.Lock()
	batch := s.buf
	s.buf = make([]entity.Price, 0, s.flushSize)
	s.mx.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO quotes (instrument, bid, ask, ts, source) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		if _, err := stmt.ExecContext(ctx, p.Instrument, p.Bid, p.Ask, p.Date.UnixNano(), p.Source); err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quotes: %w", err)
	}
	return nil
}

func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Flush(flushCtx); err != nil {
				s.log.Error("final history flush", slog.Any("err", err))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Error("history flush", slog.Any("err", err))
			}
		}
	}
}

// AssetHistory returns stored quotes of pair within [from, to], oldest first.
func (s *Store) AssetHistory(ctx context.Context, from, to time.Time, pair string) ([]entity.Price, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT instrument, bid, ask, ts, source FROM quotes WHERE instrument = ? AND ts >= ? AND ts <= ? ORDER BY ts",
		pair, from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	prices := make([]entity.Price, 0)
	for rows.Next() {
		var (
			p  entity.Price
			ts int64
		)
		if err := rows.Scan(&p.Instrument, &p.Bid, &p.Ask, &ts, &p.Source); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		p.Date = time.Unix(0, ts).UTC()
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
