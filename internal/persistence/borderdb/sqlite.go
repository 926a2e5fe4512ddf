package borderdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
	"hexchunk.ai/internal/sim/world"
)

// DB is a SQLite-backed border store. Border commits are written
// synchronously; generation records go through a background writer and are
// dropped when it falls behind.
type DB struct {
	db *sql.DB

	ch   chan world.GenerationLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

var _ borders.Store = (*DB)(nil)

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan world.GenerationLogEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS border_commits (
			cq INTEGER NOT NULL,
			cr INTEGER NOT NULL,
			segment INTEGER NOT NULL,
			positions TEXT NOT NULL,
			committed_at TEXT NOT NULL,
			PRIMARY KEY (cq, cr, segment)
		);`,
		`CREATE TABLE IF NOT EXISTS generations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cq INTEGER NOT NULL,
			cr INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			radius INTEGER NOT NULL,
			digest TEXT,
			roads INTEGER NOT NULL,
			buildings INTEGER NOT NULL,
			shortfall INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_chunk ON generations(cq, cr);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) Lookup(ctx context.Context, k borders.Key) ([]int, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT positions FROM border_commits WHERE cq=? AND cr=? AND segment=?`,
		k.Chunk.Q, k.Chunk.R, k.Segment,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pos []int
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return nil, false, fmt.Errorf("border (%d,%d)/%d: %w", k.Chunk.Q, k.Chunk.R, k.Segment, err)
	}
	if pos == nil {
		pos = []int{}
	}
	return pos, true, nil
}

// Commit records positions for k unless k is already committed.
func (s *DB) Commit(ctx context.Context, k borders.Key, positions []int) error {
	if positions == nil {
		positions = []int{}
	}
	b, err := json.Marshal(positions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO border_commits(cq,cr,segment,positions,committed_at) VALUES(?,?,?,?,?)`,
		k.Chunk.Q, k.Chunk.R, k.Segment, string(b), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// CommitAll records a batch in one transaction; rows already committed are
// left alone.
func (s *DB) CommitAll(ctx context.Context, cs []borders.Commitment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO border_commits(cq,cr,segment,positions,committed_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range cs {
		pos := c.Positions
		if pos == nil {
			pos = []int{}
		}
		b, err := json.Marshal(pos)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.Key.Chunk.Q, c.Key.Chunk.R, c.Key.Segment, string(b), now); err != nil {
			return fmt.Errorf("border (%d,%d)/%d: %w", c.Key.Chunk.Q, c.Key.Chunk.R, c.Key.Segment, err)
		}
	}
	return tx.Commit()
}

// List returns every commitment ordered by chunk then segment.
func (s *DB) List(ctx context.Context) ([]borders.Commitment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cq, cr, segment, positions FROM border_commits ORDER BY cq, cr, segment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []borders.Commitment
	for rows.Next() {
		var (
			c   borders.Commitment
			raw string
		)
		if err := rows.Scan(&c.Key.Chunk.Q, &c.Key.Chunk.R, &c.Key.Segment, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &c.Positions); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertTuning stores the tuning actually applied, as canonical JSON with its
// digest, so a database can be matched to the settings that produced it.
func (s *DB) UpsertTuning(ctx context.Context, tune tuning.Tuning) (string, error) {
	b, digest, err := tune.Canonical()
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for _, kv := range [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", digest},
	} {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return "", err
		}
	}
	return digest, tx.Commit()
}

func (s *DB) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// WriteGeneration queues a generation record for the background writer.
func (s *DB) WriteGeneration(entry world.GenerationLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		// JSONL logs stay the source of truth.
	}
	return nil
}

type GenerationRow struct {
	Chunk      hexgrid.ChunkKey `json:"chunk"`
	Seed       int64            `json:"seed"`
	Radius     int              `json:"radius"`
	Digest     string           `json:"digest,omitempty"`
	Roads      int              `json:"roads"`
	Buildings  int              `json:"buildings"`
	Shortfall  int              `json:"shortfall"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	RecordedAt string           `json:"recorded_at"`
}

// Generations returns the most recent records, newest first.
func (s *DB) Generations(ctx context.Context, limit int) ([]GenerationRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cq, cr, seed, radius, COALESCE(digest,''), roads, buildings, shortfall, duration_ms, COALESCE(error,''), recorded_at
		FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GenerationRow
	for rows.Next() {
		var r GenerationRow
		if err := rows.Scan(&r.Chunk.Q, &r.Chunk.R, &r.Seed, &r.Radius, &r.Digest, &r.Roads, &r.Buildings, &r.Shortfall, &r.DurationMS, &r.Error, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) loop() {
	ctx := context.Background()
	insert, _ := s.db.Prepare(`INSERT INTO generations(cq,cr,seed,radius,digest,roads,buildings,shortfall,duration_ms,error,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}

	for e := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
		}
		if insert != nil {
			var roads, buildings int
			if e.Stats != nil {
				roads, buildings = e.Stats.Roads, e.Stats.Buildings
			}
			recordedAt := e.Time
			if recordedAt == "" {
				recordedAt = time.Now().UTC().Format(time.RFC3339Nano)
			}
			if _, err := tx.Stmt(insert).Exec(
				e.Chunk.Q, e.Chunk.R, e.Seed, e.Radius, e.Digest,
				roads, buildings, e.Shortfall, e.DurationMS, e.Error, recordedAt,
			); err != nil {
				_ = tx.Rollback()
				tx = nil
				opCount = 0
				continue
			}
			opCount++
		}
		// The single connection is shared with border reads, so never hold
		// the transaction open while idle.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
