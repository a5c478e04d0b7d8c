package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"terramorph.dev/internal/persistence/snapshot"
	"terramorph.dev/internal/sim/world"
)

// SQLiteIndex is a secondary read-model index of flushes, mutation batches and
// snapshot metadata. Writes go through a single writer goroutine; the channel
// drops under pressure, the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqFlush reqKind = iota + 1
	reqMutation
	reqSnapshot
)

type req struct {
	kind reqKind

	flush    world.FlushLogEntry
	mutation world.MutationLogEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	FlushSeq    uint64
	Path        string
	Seed        int64
	Chunks      int
	Settlements int
	Ruins       int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db: db,
		// High buffer: earthquake-scale batches produce bursty writes.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
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
		`CREATE TABLE IF NOT EXISTS flushes (
			seq INTEGER PRIMARY KEY,
			vertices INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			tier_changes INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mutations (
			seq INTEGER PRIMARY KEY,
			targets INTEGER NOT NULL,
			raise INTEGER NOT NULL,
			changed INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			flush_seq INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			settlements INTEGER NOT NULL,
			ruins INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteFlush(entry world.FlushLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqFlush, flush: entry}:
	default:
		// Drop if the indexer falls behind.
	}
	return nil
}

func (s *SQLiteIndex) WriteMutation(entry world.MutationLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqMutation, mutation: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		FlushSeq:    snap.Header.FlushSeq,
		Path:        path,
		Seed:        snap.Seed,
		Chunks:      len(snap.Chunks),
		Settlements: len(snap.Settlements),
		Ruins:       len(snap.Ruins),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertFlush, _ := s.db.Prepare(`INSERT OR REPLACE INTO flushes(seq,vertices,chunks,tier_changes,raw_json) VALUES(?,?,?,?,?)`)
	insertMutation, _ := s.db.Prepare(`INSERT OR REPLACE INTO mutations(seq,targets,raise,changed,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(flush_seq,path,seed,chunks,settlements,ruins) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertFlush != nil {
			_ = insertFlush.Close()
		}
		if insertMutation != nil {
			_ = insertMutation.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqFlush:
			b, _ := json.Marshal(r.flush)
			if insertFlush != nil {
				if _, err := tx.Stmt(insertFlush).Exec(
					int64(r.flush.Seq), r.flush.Vertices, r.flush.Chunks, r.flush.TierChanges, string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqMutation:
			b, _ := json.Marshal(r.mutation)
			if insertMutation != nil {
				raise := 0
				if r.mutation.Raise {
					raise = 1
				}
				if _, err := tx.Stmt(insertMutation).Exec(
					int64(r.mutation.Seq), r.mutation.Targets, raise, r.mutation.Changed, string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqSnapshot:
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(r.snapshot.FlushSeq), r.snapshot.Path, r.snapshot.Seed,
					r.snapshot.Chunks, r.snapshot.Settlements, r.snapshot.Ruins,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
