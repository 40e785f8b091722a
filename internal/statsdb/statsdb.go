// Package statsdb persists internal/stats snapshots to a local SQLite
// file for offline analysis, independent of the event loop that produces
// them.
package statsdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hmmsim/hmmsim/internal/stats"
)

// Store wraps a SQLite database holding one row per recorded snapshot.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the SQLite file at path and ensures its schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at             INTEGER NOT NULL,
			sim_time                INTEGER NOT NULL,
			full_migrations_dram    INTEGER NOT NULL,
			full_migrations_pcm     INTEGER NOT NULL,
			partial_migrations_dram INTEGER NOT NULL,
			partial_migrations_pcm  INTEGER NOT NULL,
			clean_flushed_blocks    INTEGER NOT NULL,
			dirty_flushed_blocks    INTEGER NOT NULL,
			tag_changes             INTEGER NOT NULL,
			idle_time               INTEGER NOT NULL,
			avg_migration_entries   REAL NOT NULL,
			dram_memory_initial     INTEGER NOT NULL,
			pcm_memory_initial      INTEGER NOT NULL,
			per_pid_json            TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("statsdb: create table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_sim_time ON snapshots(sim_time)`)
	if err != nil {
		return fmt.Errorf("statsdb: create index: %w", err)
	}
	return nil
}

// perPid is the JSON shape for the four per-pid maps a Snapshot carries;
// stored as one blob column since they aren't queried individually.
type perPid struct {
	DramMemorySizeUsed map[int]uint64 `json:"dramMemorySizeUsed"`
	PcmMemorySizeUsed  map[int]uint64 `json:"pcmMemorySizeUsed"`
	DramMigrations     map[int]uint64 `json:"dramMigrations"`
	PcmMigrations      map[int]uint64 `json:"pcmMigrations"`
}

// Record inserts one snapshot row, timestamped with simTime (the
// simulator's own clock, from internal/engine.Engine.Now) and the
// wall-clock time it was recorded.
func (s *Store) Record(simTime uint64, snap stats.Snapshot) error {
	blob, err := json.Marshal(perPid{
		DramMemorySizeUsed: snap.DramMemorySizeUsedPerPid,
		PcmMemorySizeUsed:  snap.PcmMemorySizeUsedPerPid,
		DramMigrations:     snap.DramMigrationsPerPid,
		PcmMigrations:      snap.PcmMigrationsPerPid,
	})
	if err != nil {
		return fmt.Errorf("statsdb: marshal per-pid stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO snapshots (
			recorded_at, sim_time,
			full_migrations_dram, full_migrations_pcm,
			partial_migrations_dram, partial_migrations_pcm,
			clean_flushed_blocks, dirty_flushed_blocks, tag_changes,
			idle_time, avg_migration_entries,
			dram_memory_initial, pcm_memory_initial, per_pid_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		time.Now().Unix(), simTime,
		snap.FullMigrations.Dram, snap.FullMigrations.Pcm,
		snap.PartialMigrations.Dram, snap.PartialMigrations.Pcm,
		snap.CleanFlushedBlocks, snap.DirtyFlushedBlocks, snap.TagChanges,
		snap.IdleTime, snap.AvgMigrationEntries(),
		snap.DramMemorySizeInitial, snap.PcmMemorySizeInitial, string(blob),
	)
	if err != nil {
		return fmt.Errorf("statsdb: insert snapshot: %w", err)
	}
	return nil
}

// Record is one stored row, reconstructed from the database.
// AvgMigrationEntries is stored separately from Snapshot since the
// underlying sum/count that Snapshot.AvgMigrationEntries derives it
// from isn't itself persisted per row.
type Record struct {
	RecordedAt          time.Time
	SimTime             uint64
	Snapshot            stats.Snapshot
	AvgMigrationEntries float64
}

// Latest returns the most recently recorded snapshot, or false if the
// store is empty.
func (s *Store) Latest() (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`
		SELECT recorded_at, sim_time,
			full_migrations_dram, full_migrations_pcm,
			partial_migrations_dram, partial_migrations_pcm,
			clean_flushed_blocks, dirty_flushed_blocks, tag_changes,
			idle_time, avg_migration_entries, dram_memory_initial, pcm_memory_initial, per_pid_json
		FROM snapshots ORDER BY id DESC LIMIT 1
	`)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("statsdb: latest: %w", err)
	}
	return rec, true, nil
}

// History returns up to limit most recent snapshots, oldest first.
func (s *Store) History(limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT recorded_at, sim_time,
			full_migrations_dram, full_migrations_pcm,
			partial_migrations_dram, partial_migrations_pcm,
			clean_flushed_blocks, dirty_flushed_blocks, tag_changes,
			idle_time, avg_migration_entries, dram_memory_initial, pcm_memory_initial, per_pid_json
		FROM snapshots ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("statsdb: history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("statsdb: scan row: %w", err)
		}
		out = append(out, rec)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows behind the one method
// scanRecord needs.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var recordedAtUnix int64
	var blob string
	err := sc.Scan(
		&recordedAtUnix, &rec.SimTime,
		&rec.Snapshot.FullMigrations.Dram, &rec.Snapshot.FullMigrations.Pcm,
		&rec.Snapshot.PartialMigrations.Dram, &rec.Snapshot.PartialMigrations.Pcm,
		&rec.Snapshot.CleanFlushedBlocks, &rec.Snapshot.DirtyFlushedBlocks, &rec.Snapshot.TagChanges,
		&rec.Snapshot.IdleTime, &rec.AvgMigrationEntries, &rec.Snapshot.DramMemorySizeInitial, &rec.Snapshot.PcmMemorySizeInitial, &blob,
	)
	if err != nil {
		return Record{}, err
	}
	rec.RecordedAt = time.Unix(recordedAtUnix, 0)

	var pp perPid
	if err := json.Unmarshal([]byte(blob), &pp); err != nil {
		return Record{}, fmt.Errorf("unmarshal per-pid stats: %w", err)
	}
	rec.Snapshot.DramMemorySizeUsedPerPid = pp.DramMemorySizeUsed
	rec.Snapshot.PcmMemorySizeUsedPerPid = pp.PcmMemorySizeUsed
	rec.Snapshot.DramMigrationsPerPid = pp.DramMigrations
	rec.Snapshot.PcmMigrationsPerPid = pp.PcmMigrations
	return rec, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
