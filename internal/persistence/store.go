package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

// ErrSnapshotNotFound is returned when no snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Record is one row of the snapshot index.
type Record struct {
	ID      string    `json:"id"`
	Tick    uint64    `json:"tick"`
	Path    string    `json:"path"`
	Vessels int       `json:"vessels"`
	SavedAt time.Time `json:"saved_at"`
	Label   string    `json:"label,omitempty"`
}

// Store writes snapshot files under a directory and indexes them in
// SQLite. It is safe for concurrent use.
type Store struct {
	dir string
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

// Open prepares dir and opens (or creates) dir/index.sqlite.
func Open(dir string, log logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty snapshot directory")
	}
	if log == nil {
		log = logging.Noop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.sqlite"))
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
	return &Store{dir: dir, db: db, log: log, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			vessels INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			label TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_saved_at ON snapshots(saved_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the index.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes snaps to a new file and indexes it.
func (s *Store) Save(ctx context.Context, tick uint64, label string, snaps []model.VesselSnapshot) (Record, error) {
	rec := Record{
		ID:      uuid.NewString(),
		Tick:    tick,
		Vessels: len(snaps),
		SavedAt: s.now().UTC(),
		Label:   label,
	}
	rec.Path = filepath.Join(s.dir, rec.ID+".json.zst")

	file := SnapshotFile{
		Header:  Header{ID: rec.ID, Tick: tick, SavedAt: rec.SavedAt, Label: label},
		Vessels: snaps,
	}
	if err := WriteSnapshotFile(rec.Path, file); err != nil {
		return Record{}, fmt.Errorf("write snapshot: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(id, tick, path, vessels, saved_at, label) VALUES(?, ?, ?, ?, ?, ?)`,
		rec.ID, int64(rec.Tick), rec.Path, rec.Vessels, rec.SavedAt.UnixNano(), rec.Label)
	if err != nil {
		_ = os.Remove(rec.Path)
		return Record{}, fmt.Errorf("index snapshot: %w", err)
	}
	s.log.Info(ctx, "snapshot saved",
		logging.String("snapshot_id", rec.ID),
		logging.Uint64("tick", rec.Tick),
		logging.Int("vessels", rec.Vessels),
	)
	return rec, nil
}

// Load reads the snapshot with the given id.
func (s *Store) Load(ctx context.Context, id string) (Record, []model.VesselSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tick, path, vessels, saved_at, label FROM snapshots WHERE id = ?`, id)
	return s.loadRow(row, id)
}

// Latest reads the most recently saved snapshot.
func (s *Store) Latest(ctx context.Context) (Record, []model.VesselSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tick, path, vessels, saved_at, label FROM snapshots ORDER BY saved_at DESC, tick DESC LIMIT 1`)
	return s.loadRow(row, "latest")
}

func (s *Store) loadRow(row *sql.Row, what string) (Record, []model.VesselSnapshot, error) {
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, what)
	}
	if err != nil {
		return Record{}, nil, err
	}
	f, err := ReadSnapshotFile(rec.Path)
	if err != nil {
		return rec, nil, fmt.Errorf("read snapshot %s: %w", rec.ID, err)
	}
	return rec, f.Vessels, nil
}

// List returns every indexed snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tick, path, vessels, saved_at, label FROM snapshots ORDER BY saved_at DESC, tick DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a snapshot's file and index row.
func (s *Store) Delete(ctx context.Context, id string) error {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM snapshots WHERE id = ?`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn(ctx, "snapshot file not removed", logging.String("path", path), logging.String("error", err.Error()))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec     Record
		tick    int64
		savedAt int64
	)
	if err := sc.Scan(&rec.ID, &tick, &rec.Path, &rec.Vessels, &savedAt, &rec.Label); err != nil {
		return Record{}, err
	}
	rec.Tick = uint64(tick)
	rec.SavedAt = time.Unix(0, savedAt).UTC()
	return rec, nil
}
