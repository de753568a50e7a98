package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const globalTickKey = "global_tick"

// SQLStore keeps zone objects in SQLite.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore opens or creates the database at path. ":memory:" gives a private in-memory database.
func OpenSQLStore(path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open sqlite database")
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to migrate sqlite database")
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS zone_objects (
		id INTEGER PRIMARY KEY,
		zone_id INTEGER NOT NULL,
		parent_id INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		x REAL NOT NULL DEFAULT 0,
		y REAL NOT NULL DEFAULT 0,
		z REAL NOT NULL DEFAULT 0,
		body BLOB
	);

	CREATE TABLE IF NOT EXISTS item_attributes (
		item_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (item_id, name)
	);

	CREATE TABLE IF NOT EXISTS galaxy_meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_zone_objects_zone ON zone_objects(zone_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLStore) LoadGlobalTick(ctx context.Context) (uint64, error) {
	var tick uint64
	err := s.db.GetContext(ctx, &tick, `SELECT value FROM galaxy_meta WHERE key = ?`, globalTickKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "failed to load global tick")
	}
	return tick, nil
}

func (s *SQLStore) SaveGlobalTick(ctx context.Context, tick uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO galaxy_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		globalTickKey, int64(tick)) //nolint:gosec // tick counter stays far below 2^63
	return eris.Wrap(err, "failed to save global tick")
}

func (s *SQLStore) CountZoneObjects(ctx context.Context, zone uint32) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM zone_objects WHERE zone_id = ?`, zone); err != nil {
		return 0, eris.Wrapf(err, "failed to count objects of zone %d", zone)
	}
	return n, nil
}

func (s *SQLStore) LoadZoneObjects(ctx context.Context, zone uint32, afterID uint64, limit int) ([]Record, error) {
	var recs []Record
	err := s.db.SelectContext(ctx, &recs,
		`SELECT id, zone_id, parent_id, kind, x, y, z, body
		 FROM zone_objects WHERE zone_id = ? AND id > ? ORDER BY id LIMIT ?`,
		zone, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load objects of zone %d", zone)
	}
	return recs, nil
}

func (s *SQLStore) SaveObject(ctx context.Context, rec Record) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO zone_objects (id, zone_id, parent_id, kind, x, y, z, body)
		 VALUES (:id, :zone_id, :parent_id, :kind, :x, :y, :z, :body)
		 ON CONFLICT(id) DO UPDATE SET
		   zone_id = excluded.zone_id, parent_id = excluded.parent_id, kind = excluded.kind,
		   x = excluded.x, y = excluded.y, z = excluded.z, body = excluded.body`,
		rec)
	return eris.Wrapf(err, "failed to save object %d", rec.ID)
}

func (s *SQLStore) DeleteObject(ctx context.Context, zone uint32, id uint64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM zone_objects WHERE zone_id = ? AND id = ?`, zone, id)
	return eris.Wrapf(err, "failed to delete object %d", id)
}

func (s *SQLStore) SaveItemAttribute(ctx context.Context, itemID uint64, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_attributes (item_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT(item_id, name) DO UPDATE SET value = excluded.value`,
		itemID, name, value)
	return eris.Wrapf(err, "failed to save attribute %s of item %d", name, itemID)
}

func (s *SQLStore) LoadItemAttributes(ctx context.Context, itemID uint64) (map[string]string, error) {
	rows := []struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT name, value FROM item_attributes WHERE item_id = ?`, itemID); err != nil {
		return nil, eris.Wrapf(err, "failed to load attributes of item %d", itemID)
	}
	attrs := make(map[string]string, len(rows))
	for _, r := range rows {
		attrs[r.Name] = r.Value
	}
	return attrs, nil
}

func (s *SQLStore) Close() error {
	return eris.Wrap(s.db.Close(), "failed to close sqlite database")
}
