// Package persistence is the storage collaborator of a zone. Storage calls run on worker goroutines;
// their results come back to the simulation goroutine through the Dispatcher's mailbox.
package persistence

import (
	"context"

	"github.com/rotisserie/eris"
)

var (
	ErrClosed    = eris.New("persistence dispatcher is closed")
	ErrQueueFull = eris.New("persistence job queue is full")
	ErrNotFound  = eris.New("record not found")
)

// Record is the stored form of one zone object. Body is the kind-specific payload encoded by the
// entity codec; the store never looks inside it.
type Record struct {
	ID       uint64  `db:"id"        msgpack:"id"`
	ZoneID   uint32  `db:"zone_id"   msgpack:"zone_id"`
	ParentID uint64  `db:"parent_id" msgpack:"parent_id"`
	Kind     string  `db:"kind"      msgpack:"kind"`
	X        float32 `db:"x"         msgpack:"x"`
	Y        float32 `db:"y"         msgpack:"y"`
	Z        float32 `db:"z"         msgpack:"z"`
	Body     []byte  `db:"body"      msgpack:"body"`
}

// Store is implemented by each storage backend.
type Store interface {
	// LoadGlobalTick returns the galaxy-wide tick counter, zero if never saved.
	LoadGlobalTick(ctx context.Context) (uint64, error)
	SaveGlobalTick(ctx context.Context, tick uint64) error

	// CountZoneObjects returns how many records LoadZoneObjects will yield for zone.
	CountZoneObjects(ctx context.Context, zone uint32) (int, error)
	// LoadZoneObjects returns up to limit records of zone with ID > afterID, ordered by ID.
	LoadZoneObjects(ctx context.Context, zone uint32, afterID uint64, limit int) ([]Record, error)

	// SaveObject inserts or replaces rec.
	SaveObject(ctx context.Context, rec Record) error
	DeleteObject(ctx context.Context, zone uint32, id uint64) error

	SaveItemAttribute(ctx context.Context, itemID uint64, name, value string) error
	LoadItemAttributes(ctx context.Context, itemID uint64) (map[string]string, error)

	Close() error
}
