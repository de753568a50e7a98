package world

import (
	"context"

	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/rotisserie/eris"
)

func entityFromRecord(rec persistence.Record) (*entity.Entity, error) {
	body, err := entity.DecodeBody(entity.ParseKind(rec.Kind), rec.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "object %d", rec.ID)
	}
	return &entity.Entity{
		ID:       entity.ID(rec.ID),
		ParentID: entity.ID(rec.ParentID),
		Position: entity.Vec3{X: rec.X, Y: rec.Y, Z: rec.Z},
		Body:     body,
	}, nil
}

func (w *World) recordOf(e *entity.Entity) (persistence.Record, error) {
	body, err := entity.EncodeBody(e.Body)
	if err != nil {
		return persistence.Record{}, eris.Wrapf(err, "object %d", e.ID)
	}
	return persistence.Record{
		ID:       uint64(e.ID),
		ZoneID:   w.opts.ZoneID,
		ParentID: uint64(e.ParentID),
		Kind:     e.Kind().String(),
		X:        e.Position.X,
		Y:        e.Position.Y,
		Z:        e.Position.Z,
		Body:     body,
	}, nil
}

// saveObject stores e asynchronously. qctx comes back with the completion.
func (w *World) saveObject(e *entity.Entity, qctx any) error {
	rec, err := w.recordOf(e)
	if err != nil {
		return err
	}
	return w.db.SubmitAsync(w, qctx, func(ctx context.Context, s persistence.Store) (any, error) {
		return nil, s.SaveObject(ctx, rec)
	})
}

func (w *World) saveItemAttribute(itemID entity.ID, name, value string) {
	err := w.db.SubmitAsync(w, saveQuery{what: "attribute " + name},
		func(ctx context.Context, s persistence.Store) (any, error) {
			return nil, s.SaveItemAttribute(ctx, uint64(itemID), name, value)
		})
	if err != nil {
		w.log.Warn().Err(err).Stringer("item_id", itemID).Str("attribute", name).Msg("Failed to queue attribute save")
	}
}

func (w *World) saveGlobalTick() {
	tick := w.globalTick
	err := w.db.SubmitAsync(w, saveQuery{what: "global tick"}, func(ctx context.Context, s persistence.Store) (any, error) {
		return nil, s.SaveGlobalTick(ctx, tick)
	})
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to queue global tick save")
	}
}
