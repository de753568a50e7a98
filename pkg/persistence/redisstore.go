package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/shamaton/msgpack/v3"
)

// RedisStore keeps zone objects in Redis. Each zone has a sorted set of zero-padded object ids,
// scored equally so that ZRANGEBYLEX pages through them in id order; each object is a msgpack
// value under its own key.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "failed to reach redis at %s", opts.Address)
	}
	return &RedisStore{client: client}, nil
}

func zoneKey(zone uint32) string     { return fmt.Sprintf("zone:%d:objects", zone) }
func objectKey(id uint64) string     { return fmt.Sprintf("object:%d", id) }
func attributesKey(id uint64) string { return fmt.Sprintf("item:%d:attributes", id) }
func lexMember(id uint64) string     { return fmt.Sprintf("%020d", id) }

const tickKey = "galaxy:" + globalTickKey

func (s *RedisStore) LoadGlobalTick(ctx context.Context) (uint64, error) {
	v, err := s.client.Get(ctx, tickKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "failed to load global tick")
	}
	tick, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "malformed global tick %q", v)
	}
	return tick, nil
}

func (s *RedisStore) SaveGlobalTick(ctx context.Context, tick uint64) error {
	err := s.client.Set(ctx, tickKey, strconv.FormatUint(tick, 10), 0).Err()
	return eris.Wrap(err, "failed to save global tick")
}

func (s *RedisStore) CountZoneObjects(ctx context.Context, zone uint32) (int, error) {
	n, err := s.client.ZCard(ctx, zoneKey(zone)).Result()
	if err != nil {
		return 0, eris.Wrapf(err, "failed to count objects of zone %d", zone)
	}
	return int(n), nil
}

func (s *RedisStore) LoadZoneObjects(ctx context.Context, zone uint32, afterID uint64, limit int) ([]Record, error) {
	members, err := s.client.ZRangeByLex(ctx, zoneKey(zone), &redis.ZRangeBy{
		Min:   "(" + lexMember(afterID),
		Max:   "+",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to page objects of zone %d", zone)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "malformed member %q in zone %d", m, zone)
		}
		keys[i] = objectKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch objects of zone %d", zone)
	}
	recs := make([]Record, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, eris.Wrapf(ErrNotFound, "%s listed in zone %d", keys[i], zone)
		}
		var rec Record
		if err := msgpack.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, eris.Wrapf(err, "failed to decode %s", keys[i])
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) SaveObject(ctx context.Context, rec Record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "failed to encode object %d", rec.ID)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, objectKey(rec.ID), data, 0)
		p.ZAdd(ctx, zoneKey(rec.ZoneID), redis.Z{Score: 0, Member: lexMember(rec.ID)})
		return nil
	})
	return eris.Wrapf(err, "failed to save object %d", rec.ID)
}

func (s *RedisStore) DeleteObject(ctx context.Context, zone uint32, id uint64) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, objectKey(id), attributesKey(id))
		p.ZRem(ctx, zoneKey(zone), lexMember(id))
		return nil
	})
	return eris.Wrapf(err, "failed to delete object %d", id)
}

func (s *RedisStore) SaveItemAttribute(ctx context.Context, itemID uint64, name, value string) error {
	err := s.client.HSet(ctx, attributesKey(itemID), name, value).Err()
	return eris.Wrapf(err, "failed to save attribute %s of item %d", name, itemID)
}

func (s *RedisStore) LoadItemAttributes(ctx context.Context, itemID uint64) (map[string]string, error) {
	attrs, err := s.client.HGetAll(ctx, attributesKey(itemID)).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load attributes of item %d", itemID)
	}
	return attrs, nil
}

func (s *RedisStore) Close() error {
	return eris.Wrap(s.client.Close(), "failed to close redis client")
}
