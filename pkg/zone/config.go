package zone

import (
	"strings"
	"time"

	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/world"
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// shardConfig holds the shard settings read from the environment.
type shardConfig struct {
	// Identifier of the zone this shard simulates.
	ZoneID uint32 `env:"ZONE_ID"`

	// Number of simulation ticks per second.
	TickRate float64 `env:"ZONE_TICK_RATE" envDefault:"10"`

	// How long the startup load may take before the shard refuses to start.
	LoadTimeout time.Duration `env:"ZONE_LOAD_TIMEOUT" envDefault:"5m"`

	// Region index tuning.
	FillFactor    float64 `env:"ZONE_FILL_FACTOR" envDefault:"0.7"`
	IndexCapacity int     `env:"ZONE_INDEX_CAP" envDefault:"8"`
	LeafCapacity  int     `env:"ZONE_LEAF_CAP" envDefault:"16"`
	Horizon       float64 `env:"ZONE_HORIZON" envDefault:"128"`
	Extent        float64 `env:"ZONE_EXTENT" envDefault:"8192"`

	ServerTimeInterval     uint64 `env:"ZONE_SERVER_TIME_INTERVAL" envDefault:"60"`
	ServerTimeSpeed        uint64 `env:"ZONE_SERVER_TIME_SPEED" envDefault:"1"`
	GroupMissionUpdateTime uint64 `env:"ZONE_GROUP_MISSION_UPDATE_TIME" envDefault:"30000"`
	ShuttleLandingTime     uint32 `env:"ZONE_SHUTTLE_LANDING_TIME" envDefault:"17000"`
	DisconnectTimeout      int32  `env:"ZONE_DISCONNECT_TIMEOUT" envDefault:"300"`
	TutorialContainerID    uint64 `env:"ZONE_TUTORIAL_CONTAINER_ID" envDefault:"2533274790395904"`

	// Directory of *.expr world scripts. Empty runs no scripts.
	ScriptsDir string `env:"ZONE_SCRIPTS_DIR"`
}

// persistenceConfig selects and configures the storage backend.
type persistenceConfig struct {
	// Backend is "sqlite" or "redis".
	Backend string `env:"PERSISTENCE_BACKEND" envDefault:"sqlite"`

	SQLitePath string `env:"PERSISTENCE_SQLITE_PATH" envDefault:"zone.db"`

	RedisAddress  string `env:"PERSISTENCE_REDIS_ADDRESS" envDefault:"localhost:6379"`
	RedisPassword string `env:"PERSISTENCE_REDIS_PASSWORD"`
	RedisDB       int    `env:"PERSISTENCE_REDIS_DB"`

	Workers   int `env:"PERSISTENCE_WORKERS" envDefault:"4"`
	QueueSize int `env:"PERSISTENCE_QUEUE_SIZE" envDefault:"4096"`
}

func loadShardConfig() (shardConfig, error) {
	cfg := shardConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse shard config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate shard config")
	}

	return cfg, nil
}

func (cfg *shardConfig) validate() error {
	if cfg.TickRate <= 0 {
		return eris.Errorf("tick rate must be positive, got %v", cfg.TickRate)
	}
	if cfg.LoadTimeout <= 0 {
		return eris.Errorf("load timeout must be positive, got %s", cfg.LoadTimeout)
	}
	return nil
}

func (cfg *shardConfig) applyToOptions(opt *ShardOptions) {
	opt.TickRate = cfg.TickRate
	opt.ScriptsDir = cfg.ScriptsDir

	w := &opt.World
	w.ZoneID = cfg.ZoneID
	w.LoadTimeout = cfg.LoadTimeout
	w.Spatial.FillFactor = cfg.FillFactor
	w.Spatial.IndexCapacity = cfg.IndexCapacity
	w.Spatial.LeafCapacity = cfg.LeafCapacity
	w.Spatial.Horizon = cfg.Horizon
	w.Spatial.Extent = cfg.Extent
	w.ServerTimeInterval = cfg.ServerTimeInterval
	w.ServerTimeSpeed = cfg.ServerTimeSpeed
	w.GroupMissionUpdateTime = cfg.GroupMissionUpdateTime
	w.ShuttleLandingTime = cfg.ShuttleLandingTime
	w.DisconnectTimeout = cfg.DisconnectTimeout
	w.TutorialContainerID = entity.ID(cfg.TutorialContainerID)
}

func loadPersistenceConfig() (persistenceConfig, error) {
	cfg := persistenceConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse persistence config")
	}

	if ParseBackend(cfg.Backend) == BackendUndefined {
		return cfg, eris.Errorf("invalid persistence backend: %s (must be 'sqlite' or 'redis')", cfg.Backend)
	}

	return cfg, nil
}

func (cfg *persistenceConfig) applyToOptions(opt *PersistenceOptions) {
	opt.Backend = ParseBackend(cfg.Backend)
	opt.SQLitePath = cfg.SQLitePath
	opt.Redis = persistence.RedisOptions{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	opt.Workers = cfg.Workers
	opt.QueueSize = cfg.QueueSize
}

// Backend selects the store the shard persists to.
type Backend uint8

const (
	BackendUndefined Backend = iota
	BackendSQLite
	BackendRedis
)

func (b Backend) String() string {
	switch b {
	case BackendSQLite:
		return "sqlite"
	case BackendRedis:
		return "redis"
	case BackendUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}

func ParseBackend(s string) Backend {
	switch strings.ToLower(s) {
	case "sqlite":
		return BackendSQLite
	case "redis":
		return BackendRedis
	default:
		return BackendUndefined
	}
}

type PersistenceOptions struct {
	Backend    Backend                  // Which store to open
	SQLitePath string                   // Database file of the sqlite backend
	Redis      persistence.RedisOptions // Connection of the redis backend
	Workers    int                      // Storage workers
	QueueSize  int                      // Pending storage jobs before submissions fail
}

type ShardOptions struct {
	TickRate   float64            // Simulation ticks per second
	ScriptsDir string             // Directory of *.expr world scripts
	World      world.Options      // Zone tuning; non-zero fields override the environment
	Storage    PersistenceOptions // Storage backend

	// Store, when set, is used instead of opening the configured backend. The shard closes it.
	Store persistence.Store
}

func newDefaultShardOptions() ShardOptions {
	return ShardOptions{
		World: world.DefaultOptions(),
		Storage: PersistenceOptions{
			Backend: BackendSQLite,
		},
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *ShardOptions) apply(newOpt ShardOptions) {
	if newOpt.TickRate != 0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.ScriptsDir != "" {
		opt.ScriptsDir = newOpt.ScriptsDir
	}
	if newOpt.Store != nil {
		opt.Store = newOpt.Store
	}
	applyWorldOptions(&opt.World, newOpt.World)
	applyPersistenceOptions(&opt.Storage, newOpt.Storage)
}

func applyWorldOptions(opt *world.Options, newOpt world.Options) {
	if newOpt.ZoneID != 0 {
		opt.ZoneID = newOpt.ZoneID
	}
	if newOpt.Spatial.FillFactor != 0 {
		opt.Spatial.FillFactor = newOpt.Spatial.FillFactor
	}
	if newOpt.Spatial.IndexCapacity != 0 {
		opt.Spatial.IndexCapacity = newOpt.Spatial.IndexCapacity
	}
	if newOpt.Spatial.LeafCapacity != 0 {
		opt.Spatial.LeafCapacity = newOpt.Spatial.LeafCapacity
	}
	if newOpt.Spatial.Horizon != 0 {
		opt.Spatial.Horizon = newOpt.Spatial.Horizon
	}
	if newOpt.Spatial.Extent != 0 {
		opt.Spatial.Extent = newOpt.Spatial.Extent
	}
	if newOpt.LoadTimeout != 0 {
		opt.LoadTimeout = newOpt.LoadTimeout
	}
	if newOpt.LoadPageSize != 0 {
		opt.LoadPageSize = newOpt.LoadPageSize
	}
	if newOpt.ServerTimeInterval != 0 {
		opt.ServerTimeInterval = newOpt.ServerTimeInterval
	}
	if newOpt.ServerTimeSpeed != 0 {
		opt.ServerTimeSpeed = newOpt.ServerTimeSpeed
	}
	if newOpt.GroupMissionUpdateTime != 0 {
		opt.GroupMissionUpdateTime = newOpt.GroupMissionUpdateTime
	}
	if newOpt.ShuttleLandingTime != 0 {
		opt.ShuttleLandingTime = newOpt.ShuttleLandingTime
	}
	if newOpt.DisconnectTimeout != 0 {
		opt.DisconnectTimeout = newOpt.DisconnectTimeout
	}
	if newOpt.TutorialContainerID != 0 {
		opt.TutorialContainerID = newOpt.TutorialContainerID
	}
}

func applyPersistenceOptions(opt *PersistenceOptions, newOpt PersistenceOptions) {
	if newOpt.Backend != BackendUndefined {
		opt.Backend = newOpt.Backend
	}
	if newOpt.SQLitePath != "" {
		opt.SQLitePath = newOpt.SQLitePath
	}
	if newOpt.Redis.Address != "" {
		opt.Redis = newOpt.Redis
	}
	if newOpt.Workers != 0 {
		opt.Workers = newOpt.Workers
	}
	if newOpt.QueueSize != 0 {
		opt.QueueSize = newOpt.QueueSize
	}
}

// validate checks the shard-level options. World options are validated by world.New.
func (opt *ShardOptions) validate() error {
	if opt.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if opt.Store != nil {
		return nil
	}
	switch opt.Storage.Backend {
	case BackendSQLite:
		if opt.Storage.SQLitePath == "" {
			return eris.New("sqlite path cannot be empty")
		}
	case BackendRedis:
		if opt.Storage.Redis.Address == "" {
			return eris.New("redis address cannot be empty")
		}
	case BackendUndefined:
		return eris.New("persistence backend must be specified")
	}
	return nil
}
