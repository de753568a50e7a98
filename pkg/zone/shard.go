// Package zone runs one zone shard: it wires storage, messaging, scripting and telemetry around a
// world.World and drives it at a fixed tick rate until stopped.
package zone

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/script"
	"github.com/argus-labs/zone-engine/pkg/telemetry"
	"github.com/argus-labs/zone-engine/pkg/zone/world"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 10 * time.Second
)

// Shard owns a world and every collaborator it talks to.
type Shard struct {
	world      *world.World
	dispatcher *persistence.Dispatcher
	// dispatched yields the result of the dispatcher's Run once it is closed and drained.
	dispatched chan error
	store      persistence.Store
	notifier   messaging.Notifier
	natsConn   *messaging.NATSNotifier

	options ShardOptions
	tel     telemetry.Telemetry
	log     zerolog.Logger
}

// NewShard loads configuration from the environment, merges opts over it and builds the shard. The
// world reads its global tick during construction, so storage must be reachable.
func NewShard(opts ShardOptions) (*Shard, error) {
	shardCfg, err := loadShardConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load shard config")
	}
	storeCfg, err := loadPersistenceConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load persistence config")
	}
	options := newDefaultShardOptions()
	shardCfg.applyToOptions(&options)
	storeCfg.applyToOptions(&options.Storage)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid shard options")
	}

	tel, err := telemetry.New(telemetry.Options{
		ServiceName: "zone",
		StatsdTags:  []string{"zone:" + strconv.FormatUint(uint64(options.World.ZoneID), 10)},
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize telemetry")
	}

	s := &Shard{options: options, tel: tel, log: tel.GetLogger("shard")}
	if err := s.setup(); err != nil {
		if closeErr := s.closeCollaborators(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("Failed to release a partially built shard")
		}
		return nil, err
	}
	return s, nil
}

func (s *Shard) setup() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := openStore(ctx, s.options)
	if err != nil {
		return err
	}
	s.store = store
	s.dispatcher = persistence.NewDispatcher(store, persistence.DispatcherOptions{
		Workers:   s.options.Storage.Workers,
		QueueSize: s.options.Storage.QueueSize,
		Logger:    s.tel.GetLogger("persistence"),
	})

	if err := s.setupNotifier(); err != nil {
		return err
	}

	worldLog := s.tel.GetLogger("world")
	scripts := script.NewEngine(s.tel.GetLogger("script"))
	var worldScripts []*script.Script
	if s.options.ScriptsDir != "" {
		worldScripts, err = scripts.LoadDir(s.options.ScriptsDir)
		if err != nil {
			return eris.Wrap(err, "failed to load world scripts")
		}
		s.log.Info().Int("count", len(worldScripts)).Str("dir", s.options.ScriptsDir).Msg("Loaded world scripts")
	}

	// The dispatcher must be running for the world to read its global tick.
	s.dispatched = make(chan error, 1)
	go func() { s.dispatched <- s.dispatcher.Run(context.Background()) }()

	w, err := world.New(ctx, s.options.World, world.Deps{
		Dispatcher:   s.dispatcher,
		Notifier:     s.notifier,
		Scripts:      scripts,
		Metrics:      s.tel.Metrics(),
		Logger:       &worldLog,
		WorldScripts: worldScripts,
	})
	if err != nil {
		return eris.Wrap(err, "failed to create world")
	}
	s.world = w
	return nil
}

func openStore(ctx context.Context, opts ShardOptions) (persistence.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}
	switch opts.Storage.Backend {
	case BackendSQLite:
		store, err := persistence.OpenSQLStore(opts.Storage.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "failed to open sqlite store")
		}
		return store, nil
	case BackendRedis:
		store, err := persistence.NewRedisStore(ctx, opts.Storage.Redis)
		if err != nil {
			return nil, eris.Wrap(err, "failed to open redis store")
		}
		return store, nil
	case BackendUndefined:
	}
	return nil, eris.Errorf("unsupported persistence backend %s", opts.Storage.Backend)
}

// setupNotifier connects to NATS when a URL is configured and falls back to logging otherwise.
func (s *Shard) setupNotifier() error {
	cfg, err := messaging.LoadNATSConfig()
	if err != nil {
		return err
	}
	if cfg.URL == "" {
		s.log.Warn().Msg("NATS_URL is empty, notifications are only logged")
		s.notifier = messaging.NewLogNotifier(s.tel.GetLogger("notifier"))
		return nil
	}
	n, err := messaging.NewNATSNotifier(cfg, s.tel.GetLogger("notifier"))
	if err != nil {
		return eris.Wrap(err, "failed to connect notifier")
	}
	s.natsConn = n
	s.notifier = n
	return nil
}

// World returns the simulated zone. It must only be touched from the goroutine running Run, except
// for Stage which is safe from anywhere.
func (s *Shard) World() *world.World {
	return s.world
}

// Run loads the zone and ticks it until ctx is cancelled, a termination signal arrives or the
// world fails. The zone is always shut down and every collaborator closed before Run returns.
func (s *Shard) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.dispatcher.Close()
		return s.loop(ctx)
	})
	g.Go(func() error {
		return eris.Wrap(<-s.dispatched, "persistence dispatcher")
	})
	err := g.Wait()
	s.dispatched = nil

	if closeErr := s.closeCollaborators(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func (s *Shard) loop(ctx context.Context) (err error) {
	defer func() {
		if shutdownErr := s.shutdownWorld(); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	if err := s.world.Start(); err != nil {
		return eris.Wrap(err, "failed to start zone load")
	}
	s.log.Info().Uint32("zone_id", s.world.ZoneID()).Float64("tick_rate", s.options.TickRate).
		Msg("Starting zone loop")

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.options.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.world.Process(); err != nil {
				return eris.Wrap(err, "failed to process zone")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Shard) shutdownWorld() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info().Msg("Shutting down zone")
	if err := s.world.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Zone shutdown finished with errors")
		return eris.Wrap(err, "zone shutdown")
	}
	s.log.Info().Msg("Zone shutdown complete")
	return nil
}

// closeCollaborators drains pending storage work and releases every connection. It is safe on a
// partially built shard.
func (s *Shard) closeCollaborators() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.dispatcher != nil {
		s.dispatcher.Close()
		if s.dispatched != nil {
			if err := <-s.dispatched; err != nil {
				errs = append(errs, eris.Wrap(err, "persistence dispatcher"))
			}
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, eris.Wrap(err, "failed to close store"))
		}
	}
	if s.natsConn != nil {
		if err := s.natsConn.Close(); err != nil {
			errs = append(errs, eris.Wrap(err, "failed to close notifier"))
		}
	}
	if err := s.tel.Shutdown(ctx); err != nil {
		errs = append(errs, eris.Wrap(err, "failed to shut down telemetry"))
	}
	return errors.Join(errs...)
}
