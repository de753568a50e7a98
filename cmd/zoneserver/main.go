package main

import (
	"context"
	"os"

	"github.com/argus-labs/zone-engine/pkg/telemetry"
	"github.com/argus-labs/zone-engine/pkg/zone"
)

func main() {
	logger := telemetry.GetGlobalLogger("zoneserver")

	shard, err := zone.NewShard(zone.ShardOptions{})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create shard")
		os.Exit(1)
	}

	if err := shard.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Shard stopped with an error")
		os.Exit(1)
	}
}
