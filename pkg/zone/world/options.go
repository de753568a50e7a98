package world

import (
	"time"

	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/spatial"
	"github.com/rotisserie/eris"
)

const (
	// DefaultTutorialContainerID is the container that shutdown removes by hand before the generic
	// sweep, because its contents are not guaranteed to be gone by then.
	DefaultTutorialContainerID entity.ID = 2533274790395904

	firstNonPersistentID entity.ID = 422212465065984
	defaultLoadPageSize            = 500
)

// Options configures a World. It is read once by New.
type Options struct {
	ZoneID uint32

	// Spatial tunes the region index.
	Spatial spatial.Options

	// LoadTimeout bounds the startup load. A zone that has not loaded every object by then fails
	// instead of starting partially.
	LoadTimeout  time.Duration
	LoadPageSize int

	// ServerTimeInterval is the server-time broadcast period in seconds; ServerTimeSpeed is added to
	// the server clock on every broadcast on top of the interval.
	ServerTimeInterval uint64
	ServerTimeSpeed    uint64

	// GroupMissionUpdateTime is the group-mission broadcast period in milliseconds.
	GroupMissionUpdateTime uint64
	// ShuttleLandingTime is the default landing animation length of shuttles that carry none.
	ShuttleLandingTime uint32
	// DisconnectTimeout is how many sweep ticks a link-dead player survives.
	DisconnectTimeout int32

	TutorialContainerID entity.ID
}

func DefaultOptions() Options {
	return Options{
		ZoneID:                 0,
		Spatial:                spatial.DefaultOptions(),
		LoadTimeout:            5 * time.Minute, //nolint:mnd // default
		LoadPageSize:           defaultLoadPageSize,
		ServerTimeInterval:     60,    //nolint:mnd // default
		ServerTimeSpeed:        1,     //nolint:mnd // default
		GroupMissionUpdateTime: 30000, //nolint:mnd // default
		ShuttleLandingTime:     17000, //nolint:mnd // default
		DisconnectTimeout:      300,   //nolint:mnd // default
		TutorialContainerID:    DefaultTutorialContainerID,
	}
}

func (o *Options) validate() error {
	if o.LoadTimeout <= 0 {
		return eris.Wrap(ErrInvalidOption, "load timeout must be positive")
	}
	if o.LoadPageSize <= 0 {
		return eris.Wrap(ErrInvalidOption, "load page size must be positive")
	}
	if o.ServerTimeInterval == 0 {
		return eris.Wrap(ErrInvalidOption, "server time interval must be positive")
	}
	if o.GroupMissionUpdateTime == 0 {
		return eris.Wrap(ErrInvalidOption, "group mission update time must be positive")
	}
	if o.ShuttleLandingTime < shuttleBoardingLead {
		return eris.Wrapf(ErrInvalidOption, "shuttle landing time must be at least %d", shuttleBoardingLead)
	}
	if o.DisconnectTimeout <= 0 {
		return eris.Wrap(ErrInvalidOption, "disconnect timeout must be positive")
	}
	return nil
}
