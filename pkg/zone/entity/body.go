package entity

// Body is the kind-specific payload of an entity. The set of implementations is closed: the
// unexported method keeps other packages from adding kinds.
type Body interface {
	Kind() Kind
	isBody()
}

// ConnState tracks a player's client session.
type ConnState uint8

const (
	ConnConnected ConnState = iota
	ConnLinkDead
	ConnDestroying
	ConnDisconnected
)

// Vitals are the regenerating health/action/mind pools.
type Vitals struct {
	Health    int32
	MaxHealth int32
	RegenRate int32
}

// Stomach holds food and drink fullness, drained over time.
type Stomach struct {
	Food          int32
	Drink         int32
	FoodInterval  uint64
	DrinkInterval uint64
}

type Creature struct {
	Vitals     Vitals
	Stomach    Stomach
	Posture    uint8
	Dead       bool
	Performing bool
}

type Player struct {
	Creature

	AccountID AccountID
	Conn      ConnState
	// LinkDead is set when the client drops without logging out.
	LinkDead bool
	// DisconnectTimer counts down sweep ticks while link-dead.
	DisconnectTimer int32
	// LogoutCountdown is the remaining seconds of a requested logout.
	LogoutCountdown int32
	GroupID         ID
	InventoryID     ID
	SpokenLanguage  uint32
}

type Building struct {
	Template string
}

type Cell struct {
	Index uint32
}

type Container struct {
	Capacity uint32
}

type Item struct {
	Template   string
	Attributes map[string]string
}

// CraftingTool is a tool that produces an item after a countdown.
type CraftingTool struct {
	RemainingMs int64
	LastUpdate  uint64
	Status      string
	// PendingItem is handed to the owner's inventory as PendingItemID when the countdown ends.
	PendingItemID ID
	PendingItem   *Item
}

// RegionKind distinguishes the kinds of rectangles indexed by the zone tree.
type RegionKind uint8

const (
	RegionArea RegionKind = iota
	RegionCamp
	RegionCity
	RegionSpawn
	RegionBadge
)

type Region struct {
	RegionKind RegionKind
	Width      float64
	Height     float64
	// Active regions are visited by the periodic region update.
	Active bool
	// ExpiresAt, when non-zero, is the time after which the region update removes the region.
	ExpiresAt uint64
}

// ShuttleState is the phase of a transport's landing cycle.
type ShuttleState uint8

const (
	ShuttleAway ShuttleState = iota
	ShuttleLanding
	ShuttleAboutBoarding
	ShuttleInPort
)

func (s ShuttleState) String() string {
	switch s {
	case ShuttleAway:
		return "away"
	case ShuttleLanding:
		return "landing"
	case ShuttleAboutBoarding:
		return "about_boarding"
	case ShuttleInPort:
		return "in_port"
	default:
		return "unknown"
	}
}

type Shuttle struct {
	State ShuttleState

	AwayTime    uint32
	LandingTime uint32
	InPortTime  uint32

	AwayInterval   uint32
	InPortInterval uint32
	// LandingDuration overrides the zone default when non-zero.
	LandingDuration uint32

	Posture        uint8
	CollectorID    ID
	CollectorBound bool
}

type TicketCollector struct {
	ShuttleID ID
}

type Group struct {
	Members []ID
}

type Mission struct {
	OwnerID   ID
	ExpiresAt uint64
}

func (*Player) Kind() Kind          { return KindPlayer }
func (*Creature) Kind() Kind        { return KindCreature }
func (*Building) Kind() Kind        { return KindBuilding }
func (*Cell) Kind() Kind            { return KindCell }
func (*Container) Kind() Kind       { return KindContainer }
func (*Item) Kind() Kind            { return KindItem }
func (*CraftingTool) Kind() Kind    { return KindCraftingTool }
func (*Region) Kind() Kind          { return KindRegion }
func (*Shuttle) Kind() Kind         { return KindShuttle }
func (*TicketCollector) Kind() Kind { return KindTicketCollector }
func (*Group) Kind() Kind           { return KindGroup }
func (*Mission) Kind() Kind         { return KindMission }

func (*Player) isBody()          {}
func (*Creature) isBody()        {}
func (*Building) isBody()        {}
func (*Cell) isBody()            {}
func (*Container) isBody()       {}
func (*Item) isBody()            {}
func (*CraftingTool) isBody()    {}
func (*Region) isBody()          {}
func (*Shuttle) isBody()         {}
func (*TicketCollector) isBody() {}
func (*Group) isBody()           {}
func (*Mission) isBody()         {}
