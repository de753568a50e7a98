package entity

// Kind is the closed set of entity variants. Each kind has exactly one Body type.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindPlayer
	KindCreature
	KindBuilding
	KindCell
	KindContainer
	KindItem
	KindCraftingTool
	KindRegion
	KindShuttle
	KindTicketCollector
	KindGroup
	KindMission
	kindCount
)

var kindNames = [...]string{ //nolint:gochecknoglobals // lookup table
	KindUndefined:       "undefined",
	KindPlayer:          "player",
	KindCreature:        "creature",
	KindBuilding:        "building",
	KindCell:            "cell",
	KindContainer:       "container",
	KindItem:            "item",
	KindCraftingTool:    "crafting_tool",
	KindRegion:          "region",
	KindShuttle:         "shuttle",
	KindTicketCollector: "ticket_collector",
	KindGroup:           "group",
	KindMission:         "mission",
}

func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[KindUndefined]
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return Kind(k)
		}
	}
	return KindUndefined
}

// IsStructure reports whether the kind is part of the building/cell hierarchy.
func (k Kind) IsStructure() bool {
	return k == KindBuilding || k == KindCell
}
