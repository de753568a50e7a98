package entity

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shamaton/msgpack/v3"
)

// EncodeBody serializes the kind-specific payload for storage.
func EncodeBody(b Body) ([]byte, error) {
	if b == nil {
		return nil, eris.Wrap(ErrInvalidEntity, "nil body")
	}
	data, err := msgpack.Marshal(b)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s body", b.Kind())
	}
	return data, nil
}

// DecodeBody rebuilds a body of the given kind from EncodeBody output.
func DecodeBody(kind Kind, data []byte) (body Body, err error) {
	body = newBody(kind)
	if body == nil {
		return nil, eris.Wrapf(ErrUnknownKind, "kind %d", kind)
	}

	defer func() {
		// msgpack.Unmarshal can panic on malformed input instead of returning an error.
		if r := recover(); r != nil {
			body = nil
			err = eris.Wrap(fmt.Errorf("panic: %v", r), "failed to decode body")
		}
	}()

	if len(data) == 0 {
		return body, nil
	}
	if err := msgpack.Unmarshal(data, body); err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s body", kind)
	}
	return body, nil
}

func newBody(kind Kind) Body {
	switch kind {
	case KindPlayer:
		return &Player{}
	case KindCreature:
		return &Creature{}
	case KindBuilding:
		return &Building{}
	case KindCell:
		return &Cell{}
	case KindContainer:
		return &Container{}
	case KindItem:
		return &Item{}
	case KindCraftingTool:
		return &CraftingTool{}
	case KindRegion:
		return &Region{}
	case KindShuttle:
		return &Shuttle{}
	case KindTicketCollector:
		return &TicketCollector{}
	case KindGroup:
		return &Group{}
	case KindMission:
		return &Mission{}
	case KindUndefined, kindCount:
		return nil
	default:
		return nil
	}
}
