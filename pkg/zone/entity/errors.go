package entity

import "github.com/rotisserie/eris"

var (
	ErrDuplicateIdentifier = eris.New("entity identifier already registered")
	ErrDuplicateAccount    = eris.New("account already has a registered player")
	ErrInvalidEntity       = eris.New("invalid entity")
	ErrParentCycle         = eris.New("parent chain contains a cycle")
	ErrUnknownKind         = eris.New("unknown entity kind")
)
