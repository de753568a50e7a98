package spatial

import "github.com/rotisserie/eris"

var (
	ErrShutdown      = eris.New("zone tree has been shut down")
	ErrDuplicateKey  = eris.New("region key already indexed")
	ErrKeyNotFound   = eris.New("region key not indexed")
	ErrInvalidRegion = eris.New("region has negative dimensions")
)
