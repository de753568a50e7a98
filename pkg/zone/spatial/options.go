package spatial

import "github.com/rotisserie/eris"

// Options tunes the zone tree. All four tuning values come from shard configuration.
type Options struct {
	// FillFactor is the fraction of LeafCapacity under which a subtree collapses back into its parent.
	FillFactor float64
	// IndexCapacity caps the depth of the tree.
	IndexCapacity int
	// LeafCapacity is the number of regions a node holds before it splits.
	LeafCapacity int
	// Horizon is the search radius used by RegionsNear.
	Horizon float64
	// Extent is the half-width of the square, centered on the origin, covered by the tree.
	Extent float64
}

// DefaultOptions returns options sized for a standard 16km planet.
func DefaultOptions() Options {
	return Options{
		FillFactor:    0.7,
		IndexCapacity: 8,
		LeafCapacity:  16,
		Horizon:       128,
		Extent:        8192,
	}
}

func (opt *Options) validate() error {
	if opt.FillFactor <= 0 || opt.FillFactor > 1 {
		return eris.Errorf("fill factor must be in (0, 1], got %v", opt.FillFactor)
	}
	if opt.IndexCapacity < 1 {
		return eris.Errorf("index capacity must be positive, got %d", opt.IndexCapacity)
	}
	if opt.LeafCapacity < 1 {
		return eris.Errorf("leaf capacity must be positive, got %d", opt.LeafCapacity)
	}
	if opt.Horizon <= 0 {
		return eris.Errorf("horizon must be positive, got %v", opt.Horizon)
	}
	if opt.Extent <= 0 {
		return eris.Errorf("extent must be positive, got %v", opt.Extent)
	}
	return nil
}
