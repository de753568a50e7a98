package spatial

// Rect is an axis-aligned rectangle on the ground plane. X and Z are the minimum corner.
type Rect struct {
	X, Z          float64
	Width, Height float64
}

func (r Rect) maxX() float64 { return r.X + r.Width }
func (r Rect) maxZ() float64 { return r.Z + r.Height }

// ContainsPoint reports whether (x, z) lies inside r. Edges are inclusive.
func (r Rect) ContainsPoint(x, z float64) bool {
	return x >= r.X && x <= r.maxX() && z >= r.Z && z <= r.maxZ()
}

// Intersects reports whether r and o overlap, touching edges included.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.maxX() && o.X <= r.maxX() && r.Z <= o.maxZ() && o.Z <= r.maxZ()
}

func (r Rect) containsRect(o Rect) bool {
	return o.X >= r.X && o.maxX() <= r.maxX() && o.Z >= r.Z && o.maxZ() <= r.maxZ()
}

func (r Rect) quadrants() [4]Rect {
	hw, hh := r.Width/2, r.Height/2
	return [4]Rect{
		{X: r.X, Z: r.Z, Width: hw, Height: hh},
		{X: r.X + hw, Z: r.Z, Width: hw, Height: hh},
		{X: r.X, Z: r.Z + hh, Width: hw, Height: hh},
		{X: r.X + hw, Z: r.Z + hh, Width: hw, Height: hh},
	}
}
