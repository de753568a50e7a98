// Package spatial implements the region index of a zone: a quad-tree over rectangular regions
// (camps, building footprints, spawn areas) answering "which regions contain this point" queries.
package spatial

import (
	"slices"

	"github.com/argus-labs/zone-engine/pkg/assert"
	"github.com/rotisserie/eris"
)

// Key identifies a region for its whole lifetime in the tree.
type Key uint64

type node struct {
	bounds   Rect
	depth    int
	parent   *node
	children *[4]*node
	keys     []Key
	count    int // regions in this subtree
}

func (n *node) isLeaf() bool { return n.children == nil }

// ZoneTree is a quad-tree of regions. A region lives in the deepest node whose bounds fully contain
// it, so regions straddling a split line stay at the parent. Not safe for concurrent use.
type ZoneTree struct {
	opts    Options
	root    *node
	regions map[Key]Rect
	owner   map[Key]*node
	closed  bool
}

// New creates a zone tree. A validation failure here is an initialization failure of the index.
func New(opts Options) (*ZoneTree, error) {
	if err := opts.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid zone tree options")
	}
	extent := opts.Extent
	return &ZoneTree{
		opts:    opts,
		root:    &node{bounds: Rect{X: -extent, Z: -extent, Width: 2 * extent, Height: 2 * extent}},
		regions: make(map[Key]Rect),
		owner:   make(map[Key]*node),
	}, nil
}

// InsertRegion indexes a rectangle under key. Regions outside the tree extent are held at the root.
func (t *ZoneTree) InsertRegion(key Key, x, z, width, height float64) error {
	if t.closed {
		return ErrShutdown
	}
	if width < 0 || height < 0 {
		return eris.Wrapf(ErrInvalidRegion, "region %d", key)
	}
	if _, ok := t.regions[key]; ok {
		return eris.Wrapf(ErrDuplicateKey, "region %d", key)
	}

	rect := Rect{X: x, Z: z, Width: width, Height: height}
	t.regions[key] = rect

	n := t.root
	for {
		n.count++
		if n.isLeaf() {
			break
		}
		child := n.childContaining(rect)
		if child == nil {
			break
		}
		n = child
	}
	n.keys = append(n.keys, key)
	t.owner[key] = n

	if n.isLeaf() && len(n.keys) > t.opts.LeafCapacity && n.depth < t.opts.IndexCapacity {
		t.split(n)
	}
	return nil
}

// RemoveRegion drops key from the tree.
func (t *ZoneTree) RemoveRegion(key Key) error {
	if t.closed {
		return ErrShutdown
	}
	n, ok := t.owner[key]
	if !ok {
		return eris.Wrapf(ErrKeyNotFound, "region %d", key)
	}

	idx := slices.Index(n.keys, key)
	assert.That(idx >= 0, "region %d missing from its owning node", key)
	n.keys = slices.Delete(n.keys, idx, idx+1)
	delete(t.owner, key)
	delete(t.regions, key)

	for p := n; p != nil; p = p.parent {
		p.count--
	}
	for p := n; p != nil; p = p.parent {
		if !p.isLeaf() && float64(p.count) < t.opts.FillFactor*float64(t.opts.LeafCapacity) {
			t.collapse(p)
		}
	}
	return nil
}

// Region returns the bounds registered under key.
func (t *ZoneTree) Region(key Key) (Rect, bool, error) {
	if t.closed {
		return Rect{}, false, ErrShutdown
	}
	r, ok := t.regions[key]
	return r, ok, nil
}

// RegionsAt returns every region containing the point, ordered by key.
func (t *ZoneTree) RegionsAt(x, z float64) ([]Key, error) {
	if t.closed {
		return nil, ErrShutdown
	}
	var out []Key
	t.visit(t.root, Rect{X: x, Z: z}, func(k Key, r Rect) {
		if r.ContainsPoint(x, z) {
			out = append(out, k)
		}
	})
	slices.Sort(out)
	return out, nil
}

// RegionsIn returns every region overlapping area, ordered by key.
func (t *ZoneTree) RegionsIn(area Rect) ([]Key, error) {
	if t.closed {
		return nil, ErrShutdown
	}
	var out []Key
	t.visit(t.root, area, func(k Key, r Rect) {
		if r.Intersects(area) {
			out = append(out, k)
		}
	})
	slices.Sort(out)
	return out, nil
}

// RegionsNear returns every region overlapping the horizon square around (x, z).
func (t *ZoneTree) RegionsNear(x, z float64) ([]Key, error) {
	h := t.opts.Horizon
	return t.RegionsIn(Rect{X: x - h, Z: z - h, Width: 2 * h, Height: 2 * h})
}

// Len returns the number of indexed regions.
func (t *ZoneTree) Len() int {
	return len(t.regions)
}

// Shutdown releases the tree. It is terminal: every later call reports ErrShutdown.
func (t *ZoneTree) Shutdown() error {
	if t.closed {
		return ErrShutdown
	}
	t.closed = true
	t.root = nil
	t.regions = nil
	t.owner = nil
	return nil
}

func (t *ZoneTree) visit(n *node, area Rect, fn func(Key, Rect)) {
	for _, k := range n.keys {
		fn(k, t.regions[k])
	}
	if n.isLeaf() {
		return
	}
	for _, c := range n.children {
		if c.count > 0 && c.bounds.Intersects(area) {
			t.visit(c, area, fn)
		}
	}
}

func (n *node) childContaining(r Rect) *node {
	for _, c := range n.children {
		if c.bounds.containsRect(r) {
			return c
		}
	}
	return nil
}

func (t *ZoneTree) split(n *node) {
	var children [4]*node
	for i, q := range n.bounds.quadrants() {
		children[i] = &node{bounds: q, depth: n.depth + 1, parent: n}
	}
	n.children = &children

	kept := n.keys[:0]
	for _, k := range n.keys {
		child := n.childContaining(t.regions[k])
		if child == nil {
			kept = append(kept, k)
			continue
		}
		child.keys = append(child.keys, k)
		child.count++
		t.owner[k] = child
	}
	n.keys = kept

	for _, c := range n.children {
		if len(c.keys) > t.opts.LeafCapacity && c.depth < t.opts.IndexCapacity {
			t.split(c)
		}
	}
}

// collapse pulls every region of n's subtree back into n and turns it into a leaf.
func (t *ZoneTree) collapse(n *node) {
	work := []*node{}
	for _, c := range n.children {
		work = append(work, c)
	}
	for len(work) > 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]
		for _, k := range c.keys {
			n.keys = append(n.keys, k)
			t.owner[k] = n
		}
		if !c.isLeaf() {
			for _, gc := range c.children {
				work = append(work, gc)
			}
		}
	}
	n.children = nil
	assert.That(len(n.keys) == n.count, "collapsed node holds %d keys, expected %d", len(n.keys), n.count)
}
