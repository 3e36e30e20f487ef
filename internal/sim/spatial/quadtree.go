// Package spatial indexes chunk origins for rectangle queries.
package spatial

import (
	"sort"

	"minefield.gg/internal/sim/geom"
)

const (
	leafCapacity = 8
	initialSpan  = 1024
	maxSpan      = 1 << 60
)

type node struct {
	min  geom.Pos
	span int // square edge length

	points   []geom.Pos
	children *[4]*node
}

func (n *node) bounds() geom.Rect {
	return geom.RectFromSize(n.min, n.span, n.span)
}

func (n *node) quadrant(p geom.Pos) int {
	half := n.span / 2
	q := 0
	if p.X >= n.min.X+half {
		q |= 1
	}
	if p.Y >= n.min.Y+half {
		q |= 2
	}
	return q
}

func (n *node) child(q int) *node {
	half := n.span / 2
	c := n.children[q]
	if c == nil {
		min := n.min
		if q&1 != 0 {
			min.X += half
		}
		if q&2 != 0 {
			min.Y += half
		}
		c = &node{min: min, span: half}
		n.children[q] = c
	}
	return c
}

func (n *node) insert(p geom.Pos) {
	if n.children == nil {
		n.points = append(n.points, p)
		if len(n.points) > leafCapacity && n.span > 1 {
			n.split()
		}
		return
	}
	n.child(n.quadrant(p)).insert(p)
}

func (n *node) split() {
	pts := n.points
	n.points = nil
	n.children = &[4]*node{}
	for _, p := range pts {
		n.child(n.quadrant(p)).insert(p)
	}
}

func (n *node) contains(p geom.Pos) bool {
	for cur := n; cur != nil; {
		if cur.children == nil {
			for _, q := range cur.points {
				if q == p {
					return true
				}
			}
			return false
		}
		cur = cur.children[cur.quadrant(p)]
	}
	return false
}

func (n *node) query(r geom.Rect, out []geom.Pos) []geom.Pos {
	if n == nil || !n.bounds().Intersects(r) {
		return out
	}
	if n.children == nil {
		for _, p := range n.points {
			if r.Contains(p) {
				out = append(out, p)
			}
		}
		return out
	}
	for _, c := range n.children {
		out = c.query(r, out)
	}
	return out
}

// Quadtree is a point quadtree over an unbounded plane. The root doubles
// outward whenever a point lands outside it. Not safe for concurrent use.
type Quadtree struct {
	root *node
	size int

	// Points beyond maxSpan from the initial root.
	far []geom.Pos
}

func NewQuadtree() *Quadtree {
	return &Quadtree{
		root: &node{min: geom.Pos{X: -initialSpan / 2, Y: -initialSpan / 2}, span: initialSpan},
	}
}

func (t *Quadtree) Len() int { return t.size }

// Insert adds p and reports whether it was new.
func (t *Quadtree) Insert(p geom.Pos) bool {
	if t.Contains(p) {
		return false
	}
	for !t.root.bounds().Contains(p) {
		if t.root.span >= maxSpan {
			t.far = append(t.far, p)
			t.size++
			return true
		}
		t.grow(p)
	}
	t.root.insert(p)
	t.size++
	return true
}

// grow doubles the root toward p.
func (t *Quadtree) grow(p geom.Pos) {
	old := t.root
	min := old.min
	q := 0
	if p.X < old.min.X {
		min.X -= old.span
		q |= 1
	}
	if p.Y < old.min.Y {
		min.Y -= old.span
		q |= 2
	}
	root := &node{min: min, span: old.span * 2, children: &[4]*node{}}
	if old.children == nil && len(old.points) == 0 {
		t.root = root
		return
	}
	root.children[q] = old
	t.root = root
}

func (t *Quadtree) Contains(p geom.Pos) bool {
	if t.root.bounds().Contains(p) && t.root.contains(p) {
		return true
	}
	for _, f := range t.far {
		if f == p {
			return true
		}
	}
	return false
}

// Query returns every point inside the half-open box [min, max), ordered by
// row then column.
func (t *Quadtree) Query(min, max geom.Pos) []geom.Pos {
	r := geom.Rect{Min: min, Max: max}
	if r.Empty() {
		return nil
	}
	out := t.root.query(r, nil)
	for _, f := range t.far {
		if r.Contains(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
