/*
Package quadtree implements a mutable region quadtree that indexes objects by
their bounding rectangle.

Each node stores the objects that overlap its bounds but do not fit entirely
inside one of its four quadrants. A leaf is split when it would hold more than
its capacity, and a branch is merged back into a leaf when the objects of its
whole subtree fit within its capacity again.

quadtree is not safe for concurrent use. Objects must not change their hitbox
while indexed: remove them, move them, then insert them again.
*/
package quadtree

// DefaultCapacity is the number of objects a leaf holds before it is split.
const DefaultCapacity = 5

// Object is an indexable object. Hitbox returns a rectangle that may be larger
// than the object but never smaller. Objects are matched by identity, so
// pointer types are the usual choice.
type Object interface {
	comparable
	Hitbox() Rect
}

// Quadrant identifies a child of a branch node.
type Quadrant int

const (
	BottomLeft Quadrant = iota
	BottomRight
	TopRight
	TopLeft
)

func (q Quadrant) String() string {
	switch q {
	case BottomLeft:
		return "bottom_left"
	case BottomRight:
		return "bottom_right"
	case TopRight:
		return "top_right"
	case TopLeft:
		return "top_left"
	default:
		return "unknown"
	}
}

type config struct {
	capacity int
}

// Option configures a quadtree created with New.
type Option func(*config)

// WithCapacity sets the number of objects a node holds before it is split.
// Values lower than 1 are ignored.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.capacity = n
		}
	}
}

// Node is a quadtree node. The root is a Node created with New.
type Node[T Object] struct {
	bounds   Rect
	capacity int
	objects  []T
	children *[4]Node[T]
}

// New returns an empty leaf covering the given bounds.
func New[T Object](bounds Rect, options ...Option) *Node[T] {
	c := config{capacity: DefaultCapacity}
	for _, o := range options {
		o(&c)
	}

	return &Node[T]{
		bounds:   bounds,
		capacity: c.capacity,
	}
}

// Insert adds the object to the node or to one of its descendants, splitting
// the node when it exceeds its capacity. Objects whose hitbox does not
// overlap the node bounds are ignored.
func (n *Node[T]) Insert(obj T) {
	hitbox := obj.Hitbox()
	if !n.bounds.Overlaps(hitbox) {
		return
	}

	if n.children == nil {
		if n.contains(obj) {
			return
		}
		if len(n.objects)+1 > n.capacity {
			n.split()
		}
	}

	if n.children != nil {
		if child := n.fittingChild(hitbox); child != nil {
			child.Insert(obj)
			return
		}
	}

	n.add(obj)
}

// Remove removes the object from the node or from the descendant its current
// hitbox points to. It reports whether the object was found.
//
// An object whose hitbox changed since it was inserted may not be found. Use
// RemoveScan when that can happen.
func (n *Node[T]) Remove(obj T) bool {
	if n.children == nil {
		return n.removeOwn(obj)
	}

	var removed bool
	if child := n.fittingChild(obj.Hitbox()); child != nil {
		removed = child.Remove(obj)
	} else {
		removed = n.removeOwn(obj)
	}

	if n.TotalObjectCount() <= n.capacity {
		n.unsplit()
	}
	return removed
}

// RemoveScan removes the object by searching the whole subtree instead of
// following its hitbox. It finds objects that moved while indexed at the cost
// of visiting every node.
func (n *Node[T]) RemoveScan(obj T) bool {
	removed := n.removeOwn(obj)
	if n.children == nil {
		return removed
	}

	for i := 0; i < len(n.children) && !removed; i++ {
		removed = n.children[i].RemoveScan(obj)
	}

	if n.TotalObjectCount() <= n.capacity {
		n.unsplit()
	}
	return removed
}

// Clear removes all the objects of the subtree. The node keeps its children.
func (n *Node[T]) Clear() {
	clear(n.objects)
	n.objects = n.objects[:0]

	if n.children != nil {
		for i := range n.children {
			n.children[i].Clear()
		}
	}
}

// Intersect calls fn with every object whose hitbox overlaps r. It never
// reports false positives. fn must not modify the quadtree.
func (n *Node[T]) Intersect(r Rect, fn func(T)) {
	if n.children != nil {
		for i := range n.children {
			if child := &n.children[i]; child.bounds.Overlaps(r) {
				child.Intersect(r, fn)
			}
		}
	}

	for _, obj := range n.objects {
		if obj.Hitbox().Overlaps(r) {
			fn(obj)
		}
	}
}

// Candidates appends to out every object stored in a node whose bounds
// overlap r, without looking at the objects hitboxes. It never misses an
// object overlapping r but may return objects that do not.
func (n *Node[T]) Candidates(r Rect, out []T) []T {
	if n.children != nil {
		for i := range n.children {
			if child := &n.children[i]; child.bounds.Overlaps(r) {
				out = child.Candidates(r, out)
			}
		}
	}

	return append(out, n.objects...)
}

// Any reports whether an object hitbox overlaps r.
func (n *Node[T]) Any(r Rect) bool {
	if n.children != nil {
		for i := range n.children {
			if child := &n.children[i]; child.bounds.Overlaps(r) && child.Any(r) {
				return true
			}
		}
	}

	for _, obj := range n.objects {
		if obj.Hitbox().Overlaps(r) {
			return true
		}
	}
	return false
}

// IsLeaf reports whether the node has no children.
func (n *Node[T]) IsLeaf() bool {
	return n.children == nil
}

// Child returns the child covering the given quadrant, or nil when the node
// is a leaf.
func (n *Node[T]) Child(q Quadrant) *Node[T] {
	if n.children == nil || q < BottomLeft || q > TopLeft {
		return nil
	}
	return &n.children[q]
}

func (n *Node[T]) Bounds() Rect {
	return n.bounds
}

// Objects returns the objects stored in this node only. On a branch, those
// are the objects that do not fit in a single child.
func (n *Node[T]) Objects() []T {
	objects := make([]T, len(n.objects))
	copy(objects, n.objects)
	return objects
}

// TotalObjectCount returns the number of objects in the subtree.
func (n *Node[T]) TotalObjectCount() int {
	count := len(n.objects)
	if n.children != nil {
		for i := range n.children {
			count += n.children[i].TotalObjectCount()
		}
	}
	return count
}

// AllObjects appends every object of the subtree to out.
func (n *Node[T]) AllObjects(out []T) []T {
	if n.children != nil {
		for i := range n.children {
			out = n.children[i].AllObjects(out)
		}
	}
	return append(out, n.objects...)
}

// Walk visits the subtree in pre-order. Returning false from fn skips the
// children of the visited node.
func (n *Node[T]) Walk(fn func(node *Node[T], depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node[T]) walk(fn func(*Node[T], int) bool, depth int) {
	if !fn(n, depth) || n.children == nil {
		return
	}

	for i := range n.children {
		n.children[i].walk(fn, depth+1)
	}
}

func (n *Node[T]) split() {
	if n.children != nil {
		return
	}

	x, y := n.bounds.X, n.bounds.Y
	w, h := n.bounds.Width/2, n.bounds.Height/2

	n.children = &[4]Node[T]{
		BottomLeft:  {bounds: Rect{X: x, Y: y, Width: w, Height: h}, capacity: n.capacity},
		BottomRight: {bounds: Rect{X: x + w, Y: y, Width: w, Height: h}, capacity: n.capacity},
		TopRight:    {bounds: Rect{X: x + w, Y: y + h, Width: w, Height: h}, capacity: n.capacity},
		TopLeft:     {bounds: Rect{X: x, Y: y + h, Width: w, Height: h}, capacity: n.capacity},
	}

	kept := n.objects[:0]
	for _, obj := range n.objects {
		if child := n.fittingChild(obj.Hitbox()); child != nil {
			child.Insert(obj)
			continue
		}
		kept = append(kept, obj)
	}
	clear(n.objects[len(kept):])
	n.objects = kept
}

func (n *Node[T]) unsplit() {
	if n.children == nil {
		return
	}

	for i := range n.children {
		n.objects = n.children[i].AllObjects(n.objects)
	}
	n.children = nil
}

// fittingChild returns the child that fully contains the hitbox. A hitbox
// touching a midline stays in the parent.
func (n *Node[T]) fittingChild(hitbox Rect) *Node[T] {
	verticalMidpoint := n.bounds.X + n.bounds.Width/2
	horizontalMidpoint := n.bounds.Y + n.bounds.Height/2

	top := hitbox.Y > horizontalMidpoint
	bottom := hitbox.Y < horizontalMidpoint && hitbox.Y+hitbox.Height < horizontalMidpoint

	switch {
	case hitbox.X < verticalMidpoint && hitbox.X+hitbox.Width < verticalMidpoint:
		if top {
			return &n.children[TopLeft]
		}
		if bottom {
			return &n.children[BottomLeft]
		}

	case hitbox.X > verticalMidpoint:
		if top {
			return &n.children[TopRight]
		}
		if bottom {
			return &n.children[BottomRight]
		}
	}

	return nil
}

func (n *Node[T]) add(obj T) {
	if !n.contains(obj) {
		n.objects = append(n.objects, obj)
	}
}

func (n *Node[T]) contains(obj T) bool {
	for _, o := range n.objects {
		if o == obj {
			return true
		}
	}
	return false
}

func (n *Node[T]) removeOwn(obj T) bool {
	for i, o := range n.objects {
		if o != obj {
			continue
		}

		last := len(n.objects) - 1
		n.objects[i] = n.objects[last]
		var zero T
		n.objects[last] = zero
		n.objects = n.objects[:last]
		return true
	}
	return false
}
