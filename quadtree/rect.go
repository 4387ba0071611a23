package quadtree

import "strconv"

// Rect is an axis-aligned rectangle. X and Y are the bottom-left corner.
type Rect struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

func NewRect(x, y, width, height float32) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

func (r Rect) Right() float32 {
	return r.X + r.Width
}

func (r Rect) Top() float32 {
	return r.Y + r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Overlaps reports whether both rectangles share some area. Rectangles that
// only touch on an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width &&
		r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height &&
		r.Y+r.Height > o.Y
}

// Contains reports whether o lies within r, edges included.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X &&
		o.Y >= r.Y &&
		o.Right() <= r.Right() &&
		o.Top() <= r.Top()
}

func (r Rect) String() string {
	return "[" + formatFloat(r.X) + "," + formatFloat(r.Y) + "," +
		formatFloat(r.Width) + "," + formatFloat(r.Height) + "]"
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
