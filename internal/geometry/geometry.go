// Package geometry computes bounding boxes, scale factors and rotation
// angles for canvas items. Everything here is pure.
package geometry

import (
	"math"

	"corkboard/internal/board"
)

// GroupPadding is added on every side of a group's bounding box.
const GroupPadding = 10.0

// Point is a position in board space.
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Rect is an axis-aligned box with its origin at the top-left.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the middle of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Intersects is the open overlap test: boxes that only touch do not
// intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && r.Right() > o.X && r.Y < o.Bottom() && r.Bottom() > o.Y
}

// Normalize returns the rectangle spanned by two corners, with non-negative
// width and height whichever way the drag went.
func Normalize(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// ItemBounds is the box an item occupies, with absent sizes counted as
// board.DefaultExtent.
func ItemBounds(it board.Item) Rect {
	return Rect{
		X:      it.X,
		Y:      it.Y,
		Width:  it.WidthOr(board.DefaultExtent),
		Height: it.HeightOr(board.DefaultExtent),
	}
}

// BoundingBoxOf covers all items, padded by GroupPadding on every side.
// It reports false for an empty set.
func BoundingBoxOf(items []board.Item) (Rect, bool) {
	if len(items) == 0 {
		return Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, it := range items {
		r := ItemBounds(it)
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.Right())
		maxY = math.Max(maxY, r.Bottom())
	}
	return Rect{
		X:      minX - GroupPadding,
		Y:      minY - GroupPadding,
		Width:  maxX - minX + 2*GroupPadding,
		Height: maxY - minY + 2*GroupPadding,
	}, true
}

// ScaleFactors derives the scale of a box whose bottom-right corner was
// dragged by (dx, dy). The new width and height are floored at
// board.MinSize first, so the box never inverts or collapses. A degenerate
// initial box yields ok == false.
func ScaleFactors(initial Rect, dx, dy float64) (sx, sy float64, ok bool) {
	if initial.Empty() {
		return 1, 1, false
	}
	sx = math.Max(board.MinSize, initial.Width+dx) / initial.Width
	sy = math.Max(board.MinSize, initial.Height+dy) / initial.Height
	return sx, sy, true
}

// Angle is the direction from center to p, in radians.
func Angle(center, p Point) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

// RotationDelta is how far, in degrees, the pointer swept around center
// going from start to current.
func RotationDelta(center, start, current Point) float64 {
	return (Angle(center, current) - Angle(center, start)) * 180 / math.Pi
}

// TransformGroupMember scales item about the group box origin rather than
// its own. Width falls back to board.DefaultExtent when absent; height is
// only scaled when set. TEXT font size follows sx.
//
// Width and height never drop below board.MinSizeFor, so once a member hits
// its floor it stops shrinking with the group while its position keeps
// scaling, and shrunken members may overlap.
func TransformGroupMember(item board.Item, initial Rect, sx, sy float64) board.Item {
	floor := board.MinSizeFor(item.Type())
	item.X = initial.X + (item.X-initial.X)*sx
	item.Y = initial.Y + (item.Y-initial.Y)*sy
	item.Width = board.Float(math.Max(floor, item.WidthOr(board.DefaultExtent)*sx))
	if item.Height != nil {
		item.Height = board.Float(math.Max(floor, *item.Height*sy))
	}
	if item.Type() == board.TypeText && item.FontSize != nil {
		item.FontSize = board.Float(board.ClampFontSize(*item.FontSize * sx))
	}
	return item
}
