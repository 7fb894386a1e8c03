package interaction

import (
	"math"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
)

// Outcome is the result of feeding one event to the Machine.
type Outcome struct {
	// Board is the board after the event. It is the input board when
	// nothing changed.
	Board board.Board
	// Changed reports whether Board differs from the input.
	Changed bool
	// Commit is set when a gesture or direct mutation finished and the
	// board must be pushed to the remote store.
	Commit bool
}

// Machine is the pointer state machine for one acting user.
type Machine struct {
	User string
}

// Handle dispatches ev to the matching transition.
func (m Machine) Handle(s *Session, b board.Board, ev Event) Outcome {
	switch ev.Kind {
	case PointerDown:
		return m.PointerDown(s, b, ev)
	case PointerMove:
		return m.PointerMove(s, b, ev)
	case PointerUp, PointerLeave:
		return m.PointerUp(s, b, ev)
	}
	return Outcome{Board: b}
}

// PointerDown starts an interaction. It is ignored while another is active
// and when the user may not edit the target.
func (m Machine) PointerDown(s *Session, b board.Board, ev Event) Outcome {
	if s.State != Idle {
		return Outcome{Board: b}
	}
	if s.GroupMode {
		return m.groupPointerDown(s, b, ev)
	}

	if ev.Target.Kind == TargetCanvas {
		s.Active = ""
		return Outcome{Board: b}
	}
	it, _, ok := b.Find(ev.Target.ItemID)
	if !ok || !b.CanEdit(m.User, it) {
		return Outcome{Board: b}
	}

	switch ev.Target.Kind {
	case TargetItem:
		s.State = DraggingItem
		s.Initial = it
	case TargetResizeHandle:
		s.State = ResizingItem
		s.Initial = withResizeDefaults(it)
	case TargetRotateHandle:
		s.State = RotatingItem
		s.Initial = it
		s.StartAngle = geometry.Angle(rotationCenter(it), ev.Pos)
	default:
		return Outcome{Board: b}
	}
	s.ItemID = it.ID
	s.Active = it.ID
	s.Start = ev.Pos
	return Outcome{Board: b}
}

// PointerMove re-derives the manipulated items from the gesture snapshot and
// the pointer's total displacement.
func (m Machine) PointerMove(s *Session, b board.Board, ev Event) Outcome {
	d := ev.Pos.Sub(s.Start)

	switch s.State {
	case SelectingRubberBand:
		s.Band = geometry.Normalize(s.Start, ev.Pos)
		return Outcome{Board: b}

	case DraggingItem, ResizingItem, RotatingItem:
		cur, _, ok := b.Find(s.ItemID)
		if !ok {
			return Outcome{Board: b}
		}
		next := m.transformItem(s, cur, d, ev.Pos)
		return Outcome{Board: b.ReplaceItems(map[string]board.Item{cur.ID: next}), Changed: true}

	case DraggingGroup:
		repl := make(map[string]board.Item, len(s.GroupInitial))
		for _, init := range s.GroupInitial {
			cur, _, ok := b.Find(init.ID)
			if !ok {
				continue
			}
			cur.X = init.X + d.X
			cur.Y = init.Y + d.Y
			repl[cur.ID] = cur
		}
		return Outcome{Board: b.ReplaceItems(repl), Changed: len(repl) > 0}

	case ResizingGroup:
		sx, sy, ok := geometry.ScaleFactors(s.GroupBounds, d.X, d.Y)
		if !ok {
			return Outcome{Board: b}
		}
		repl := make(map[string]board.Item, len(s.GroupInitial))
		for _, init := range s.GroupInitial {
			cur, _, ok := b.Find(init.ID)
			if !ok {
				continue
			}
			t := geometry.TransformGroupMember(init, s.GroupBounds, sx, sy)
			cur.X, cur.Y = t.X, t.Y
			cur.Width, cur.Height = t.Width, t.Height
			cur.FontSize = t.FontSize
			repl[cur.ID] = cur
		}
		return Outcome{Board: b.ReplaceItems(repl), Changed: len(repl) > 0}
	}
	return Outcome{Board: b}
}

// PointerUp ends the interaction. A rubber band resolves into a selection;
// a manipulation applies its final delta and commits.
func (m Machine) PointerUp(s *Session, b board.Board, ev Event) Outcome {
	switch {
	case s.State == SelectingRubberBand:
		s.Band = geometry.Normalize(s.Start, ev.Pos)
		s.Selected = m.selectInside(b, s.Band)
		s.endGesture()
		return Outcome{Board: b}

	case s.State.Manipulating():
		out := m.PointerMove(s, b, ev)
		s.endGesture()
		out.Commit = true
		return out
	}
	return Outcome{Board: b}
}

func (m Machine) transformItem(s *Session, cur board.Item, d, pos geometry.Point) board.Item {
	init := s.Initial
	switch s.State {
	case DraggingItem:
		cur.X = init.X + d.X
		cur.Y = init.Y + d.Y
	case ResizingItem:
		cur.Width = board.Float(math.Max(board.MinSize, init.WidthOr(0)+d.X))
		if init.Height == nil {
			cur.Height = nil
		} else {
			cur.Height = board.Float(math.Max(board.MinSize, *init.Height+d.Y))
		}
	case RotatingItem:
		angle := geometry.Angle(rotationCenter(init), pos)
		cur.Rotation = init.Rotation + (angle-s.StartAngle)*180/math.Pi
	}
	return cur
}

// withResizeDefaults fills in the type's default box so resizing an
// intrinsically sized item starts from a known size.
func withResizeDefaults(it board.Item) board.Item {
	w, h := board.ResizeDefaults(it.Type())
	if it.Width == nil {
		it.Width = board.Float(w)
	}
	if it.Height == nil && h != nil {
		it.Height = h
	}
	return it
}

// rotationCenter is the item's own centre. Absent sizes count as zero.
func rotationCenter(it board.Item) geometry.Point {
	return geometry.Point{
		X: it.X + it.WidthOr(0)/2,
		Y: it.Y + it.HeightOr(0)/2,
	}
}
