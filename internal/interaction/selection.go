package interaction

import (
	"slices"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
)

// SetGroupMode switches group mode. Entering clears the active item,
// leaving clears the selection. Switching mid-gesture is refused.
func (m Machine) SetGroupMode(s *Session, on bool) bool {
	if s.State != Idle {
		return false
	}
	s.GroupMode = on
	if on {
		s.Active = ""
	} else {
		s.Selected = nil
	}
	return true
}

// SelectedItems returns the selected items still on b, in paint order.
func SelectedItems(s *Session, b board.Board) []board.Item {
	if len(s.Selected) == 0 {
		return nil
	}
	var out []board.Item
	for _, it := range b.Items {
		if s.IsSelected(it.ID) {
			out = append(out, it)
		}
	}
	return out
}

// GroupBounds is the padded box around the current selection. It reports
// false when nothing is selected.
func GroupBounds(s *Session, b board.Board) (geometry.Rect, bool) {
	return geometry.BoundingBoxOf(SelectedItems(s, b))
}

// DeleteSelection removes every selected item the user may edit and clears
// the selection.
func (m Machine) DeleteSelection(s *Session, b board.Board) Outcome {
	if s.State != Idle || len(s.Selected) == 0 {
		return Outcome{Board: b}
	}
	next, n := b.DeleteItems(m.User, s.Selected)
	s.Selected = nil
	if n == 0 {
		return Outcome{Board: b}
	}
	return Outcome{Board: next, Changed: true, Commit: true}
}

func (m Machine) groupPointerDown(s *Session, b board.Board, ev Event) Outcome {
	switch ev.Target.Kind {
	case TargetItem:
		it, _, ok := b.Find(ev.Target.ItemID)
		if !ok || !b.CanEdit(m.User, it) {
			return Outcome{Board: b}
		}
		if i := slices.Index(s.Selected, it.ID); i >= 0 {
			s.Selected = slices.Delete(slices.Clone(s.Selected), i, i+1)
		} else {
			s.Selected = append(slices.Clone(s.Selected), it.ID)
		}

	case TargetCanvas:
		s.State = SelectingRubberBand
		s.Start = ev.Pos
		s.Band = geometry.Rect{X: ev.Pos.X, Y: ev.Pos.Y}
		s.Selected = nil

	case TargetGroup, TargetGroupResizeHandle:
		items := m.editable(b, SelectedItems(s, b))
		bounds, ok := geometry.BoundingBoxOf(items)
		if !ok {
			return Outcome{Board: b}
		}
		s.GroupInitial = items
		s.Start = ev.Pos
		if ev.Target.Kind == TargetGroup {
			s.State = DraggingGroup
		} else {
			s.State = ResizingGroup
			s.GroupBounds = bounds
		}
	}
	return Outcome{Board: b}
}

// selectInside returns the editable items whose bounds overlap band.
func (m Machine) selectInside(b board.Board, band geometry.Rect) []string {
	var ids []string
	for _, it := range b.Items {
		if band.Intersects(geometry.ItemBounds(it)) && b.CanEdit(m.User, it) {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (m Machine) editable(b board.Board, items []board.Item) []board.Item {
	out := make([]board.Item, 0, len(items))
	for _, it := range items {
		if b.CanEdit(m.User, it) {
			out = append(out, it)
		}
	}
	return out
}
