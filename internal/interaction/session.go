// Package interaction turns pointer events into board mutations.
//
// A Machine is bound to the acting user and is stateless itself; all
// transient gesture state lives in a Session that the caller owns and passes
// in by reference. Every pointer-move re-derives the mutated items from the
// snapshot taken at pointer-down plus the live pointer delta, so dropped or
// coalesced move events never accumulate error.
package interaction

import (
	"slices"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
)

// State is the active interaction. Only one is active at a time.
type State int

const (
	Idle State = iota
	DraggingItem
	ResizingItem
	RotatingItem
	SelectingRubberBand
	DraggingGroup
	ResizingGroup
)

var stateNames = [...]string{
	Idle:                "idle",
	DraggingItem:        "dragging",
	ResizingItem:        "resizing",
	RotatingItem:        "rotating",
	SelectingRubberBand: "selecting",
	DraggingGroup:       "dragging group",
	ResizingGroup:       "resizing group",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Manipulating reports whether s is moving, sizing or turning items.
func (s State) Manipulating() bool {
	switch s {
	case DraggingItem, ResizingItem, RotatingItem, DraggingGroup, ResizingGroup:
		return true
	}
	return false
}

// EventKind distinguishes pointer events.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	// PointerLeave ends the interaction exactly like PointerUp.
	PointerLeave
)

// TargetKind is what the pointer went down on.
type TargetKind int

const (
	TargetCanvas TargetKind = iota
	TargetItem
	TargetResizeHandle
	TargetRotateHandle
	TargetGroup
	TargetGroupResizeHandle
)

// Target names the element under the pointer. ItemID is set for the item
// and handle kinds.
type Target struct {
	Kind   TargetKind
	ItemID string
}

// Event is one pointer event in board coordinates.
type Event struct {
	Kind   EventKind
	Pos    geometry.Point
	Target Target
}

// Session is the transient interaction record: the gesture in progress,
// its reference snapshot, the active item and the group selection.
type Session struct {
	State State

	// ItemID is the item under a single-item gesture.
	ItemID string
	// Active is the item whose handles are shown.
	Active string

	Start      geometry.Point
	StartAngle float64
	Initial    board.Item

	GroupInitial []board.Item
	GroupBounds  geometry.Rect

	// Band is the rubber-band rectangle while selecting.
	Band geometry.Rect

	GroupMode bool
	Selected  []string
}

// Interacting reports whether items are being manipulated right now.
func (s *Session) Interacting() bool {
	return s.State.Manipulating()
}

// IsSelected reports whether id is in the group selection.
func (s *Session) IsSelected(id string) bool {
	return slices.Contains(s.Selected, id)
}

// Prune drops selection and active references to items no longer on b.
func (s *Session) Prune(b board.Board) {
	s.Selected = slices.DeleteFunc(s.Selected, func(id string) bool {
		_, _, ok := b.Find(id)
		return !ok
	})
	if s.Active != "" {
		if _, _, ok := b.Find(s.Active); !ok {
			s.Active = ""
		}
	}
}

// endGesture returns to Idle and drops the gesture snapshot. The active
// item and the selection survive.
func (s *Session) endGesture() {
	s.State = Idle
	s.ItemID = ""
	s.Initial = board.Item{}
	s.GroupInitial = nil
	s.GroupBounds = geometry.Rect{}
	s.Band = geometry.Rect{}
}
