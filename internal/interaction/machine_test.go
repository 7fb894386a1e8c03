package interaction

import (
	"math"
	"testing"
	"time"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
)

const eps = 1e-9

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func down(x, y float64, kind TargetKind, id string) Event {
	return Event{Kind: PointerDown, Pos: pt(x, y), Target: Target{Kind: kind, ItemID: id}}
}

func move(x, y float64) Event { return Event{Kind: PointerMove, Pos: pt(x, y)} }
func up(x, y float64) Event   { return Event{Kind: PointerUp, Pos: pt(x, y)} }

func newBoard(items ...board.Item) board.Board {
	b := board.New("test", "host", time.Unix(0, 0))
	b.Items = items
	return b
}

func text(id, author string, x, y float64) board.Item {
	return board.Item{ID: id, Payload: board.Text{Body: id}, X: x, Y: y, Width: board.Float(250), Author: author, FontSize: board.Float(20)}
}

func square(id, author string, x, y, size float64) board.Item {
	return board.Item{ID: id, Payload: board.Sticker{Source: id}, X: x, Y: y, Width: board.Float(size), Height: board.Float(size), Author: author}
}

// run feeds events in order and returns the final board and the number of
// commits seen.
func run(m Machine, s *Session, b board.Board, events ...Event) (board.Board, int) {
	commits := 0
	for _, ev := range events {
		out := m.Handle(s, b, ev)
		b = out.Board
		if out.Commit {
			commits++
		}
	}
	return b, commits
}

func TestDragTextItem(t *testing.T) {
	m := Machine{User: "alice"}
	s := &Session{}
	b := newBoard(text("t", "alice", 100, 100))

	got, commits := run(m, s, b,
		down(120, 120, TargetItem, "t"),
		move(130, 125),
		move(150, 150),
		up(170, 160),
	)
	it := got.Items[0]
	if it.X != 150 || it.Y != 140 {
		t.Fatalf("item at (%v,%v), want (150,140)", it.X, it.Y)
	}
	if commits != 1 {
		t.Fatalf("commits = %d, want 1", commits)
	}
	if s.State != Idle || s.Active != "t" {
		t.Fatalf("session after up: %+v", s)
	}
	if b.Items[0].X != 100 {
		t.Fatal("input board was mutated")
	}
}

func TestDragIsIndependentOfIntermediateMoves(t *testing.T) {
	m := Machine{User: "alice"}
	x0, dx := 3.3, 41.1
	b := newBoard(square("a", "alice", x0, 7.7, 100))

	few, _ := run(m, &Session{}, b, down(0, 0, TargetItem, "a"), up(dx, -12.9))

	events := []Event{down(0, 0, TargetItem, "a")}
	for i := 1; i <= 500; i++ {
		f := float64(i) / 500
		events = append(events, move(41.1*f+math.Sin(float64(i)), -12.9*f))
	}
	events = append(events, up(41.1, -12.9))
	many, _ := run(m, &Session{}, b, events...)

	if few.Items[0].X != many.Items[0].X || few.Items[0].Y != many.Items[0].Y {
		t.Fatalf("drift: %v,%v vs %v,%v", few.Items[0].X, few.Items[0].Y, many.Items[0].X, many.Items[0].Y)
	}
	if few.Items[0].X != x0+dx {
		t.Fatalf("x = %v", few.Items[0].X)
	}
}

func TestResizeClampsAndKeepsAutoHeight(t *testing.T) {
	m := Machine{User: "alice"}

	sq := newBoard(square("a", "alice", 0, 0, 100))
	got, _ := run(m, &Session{}, sq, down(100, 100, TargetResizeHandle, "a"), move(0, 0), up(-400, 130))
	if *got.Items[0].Width != board.MinSize || *got.Items[0].Height != 130 {
		t.Fatalf("size = %vx%v", *got.Items[0].Width, *got.Items[0].Height)
	}

	txt := newBoard(board.Item{ID: "t", Payload: board.Text{Body: "hi"}, Author: "alice"})
	got, _ = run(m, &Session{}, txt, down(250, 40, TargetResizeHandle, "t"), up(300, 400))
	it := got.Items[0]
	if *it.Width != 300 {
		t.Errorf("text width = %v, want default 250 + 50", *it.Width)
	}
	if it.Height != nil {
		t.Errorf("auto-height text gained height %v", *it.Height)
	}

	emoji := newBoard(board.Item{ID: "e", Payload: board.Emoji{Glyph: "🙂"}, Author: "alice"})
	got, _ = run(m, &Session{}, emoji, down(0, 0, TargetResizeHandle, "e"), up(10, 20))
	if *got.Items[0].Width != 110 || *got.Items[0].Height != 120 {
		t.Errorf("emoji size = %vx%v", *got.Items[0].Width, *got.Items[0].Height)
	}
}

func TestRotationIsDeltaBased(t *testing.T) {
	m := Machine{User: "alice"}
	it := square("a", "alice", -50, -50, 100) // centred on the origin
	it.Rotation = 400
	b := newBoard(it)

	b, _ = run(m, &Session{}, b,
		down(10, 0, TargetRotateHandle, "a"),
		move(7, 7),
		move(-3, 9),
		up(0, 10),
	)
	if math.Abs(b.Items[0].Rotation-490) > eps {
		t.Fatalf("rotation = %v, want 490", b.Items[0].Rotation)
	}

	b, _ = run(m, &Session{}, b,
		down(0, 30, TargetRotateHandle, "a"),
		move(-20, -40),
		move(5, 2),
		up(30, 0),
	)
	if math.Abs(b.Items[0].Rotation-400) > eps {
		t.Fatalf("rotation after reverse = %v, want 400", b.Items[0].Rotation)
	}
}

func TestOneInteractionAtATime(t *testing.T) {
	m := Machine{User: "alice"}
	s := &Session{}
	b := newBoard(square("a", "alice", 0, 0, 100), square("b", "alice", 500, 500, 100))

	b, _ = run(m, s, b,
		down(10, 10, TargetItem, "a"),
		down(510, 510, TargetItem, "b"),
		move(20, 20),
		up(20, 20),
	)
	if b.Items[0].X != 10 || b.Items[1].X != 500 {
		t.Fatalf("second pointer-down was not ignored: a=%v b=%v", b.Items[0].X, b.Items[1].X)
	}
}

func TestUnauthorizedGestureIsNoOp(t *testing.T) {
	m := Machine{User: "mallory"}
	s := &Session{}
	b := newBoard(square("a", "alice", 0, 0, 100))

	for _, kind := range []TargetKind{TargetItem, TargetResizeHandle, TargetRotateHandle} {
		got, commits := run(m, s, b, down(10, 10, kind, "a"), move(90, 90), up(90, 90))
		if commits != 0 || s.State != Idle || s.Active != "" {
			t.Fatalf("kind %d: session %+v, commits %d", kind, s, commits)
		}
		if got.Items[0] != b.Items[0] {
			t.Fatalf("kind %d: board changed", kind)
		}
	}
}

func TestHostMayMoveAnyItem(t *testing.T) {
	m := Machine{User: "host"}
	b := newBoard(square("a", "alice", 0, 0, 100))
	got, commits := run(m, &Session{}, b, down(0, 0, TargetItem, "a"), up(5, 5))
	if commits != 1 || got.Items[0].X != 5 {
		t.Fatalf("host drag failed: x=%v commits=%d", got.Items[0].X, commits)
	}
}

func TestPointerLeaveCommits(t *testing.T) {
	m := Machine{User: "alice"}
	s := &Session{}
	b := newBoard(square("a", "alice", 0, 0, 100))
	b, _ = run(m, s, b, down(0, 0, TargetItem, "a"), move(5, 5))
	out := m.Handle(s, b, Event{Kind: PointerLeave, Pos: pt(8, 9)})
	if !out.Commit || s.State != Idle {
		t.Fatalf("leave did not commit: %+v", out)
	}
	if out.Board.Items[0].X != 8 || out.Board.Items[0].Y != 9 {
		t.Fatalf("leave position = (%v,%v)", out.Board.Items[0].X, out.Board.Items[0].Y)
	}
}

func TestItemDeletedMidDragIsNotResurrected(t *testing.T) {
	m := Machine{User: "alice"}
	s := &Session{}
	b := newBoard(square("a", "alice", 0, 0, 100), square("b", "alice", 0, 0, 100))
	m.Handle(s, b, down(0, 0, TargetItem, "a"))

	remote := newBoard(b.Items[1])
	out := m.Handle(s, remote, move(40, 40))
	if len(out.Board.Items) != 1 || out.Board.Items[0].ID != "b" {
		t.Fatalf("unexpected items %+v", out.Board.Items)
	}
}

func TestCanvasClickClearsActive(t *testing.T) {
	m := Machine{User: "alice"}
	s := &Session{Active: "a"}
	m.Handle(s, newBoard(), down(0, 0, TargetCanvas, ""))
	if s.Active != "" {
		t.Fatalf("active = %q", s.Active)
	}
}
