package main

import (
	"strings"
	"testing"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/geometry"
	"corkboard/internal/interaction"
)

func note(id, body string, x, y, w, h float64) board.Item {
	return board.Item{
		ID:      id,
		Payload: board.Text{Body: body},
		X:       x,
		Y:       y,
		Width:   board.Float(w),
		Height:  board.Float(h),
		Author:  "alice",
	}
}

// Cells covered: a spans x 10..19, y 2..4; b spans x 15..24, y 3..5.
func overlappingView() boardsync.View {
	b := board.New("Ideas", "alice", testTime)
	b.Items = []board.Item{
		note("a", "first", 80, 32, 80, 48),
		note("b", "second", 120, 48, 80, 48),
	}
	return boardsync.View{Board: b}
}

func TestViewportRoundTrip(t *testing.T) {
	vp := viewport{width: 40, height: 20, panX: 3, panY: -2}
	for _, cell := range [][2]int{{0, 0}, {5, 7}, {39, 19}, {-4, 2}} {
		x, y := vp.toCell(vp.toBoard(cell[0], cell[1]))
		if x != cell[0] || y != cell[1] {
			t.Errorf("toCell(toBoard(%v)) = (%d, %d)", cell, x, y)
		}
	}
	if got := vp.toBoard(0, 0); got != (geometry.Point{X: 28, Y: -24}) {
		t.Errorf("toBoard(0, 0) = %+v", got)
	}
}

func TestCellBox(t *testing.T) {
	vp := viewport{width: 40, height: 20}

	got := vp.cellBox(geometry.Rect{X: 80, Y: 32, Width: 80, Height: 48})
	if want := (cellBox{X: 10, Y: 2, Width: 10, Height: 3}); got != want {
		t.Errorf("cellBox() = %+v, want %+v", got, want)
	}

	tiny := vp.cellBox(geometry.Rect{X: 8, Y: 16, Width: 1, Height: 1})
	if tiny.Width != minBoxCells || tiny.Height != minBoxCells {
		t.Errorf("tiny box = %+v, want at least %d cells each way", tiny, minBoxCells)
	}
	if x, y := got.resizeHandle(); x != 19 || y != 4 {
		t.Errorf("resizeHandle() = (%d, %d)", x, y)
	}
	if x, y := got.rotateHandle(); x != 15 || y != 1 {
		t.Errorf("rotateHandle() = (%d, %d)", x, y)
	}
}

func TestHitTest(t *testing.T) {
	vp := viewport{width: 40, height: 20}

	tests := []struct {
		name   string
		active string
		x, y   int
		want   interaction.Target
	}{
		{"top item wins", "", 16, 4, interaction.Target{Kind: interaction.TargetItem, ItemID: "b"}},
		{"uncovered part", "", 11, 2, interaction.Target{Kind: interaction.TargetItem, ItemID: "a"}},
		{"empty canvas", "", 30, 10, interaction.Target{Kind: interaction.TargetCanvas}},
		{"handle cell without active item", "", 19, 4, interaction.Target{Kind: interaction.TargetItem, ItemID: "b"}},
		{"resize handle over other item", "a", 19, 4, interaction.Target{Kind: interaction.TargetResizeHandle, ItemID: "a"}},
		{"rotate handle", "a", 15, 1, interaction.Target{Kind: interaction.TargetRotateHandle, ItemID: "a"}},
		{"active item body", "a", 11, 3, interaction.Target{Kind: interaction.TargetItem, ItemID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := overlappingView()
			view.Session.Active = tt.active
			if got := hitTest(view, vp, tt.x, tt.y); got != tt.want {
				t.Errorf("hitTest(%d, %d) = %+v, want %+v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestHitTestGroupMode(t *testing.T) {
	vp := viewport{width: 40, height: 20}
	view := overlappingView()
	view.Session.GroupMode = true
	view.Session.Active = "a"
	view.Session.Selected = []string{"a"}
	view.Group = geometry.Rect{X: 80, Y: 32, Width: 80, Height: 48}
	view.HasGroup = true

	tests := []struct {
		name string
		x, y int
		want interaction.TargetKind
	}{
		{"group handle", 19, 4, interaction.TargetGroupResizeHandle},
		{"group box over items", 16, 3, interaction.TargetGroup},
		{"item outside group", 16, 5, interaction.TargetItem},
		{"item rotate handle is ignored", 15, 1, interaction.TargetCanvas},
		{"canvas", 30, 10, interaction.TargetCanvas},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hitTest(view, vp, tt.x, tt.y); got.Kind != tt.want {
				t.Errorf("hitTest(%d, %d) = %+v, want kind %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestBuildGrid(t *testing.T) {
	b := board.New("Ideas", "alice", testTime)
	b.Items = []board.Item{note("a", "hello\nworld", 16, 16, 80, 64)}
	view := boardsync.View{Board: b}
	vp := viewport{width: 20, height: 8}

	lines := buildGrid(view, vp, nil).plainLines()
	want := []string{
		"",
		"  +--------+",
		"  |hello   |",
		"  |world   |",
		"  +--------+",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}

	view.Session.Active = "a"
	lines = buildGrid(view, vp, nil).plainLines()
	if lines[0] != "       ↻" {
		t.Errorf("rotate handle line = %q", lines[0])
	}
	if lines[4] != "  #########◢" {
		t.Errorf("active bottom line = %q", lines[4])
	}
}

func TestBuildGridClipsText(t *testing.T) {
	b := board.New("Ideas", "alice", testTime)
	b.Items = []board.Item{note("a", "a very long line of text", 0, 0, 48, 48)}
	lines := buildGrid(boardsync.View{Board: b}, viewport{width: 10, height: 4}, nil).plainLines()
	if lines[1] != "|a ve|" {
		t.Errorf("clipped line = %q", lines[1])
	}
}

func TestGridWideClusters(t *testing.T) {
	g := newGrid(6, 1)
	if w := g.set(0, 0, "😀", ""); w != 2 {
		t.Fatalf("set() width = %d, want 2", w)
	}
	g.text(2, 0, "ab", 4, "")
	if got := g.plainLines()[0]; got != "😀ab" {
		t.Errorf("line = %q", got)
	}

	// Writing over the continuation cell blanks the wide cluster.
	g.set(1, 0, "x", "")
	if got := g.plainLines()[0]; got != " xab" {
		t.Errorf("after overwrite line = %q", got)
	}

	// A wide cluster that would cross the edge is dropped.
	g.set(5, 0, "😀", "")
	if got := g.plainLines()[0]; got != " xab" {
		t.Errorf("edge cluster line = %q", got)
	}
}

func TestDrawingStrokesFollowItemSize(t *testing.T) {
	it := board.Item{
		ID:      "d",
		Payload: board.Drawing{Path: "M0 0 L10 20"},
		X:       100,
		Y:       50,
		Width:   board.Float(40),
		Height:  board.Float(80),
	}
	strokes := drawingStrokes(it, it.Payload.(board.Drawing))
	if len(strokes) != 1 || len(strokes[0]) != 2 {
		t.Fatalf("strokes = %v", strokes)
	}
	if got := strokes[0][1]; got != (geometry.Point{X: 140, Y: 130}) {
		t.Errorf("end point = %+v, want {140 130}", got)
	}
}

func TestFullViewportFramesItems(t *testing.T) {
	b := board.New("Ideas", "alice", testTime)
	b.Items = []board.Item{
		note("a", "first", -200, 40, 80, 48),
		note("b", "second", 300, 400, 80, 48),
	}
	vp := fullViewport(b)
	for _, it := range b.Items {
		box := vp.cellBox(geometry.ItemBounds(it))
		if box.X < 0 || box.Y < 0 || box.X+box.Width > vp.width || box.Y+box.Height > vp.height {
			t.Errorf("item %s box %+v outside viewport %+v", it.ID, box, vp)
		}
	}
}

func TestImageKind(t *testing.T) {
	tests := map[string]string{
		"data:image/png;base64,AAAA": "image/png",
		"data:image/svg+xml,%3Csvg": "image/svg+xml",
		"data:,plain":               "image",
		"https://example.com/a.png": "image",
	}
	for uri, want := range tests {
		if got := imageKind(uri); got != want {
			t.Errorf("imageKind(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestItemLines(t *testing.T) {
	tests := []struct {
		payload board.Payload
		want    string
	}{
		{board.Text{Body: "a\nb"}, "a|b"},
		{board.Emoji{Glyph: "🎉"}, "🎉"},
		{board.Image{DataURI: "data:image/gif;base64,R0"}, "[image/gif]"},
		{board.Sticker{Source: "https://cdn.example.com/packs/cat.webp"}, "[sticker]|cat.webp"},
		{board.Drawing{Path: "M0 0"}, ""},
	}
	for _, tt := range tests {
		got := strings.Join(itemLines(board.Item{Payload: tt.payload}), "|")
		if got != tt.want {
			t.Errorf("itemLines(%T) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
