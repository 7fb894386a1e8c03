package board

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func textItem(id, author string, x, y float64) Item {
	return Item{
		ID:      id,
		Payload: Text{Body: id},
		X:       x,
		Y:       y,
		Width:   Float(250),
		Author:  author,
	}
}

func TestAddItemRespectsLimit(t *testing.T) {
	b := New("limits", "host", time.Unix(0, 0))
	b.MaxItemsPerUser = 2
	var err error
	for _, id := range []string{"a", "b"} {
		b, err = b.AddItem(textItem(id, "alice", 0, 0))
		if err != nil {
			t.Fatalf("AddItem(%s): %v", id, err)
		}
	}

	got, err := b.AddItem(textItem("c", "alice", 0, 0))
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items after rejection, got %d", len(got.Items))
	}

	// other authors are counted separately
	if _, err := b.AddItem(textItem("d", "bob", 0, 0)); err != nil {
		t.Fatalf("bob should not be limited: %v", err)
	}
}

func TestAddItemDoesNotAliasItems(t *testing.T) {
	b := New("alias", "host", time.Unix(0, 0))
	b.Items = make([]Item, 1, 8)
	b.Items[0] = textItem("a", "host", 0, 0)

	x, _ := b.AddItem(textItem("x", "host", 0, 0))
	y, _ := b.AddItem(textItem("y", "host", 0, 0))
	if x.Items[1].ID != "x" || y.Items[1].ID != "y" {
		t.Fatalf("appends leaked between boards: %s %s", x.Items[1].ID, y.Items[1].ID)
	}
}

func TestAuthorization(t *testing.T) {
	b := New("auth", "host", time.Unix(0, 0))
	b.Items = []Item{textItem("a", "alice", 10, 10)}

	tests := []struct {
		user string
		want bool
	}{
		{"alice", true},
		{"host", true},
		{"mallory", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := b.CanEdit(tt.user, b.Items[0]); got != tt.want {
			t.Errorf("CanEdit(%q) = %v, want %v", tt.user, got, tt.want)
		}
	}

	x := 99.0
	got, err := b.UpdateItem("mallory", "a", Patch{X: &x})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got.Items[0].X != 10 {
		t.Fatalf("forbidden update changed the board")
	}
	if _, err := b.DeleteItem("mallory", "a"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := b.ReorderItem("mallory", "a", LayerBack); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on reorder, got %v", err)
	}
}

func TestUpdateItemClamps(t *testing.T) {
	b := New("clamp", "host", time.Unix(0, 0))
	b.Items = []Item{
		textItem("t", "host", 0, 0),
		{ID: "d", Payload: Drawing{Path: "M0 0 L1 1"}, Author: "host"},
	}

	small, huge, tiny := 10.0, 500.0, 0.5
	got, err := b.UpdateItem("host", "t", Patch{Width: &small, FontSize: &huge})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if *got.Items[0].Width != MinSize {
		t.Errorf("width = %v, want %v", *got.Items[0].Width, MinSize)
	}
	if *got.Items[0].FontSize != MaxFontSize {
		t.Errorf("fontSize = %v, want %v", *got.Items[0].FontSize, MaxFontSize)
	}
	if b.Items[0].Width == got.Items[0].Width {
		t.Errorf("update wrote through the original width pointer")
	}

	got, err = b.UpdateItem("host", "d", Patch{Width: &tiny, Height: &small})
	if err != nil {
		t.Fatalf("UpdateItem drawing: %v", err)
	}
	if *got.Items[1].Width != MinDrawingSize || *got.Items[1].Height != small {
		t.Errorf("drawing size = %vx%v", *got.Items[1].Width, *got.Items[1].Height)
	}
}

func TestReorderItem(t *testing.T) {
	b := New("layers", "host", time.Unix(0, 0))
	b.Items = []Item{textItem("a", "host", 0, 0), textItem("b", "host", 0, 0), textItem("c", "host", 0, 0)}

	front, err := b.ReorderItem("host", "a", LayerFront)
	if err != nil {
		t.Fatal(err)
	}
	if ids(front) != "bca" {
		t.Errorf("front order = %s", ids(front))
	}
	back, _ := b.ReorderItem("host", "c", LayerBack)
	if ids(back) != "cab" {
		t.Errorf("back order = %s", ids(back))
	}
	if ids(b) != "abc" {
		t.Errorf("receiver mutated: %s", ids(b))
	}
}

func TestDeleteItemsSkipsForeignItems(t *testing.T) {
	b := New("delete", "host", time.Unix(0, 0))
	b.Items = []Item{textItem("a", "alice", 0, 0), textItem("b", "bob", 0, 0), textItem("c", "alice", 0, 0)}

	got, n := b.DeleteItems("alice", []string{"a", "b", "c"})
	if n != 2 || ids(got) != "b" {
		t.Fatalf("removed %d, left %s", n, ids(got))
	}
}

func TestSetFieldsHostOnly(t *testing.T) {
	b := New("settings", "host", time.Unix(0, 0))
	limit := 3
	public := true
	if _, err := b.SetFields("guest", Settings{MaxItemsPerUser: &limit}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := b.SetFields("host", Settings{MaxItemsPerUser: &limit, IsPublic: &public})
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxItemsPerUser != 3 || !got.IsPublic {
		t.Fatalf("settings not applied: %+v", got)
	}
	bad := BackgroundSize("tile")
	if _, err := b.SetFields("host", Settings{BackgroundSize: &bad}); err == nil {
		t.Fatal("expected error for unknown background size")
	}
}

func TestNewPayload(t *testing.T) {
	tests := []struct {
		typ     ItemType
		content string
		ok      bool
	}{
		{TypeText, "", true},
		{TypeEmoji, "🎉", true},
		{TypeEmoji, "👍🏽", true},
		{TypeEmoji, "ab", false},
		{TypeImage, "data:image/png;base64,AAAA", true},
		{TypeImage, "https://example.com/a.png", false},
		{TypeDrawing, "M 0 0 L 10 10", true},
		{TypeDrawing, " ", false},
		{ItemType("VIDEO"), "x", false},
	}
	for _, tt := range tests {
		_, err := NewPayload(tt.typ, tt.content)
		if (err == nil) != tt.ok {
			t.Errorf("NewPayload(%s, %q) err = %v, want ok=%v", tt.typ, tt.content, err, tt.ok)
		}
	}
}

func TestNewItemDefaults(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	text := NewItem("alice", Draft{Payload: Text{Body: "hi"}, X: 500, Y: 400}, now, nil)
	if text.Height != nil || *text.Width != 250 || *text.FontSize != DefaultFontSize {
		t.Errorf("text defaults wrong: %+v", text)
	}
	if text.X != 375 || text.Y != 275 {
		t.Errorf("text placed at (%v,%v)", text.X, text.Y)
	}
	if text.CreatedAt != now.UnixMilli() || text.ID == "" {
		t.Errorf("identity fields not set: %+v", text)
	}

	emoji := NewItem("alice", Draft{Payload: Emoji{Glyph: "🔥"}}, now, nil)
	if *emoji.Width != 100 || *emoji.Height != 100 || emoji.FontSize != nil {
		t.Errorf("emoji defaults wrong: %+v", emoji)
	}
}

func TestItemJSONKeepsOptionalFields(t *testing.T) {
	b := New("json", "host", time.UnixMilli(1))
	b.Items = []Item{textItem("a", "host", 1.5, 2.5)}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var back Board
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	it := back.Items[0]
	if it.Type() != TypeText || it.Content() != "a" {
		t.Fatalf("payload lost: %+v", it)
	}
	if it.Height != nil {
		t.Errorf("absent height came back as %v", *it.Height)
	}
	if it.Width == nil || *it.Width != 250 {
		t.Errorf("width lost")
	}
}

func ids(b Board) string {
	s := ""
	for _, it := range b.Items {
		s += it.ID
	}
	return s
}
