package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestExportName(t *testing.T) {
	b := board.New("Q3 Planning!! / Ideas", "alice", testTime)
	if got, want := exportName(b, exportPNGExt), "q3-planning-ideas-"+shortID(b.ID)+".png"; got != want {
		t.Errorf("exportName() = %q, want %q", got, want)
	}
	b.Topic = "  ***  "
	if got := exportName(b, exportTextExt); !strings.HasPrefix(got, "board-") || !strings.HasSuffix(got, ".txt") {
		t.Errorf("exportName() = %q", got)
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"#fff", true},
		{" #fef08a ", true},
		{"#11223344", true},
		{"fef08a", false},
		{"#ggg", false},
		{"#12345", false},
		{board.Transparent, false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := hexColor(tt.in); ok != tt.want {
			t.Errorf("hexColor(%q) ok = %v, want %v", tt.in, ok, tt.want)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	img, err := decodeDataURI(pngDataURI(t, 4, 3))
	if err != nil {
		t.Fatalf("decodeDataURI() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bounds = %v", b)
	}

	for _, bad := range []string{"data:image/png;base64", "data:image/png;base64,!!!", "data:image/png,notanimage"} {
		if _, err := decodeDataURI(bad); err == nil {
			t.Errorf("decodeDataURI(%q) succeeded", bad)
		}
	}
}

func TestExportPNG(t *testing.T) {
	b := board.New("Ideas", "alice", testTime)
	b.BackgroundColor = "#336699"
	b.Items = []board.Item{
		note("text", "hello world", 0, 0, 200, 100),
		{ID: "emoji", Payload: board.Emoji{Glyph: "🎉"}, X: 220, Y: 0, Width: board.Float(100), Height: board.Float(100), Rotation: 30},
		{ID: "image", Payload: board.Image{DataURI: pngDataURI(t, 8, 8)}, X: 0, Y: 120, Width: board.Float(64), Height: board.Float(64)},
		{ID: "broken", Payload: board.Image{DataURI: "data:image/png;base64,AAAA"}, X: 80, Y: 120, Width: board.Float(64), Height: board.Float(64)},
		{ID: "sticker", Payload: board.Sticker{Source: "https://cdn.example.com/cat.webp"}, X: 160, Y: 120, Width: board.Float(64), Height: board.Float(64)},
		{ID: "drawing", Payload: board.Drawing{Path: "M0 0 L40 40 M0 40 L40 0"}, X: 240, Y: 120, Width: board.Float(40), Height: board.Float(40), TextColor: "#000"},
	}
	filename := filepath.Join(t.TempDir(), "board.png")

	if err := exportPNG(b, filename); err != nil {
		t.Fatalf("exportPNG() error = %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("exported file is not a PNG: %v", err)
	}
	if bounds := img.Bounds(); bounds.Dx() < 320 || bounds.Dy() < 184 {
		t.Errorf("image %v does not cover the items", bounds)
	}
	r, g, bl, _ := img.At(0, 0).RGBA()
	if r>>8 != 0x33 || g>>8 != 0x66 || bl>>8 != 0x99 {
		t.Errorf("corner colour = %x %x %x, want board background", r>>8, g>>8, bl>>8)
	}
}

func TestExportEmptyBoard(t *testing.T) {
	b := board.New("Empty", "alice", testTime)
	dir := t.TempDir()

	if err := exportPNG(b, filepath.Join(dir, "a.png")); !errors.Is(err, errNothingToExport) {
		t.Errorf("exportPNG() error = %v", err)
	}
	view := boardsync.View{Board: b}
	if err := exportVisualTXT(view, fullViewport(b), filepath.Join(dir, "a.txt")); !errors.Is(err, errNothingToExport) {
		t.Errorf("exportVisualTXT() error = %v", err)
	}
}

func TestExportVisualTXTHidesHandles(t *testing.T) {
	b := board.New("Ideas", "alice", testTime)
	b.Items = []board.Item{note("a", "hello", 16, 16, 80, 48)}
	view := boardsync.View{Board: b}
	view.Session.Active = "a"
	filename := filepath.Join(t.TempDir(), "board.txt")

	if err := exportVisualTXT(view, fullViewport(b), filename); err != nil {
		t.Fatalf("exportVisualTXT() error = %v", err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "|hello") {
		t.Errorf("export missing item text:\n%s", out)
	}
	if strings.ContainsAny(out, "#◢↻") {
		t.Errorf("export shows selection styling:\n%s", out)
	}
}

func TestModelExportWritesToSaveDirectory(t *testing.T) {
	m := newTestModel(t)
	addNote(t, m, "saved")

	m.export(exportTextExt)
	if m.errorMessage != "" {
		t.Fatalf("export error: %s", m.errorMessage)
	}
	matches, err := filepath.Glob(filepath.Join(m.app.config.SaveDirectory, "ideas-*.txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("exported files = %v, %v", matches, err)
	}
}
