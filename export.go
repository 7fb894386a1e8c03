package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/geometry"
)

const exportPadding = 20.0

var errNothingToExport = errors.New("nothing to export")

// export writes the open board next to the configured save directory.
// PNG covers the whole board, text the current screen.
func (m *model) export(ext string) {
	view := m.ctrl.View()
	filename := m.app.config.GetSavePath(exportName(view.Board, ext))

	var err error
	switch ext {
	case exportPNGExt:
		err = exportPNG(view.Board, filename)
	default:
		err = exportVisualTXT(view, m.viewport(), filename)
	}
	if err != nil {
		m.errorMessage = fmt.Sprintf("export failed: %v", err)
		return
	}
	m.successMessage = "exported " + filename
}

// exportName builds "<topic>-<short id><ext>" from the board.
func exportName(b board.Board, ext string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return '-'
		}
	}, b.Topic)
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "board"
	}
	return slug + "-" + shortID(b.ID) + ext
}

// exportVisualTXT writes the board exactly as rendered in vp, without
// styling or handles.
func exportVisualTXT(view boardsync.View, vp viewport, filename string) error {
	if len(view.Board.Items) == 0 {
		return errNothingToExport
	}
	view.Session.Active = ""
	view.Session.Selected = nil
	view.HasGroup = false

	var sb strings.Builder
	for _, line := range buildGrid(view, vp, nil).plainLines() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return os.WriteFile(filename, []byte(sb.String()), 0o644)
}

// exportPNG renders every item of b, rotated and coloured, onto the board
// background.
func exportPNG(b board.Board, filename string) error {
	if len(b.Items) == 0 {
		return errNothingToExport
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, it := range b.Items {
		r := geometry.ItemBounds(it)
		c := r.Center()
		// Covers the item at any rotation.
		reach := math.Hypot(r.Width, r.Height) / 2
		minX, maxX = math.Min(minX, c.X-reach), math.Max(maxX, c.X+reach)
		minY, maxY = math.Min(minY, c.Y-reach), math.Max(maxY, c.Y+reach)
	}
	minX -= exportPadding
	minY -= exportPadding
	width := int(math.Ceil(maxX - minX + exportPadding))
	height := int(math.Ceil(maxY - minY + exportPadding))

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	if hex, ok := hexColor(b.BackgroundColor); ok {
		dc.SetHexColor(hex)
	}
	dc.Clear()

	faces, err := newFaceCache()
	if err != nil {
		return err
	}
	dc.Translate(-minX, -minY)
	for _, it := range b.Items {
		drawItemPNG(dc, faces, it)
	}
	return dc.SavePNG(filename)
}

func drawItemPNG(dc *gg.Context, faces *faceCache, it board.Item) {
	r := geometry.ItemBounds(it)
	c := r.Center()

	dc.Push()
	defer dc.Pop()
	dc.RotateAbout(gg.Radians(it.Rotation), c.X, c.Y)

	if hex, ok := hexColor(it.Color); ok {
		dc.SetHexColor(hex)
		dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
		dc.Fill()
	}

	ink := "#111827"
	if hex, ok := hexColor(it.TextColor); ok {
		ink = hex
	}

	switch p := it.Payload.(type) {
	case board.Text:
		dc.SetFontFace(faces.face(it.FontSizeOrDefault()))
		dc.SetHexColor(ink)
		dc.DrawStringWrapped(p.Body, r.X+8, r.Y+8, 0, 0, math.Max(r.Width-16, 1), 1.3, gg.AlignLeft)

	case board.Emoji:
		dc.SetFontFace(faces.face(math.Min(r.Width, r.Height) * 0.6))
		dc.SetHexColor(ink)
		dc.DrawStringAnchored(p.Glyph, c.X, c.Y, 0.5, 0.5)

	case board.Image:
		img, err := decodeDataURI(p.DataURI)
		if err != nil {
			placeholderPNG(dc, faces, r, "[image]")
			return
		}
		bounds := img.Bounds()
		dc.Push()
		dc.Translate(r.X, r.Y)
		dc.Scale(r.Width/float64(bounds.Dx()), r.Height/float64(bounds.Dy()))
		dc.DrawImage(img, -bounds.Min.X, -bounds.Min.Y)
		dc.Pop()

	case board.Sticker:
		placeholderPNG(dc, faces, r, "["+stickerName(p.Source)+"]")

	case board.Drawing:
		dc.SetHexColor(ink)
		dc.SetLineWidth(3)
		dc.SetLineCapRound()
		dc.SetLineJoinRound()
		for _, stroke := range drawingStrokes(it, p) {
			for i, pt := range stroke {
				if i == 0 {
					dc.MoveTo(pt.X, pt.Y)
				}
				dc.LineTo(pt.X, pt.Y)
			}
			dc.Stroke()
		}
	}
}

func placeholderPNG(dc *gg.Context, faces *faceCache, r geometry.Rect, label string) {
	dc.SetLineWidth(1)
	dc.SetHexColor("#9ca3af")
	dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
	dc.Stroke()
	dc.SetFontFace(faces.face(12))
	c := r.Center()
	dc.DrawStringAnchored(label, c.X, c.Y, 0.5, 0.5)
}

func stickerName(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return filepath.Base(source)
}

// hexColor accepts "#rgb" and "#rrggbb" style colours.
func hexColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return "", false
	}
	switch len(s) {
	case 4, 7, 9:
	default:
		return "", false
	}
	for _, r := range s[1:] {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return "", false
		}
	}
	return s, true
}

func decodeDataURI(uri string) (image.Image, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}
	var raw []byte
	if strings.HasSuffix(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
		raw = decoded
	} else {
		unescaped, err := url.PathUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
		raw = []byte(unescaped)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// faceCache holds one gomono face per point size.
type faceCache struct {
	font  *truetype.Font
	faces map[float64]font.Face
}

func newFaceCache() (*faceCache, error) {
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &faceCache{font: f, faces: make(map[float64]font.Face)}, nil
}

func (fc *faceCache) face(size float64) font.Face {
	size = math.Max(math.Round(size), 1)
	if f, ok := fc.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(fc.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	fc.faces[size] = f
	return f
}
