package main

import (
	"math"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rivo/uniseg"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/drawing"
	"corkboard/internal/geometry"
	"corkboard/internal/interaction"
)

const (
	activeColor = "#f97316"
	groupColor  = "#3b82f6"
	bandColor   = "#6b7280"
)

// viewport maps terminal cells to board pixels. Pan is counted in cells.
type viewport struct {
	width  int
	height int
	panX   int
	panY   int
}

// toBoard returns the board point at the centre of cell (cx, cy).
func (v viewport) toBoard(cx, cy int) geometry.Point {
	return geometry.Point{
		X: float64(cx+v.panX)*cellWidth + cellWidth/2,
		Y: float64(cy+v.panY)*cellHeight + cellHeight/2,
	}
}

func (v viewport) toCell(p geometry.Point) (int, int) {
	return int(math.Floor(p.X/cellWidth)) - v.panX, int(math.Floor(p.Y/cellHeight)) - v.panY
}

// center is the board point in the middle of the screen.
func (v viewport) center() geometry.Point {
	return v.toBoard(v.width/2, v.height/2)
}

type cellBox struct {
	X, Y          int
	Width, Height int
}

// cellBox covers r on screen, never smaller than minBoxCells each way.
func (v viewport) cellBox(r geometry.Rect) cellBox {
	x0, y0 := v.toCell(geometry.Point{X: r.X, Y: r.Y})
	x1 := int(math.Ceil(r.Right()/cellWidth)) - v.panX
	y1 := int(math.Ceil(r.Bottom()/cellHeight)) - v.panY
	return cellBox{
		X:      x0,
		Y:      y0,
		Width:  max(x1-x0, minBoxCells),
		Height: max(y1-y0, minBoxCells),
	}
}

func (b cellBox) contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

func (b cellBox) resizeHandle() (int, int) { return b.X + b.Width - 1, b.Y + b.Height - 1 }
func (b cellBox) rotateHandle() (int, int) { return b.X + b.Width/2, b.Y - 1 }

// hitTest names what sits under cell (cx, cy). Handles win over items and
// the group box wins over the items inside it.
func hitTest(view boardsync.View, vp viewport, cx, cy int) interaction.Target {
	s := view.Session
	if s.GroupMode {
		if view.HasGroup {
			g := vp.cellBox(view.Group)
			if hx, hy := g.resizeHandle(); cx == hx && cy == hy {
				return interaction.Target{Kind: interaction.TargetGroupResizeHandle}
			}
			if g.contains(cx, cy) {
				return interaction.Target{Kind: interaction.TargetGroup}
			}
		}
	} else if it, _, ok := view.Board.Find(s.Active); ok && s.Active != "" {
		b := vp.cellBox(geometry.ItemBounds(it))
		if hx, hy := b.resizeHandle(); cx == hx && cy == hy {
			return interaction.Target{Kind: interaction.TargetResizeHandle, ItemID: it.ID}
		}
		if hx, hy := b.rotateHandle(); cx == hx && cy == hy {
			return interaction.Target{Kind: interaction.TargetRotateHandle, ItemID: it.ID}
		}
	}

	items := view.Board.Items
	for i := len(items) - 1; i >= 0; i-- {
		if vp.cellBox(geometry.ItemBounds(items[i])).contains(cx, cy) {
			return interaction.Target{Kind: interaction.TargetItem, ItemID: items[i].ID}
		}
	}
	return interaction.Target{Kind: interaction.TargetCanvas}
}

// grid is a screen of grapheme clusters. A wide cluster is followed by an
// empty continuation cell.
type grid struct {
	cells  [][]string
	colors [][]string
}

func newGrid(width, height int) *grid {
	width, height = max(width, 1), max(height, 1)
	g := &grid{
		cells:  make([][]string, height),
		colors: make([][]string, height),
	}
	for y := range g.cells {
		g.cells[y] = make([]string, width)
		g.colors[y] = make([]string, width)
		for x := range g.cells[y] {
			g.cells[y][x] = " "
		}
	}
	return g
}

func (g *grid) valid(x, y int) bool {
	return y >= 0 && y < len(g.cells) && x >= 0 && x < len(g.cells[y])
}

// set writes cluster s at (x, y) and reports how many cells it used.
func (g *grid) set(x, y int, s, color string) int {
	w := max(uniseg.StringWidth(s), 1)
	if !g.valid(x, y) || !g.valid(x+w-1, y) {
		return w
	}
	row := g.cells[y]
	if row[x] == "" && x > 0 {
		row[x-1] = " "
	}
	if end := x + w; end < len(row) && row[end] == "" {
		row[end] = " "
	}
	row[x] = s
	g.colors[y][x] = color
	for i := 1; i < w; i++ {
		row[x+i] = ""
	}
	return w
}

// text writes s from (x, y) without passing limit cells.
func (g *grid) text(x, y int, s string, limit int, color string) {
	used := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		cluster := gr.Str()
		w := max(gr.Width(), 1)
		if cluster == "\t" {
			cluster, w = " ", 1
		}
		if used+w > limit {
			return
		}
		g.set(x+used, y, cluster, color)
		used += w
	}
}

func (g *grid) outline(b cellBox, corner, horizontal, vertical, color string) {
	for x := b.X; x < b.X+b.Width; x++ {
		for _, y := range []int{b.Y, b.Y + b.Height - 1} {
			ch := horizontal
			if x == b.X || x == b.X+b.Width-1 {
				ch = corner
			}
			g.set(x, y, ch, color)
		}
	}
	for y := b.Y + 1; y < b.Y+b.Height-1; y++ {
		g.set(b.X, y, vertical, color)
		g.set(b.X+b.Width-1, y, vertical, color)
	}
}

func (g *grid) fill(b cellBox) {
	for y := b.Y + 1; y < b.Y+b.Height-1; y++ {
		for x := b.X + 1; x < b.X+b.Width-1; x++ {
			g.set(x, y, " ", "")
		}
	}
}

// lines renders every row, styling each run of equally coloured cells.
func (g *grid) lines() []string {
	out := make([]string, len(g.cells))
	for y, row := range g.cells {
		var sb, run strings.Builder
		current := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if current == "" {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(current)).Render(run.String()))
			}
			run.Reset()
		}
		for x, cell := range row {
			if cell == "" {
				continue
			}
			if c := g.colors[y][x]; c != current {
				flush()
				current = c
			}
			run.WriteString(cell)
		}
		flush()
		out[y] = sb.String()
	}
	return out
}

// renderBoard draws the board as the user sees it.
func renderBoard(view boardsync.View, vp viewport, pad *drawing.Pad) []string {
	return buildGrid(view, vp, pad).lines()
}

// buildGrid lays out items in paint order, then handles, the group box and
// the rubber band. A non-nil pad is drawn on top.
func buildGrid(view boardsync.View, vp viewport, pad *drawing.Pad) *grid {
	g := newGrid(vp.width, vp.height)
	s := view.Session

	for _, it := range view.Board.Items {
		highlighted := s.IsSelected(it.ID) || (!s.GroupMode && it.ID == s.Active)
		drawItem(g, vp, it, highlighted)
	}

	if !s.GroupMode {
		if it, _, ok := view.Board.Find(s.Active); ok && s.Active != "" {
			b := vp.cellBox(geometry.ItemBounds(it))
			x, y := b.resizeHandle()
			g.set(x, y, "◢", activeColor)
			x, y = b.rotateHandle()
			g.set(x, y, "↻", activeColor)
		}
	}
	if view.HasGroup {
		b := vp.cellBox(view.Group)
		g.outline(b, "+", "·", "·", groupColor)
		x, y := b.resizeHandle()
		g.set(x, y, "◢", groupColor)
	}
	if s.State == interaction.SelectingRubberBand && !s.Band.Empty() {
		g.outline(vp.cellBox(s.Band), ":", ":", ":", bandColor)
	}

	if pad != nil {
		for _, stroke := range pad.Strokes() {
			plotStroke(g, vp, stroke, "*", drawingColor)
		}
	}
	return g
}

// plainLines renders every row without styling, right-trimmed.
func (g *grid) plainLines() []string {
	out := make([]string, len(g.cells))
	for y, row := range g.cells {
		out[y] = strings.TrimRight(strings.Join(row, ""), " ")
	}
	return out
}

// fullViewport frames every item of b with a margin of one cell.
func fullViewport(b board.Board) viewport {
	r, ok := geometry.BoundingBoxOf(b.Items)
	if !ok {
		return viewport{width: 1, height: 1}
	}
	x0 := int(math.Floor(r.X/cellWidth)) - 1
	y0 := int(math.Floor(r.Y/cellHeight)) - 1
	x1 := int(math.Ceil(r.Right()/cellWidth)) + 1
	y1 := int(math.Ceil(r.Bottom()/cellHeight)) + 1
	return viewport{width: x1 - x0, height: y1 - y0, panX: x0, panY: y0}
}

func drawItem(g *grid, vp viewport, it board.Item, highlighted bool) {
	b := vp.cellBox(geometry.ItemBounds(it))
	color := itemColor(it)
	corner, horizontal, vertical := "+", "-", "|"
	if highlighted {
		corner, horizontal, vertical = "#", "#", "#"
		color = activeColor
	}
	g.fill(b)
	g.outline(b, corner, horizontal, vertical, color)

	if d, ok := it.Payload.(board.Drawing); ok {
		textColor := it.TextColor
		if textColor == "" {
			textColor = drawingColor
		}
		for _, stroke := range drawingStrokes(it, d) {
			plotStroke(g, vp, stroke, "•", textColor)
		}
		return
	}

	inner := b.Width - 2
	for i, line := range itemLines(it) {
		y := b.Y + 1 + i
		if y >= b.Y+b.Height-1 {
			break
		}
		g.text(b.X+1, y, line, inner, it.TextColor)
	}
}

func itemColor(it board.Item) string {
	if it.Color == "" || it.Color == board.Transparent {
		return ""
	}
	return it.Color
}

// itemLines is the text shown inside an item's box.
func itemLines(it board.Item) []string {
	switch p := it.Payload.(type) {
	case board.Text:
		return strings.Split(p.Body, "\n")
	case board.Emoji:
		return []string{p.Glyph}
	case board.Image:
		return []string{"[" + imageKind(p.DataURI) + "]"}
	case board.Sticker:
		return []string{"[sticker]", path.Base(p.Source)}
	}
	return nil
}

// imageKind is the media type of a data URI, or "image" for anything else.
func imageKind(uri string) string {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "image"
	}
	kind, _, _ := strings.Cut(rest, ";")
	kind, _, _ = strings.Cut(kind, ",")
	if kind == "" {
		return "image"
	}
	return kind
}

// drawingStrokes places a drawing's path on the board, stretched to the
// item's current size.
func drawingStrokes(it board.Item, d board.Drawing) []drawing.Stroke {
	strokes := drawing.ParsePath(d.Path)
	extW, extH := drawing.PathExtent(strokes)
	r := geometry.ItemBounds(it)
	sx, sy := r.Width/extW, r.Height/extH
	out := make([]drawing.Stroke, len(strokes))
	for i, s := range strokes {
		placed := make(drawing.Stroke, len(s))
		for j, pt := range s {
			placed[j] = geometry.Point{X: r.X + pt.X*sx, Y: r.Y + pt.Y*sy}
		}
		out[i] = placed
	}
	return out
}

// plotStroke marks every cell the polyline passes through.
func plotStroke(g *grid, vp viewport, s drawing.Stroke, glyph, color string) {
	for i, pt := range s {
		x1, y1 := vp.toCell(pt)
		if i == 0 {
			g.set(x1, y1, glyph, color)
			continue
		}
		x0, y0 := vp.toCell(s[i-1])
		steps := max(abs(x1-x0), abs(y1-y0))
		for k := 1; k <= steps; k++ {
			x := x0 + int(math.Round(float64((x1-x0)*k)/float64(steps)))
			y := y0 + int(math.Round(float64((y1-y0)*k)/float64(steps)))
			g.set(x, y, glyph, color)
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
