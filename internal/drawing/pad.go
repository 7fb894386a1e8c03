// Package drawing captures freehand strokes and turns them into the SVG
// path content of a DRAWING item.
package drawing

import (
	"math"
	"strconv"
	"strings"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
	"corkboard/internal/interaction"
)

// Stroke is one continuous pointer trace.
type Stroke []geometry.Point

type ActionType int

const (
	ActionStroke ActionType = iota
	ActionClear
)

// Action is one undoable pad edit. Data holds what the action added and
// Inverse what it removed.
type Action struct {
	Type    ActionType
	Data    []Stroke
	Inverse []Stroke
}

// Pad is a drawing surface with an undo history. Its history is local and
// never synchronized.
type Pad struct {
	strokes   []Stroke
	current   Stroke
	drawing   bool
	undoStack []Action
	redoStack []Action
}

// Handle feeds a pointer event in pad coordinates.
func (p *Pad) Handle(ev interaction.Event) {
	switch ev.Kind {
	case interaction.PointerDown:
		p.Begin(ev.Pos)
	case interaction.PointerMove:
		p.Extend(ev.Pos)
	case interaction.PointerUp, interaction.PointerLeave:
		p.End()
	}
}

// Begin starts a stroke at pt.
func (p *Pad) Begin(pt geometry.Point) {
	p.drawing = true
	p.current = Stroke{pt}
}

// Extend adds pt to the stroke in progress.
func (p *Pad) Extend(pt geometry.Point) {
	if !p.drawing {
		return
	}
	p.current = append(p.current, pt)
}

// End finishes the stroke in progress and records it.
func (p *Pad) End() {
	if !p.drawing {
		return
	}
	p.drawing = false
	s := p.current
	p.current = nil
	p.strokes = append(p.strokes, s)
	p.record(Action{Type: ActionStroke, Data: []Stroke{s}})
}

// Clear wipes the pad. It can be undone.
func (p *Pad) Clear() {
	if len(p.strokes) == 0 {
		return
	}
	removed := p.strokes
	p.strokes = nil
	p.record(Action{Type: ActionClear, Inverse: removed})
}

func (p *Pad) record(a Action) {
	p.undoStack = append(p.undoStack, a)
	p.redoStack = nil
}

func (p *Pad) CanUndo() bool { return len(p.undoStack) > 0 }
func (p *Pad) CanRedo() bool { return len(p.redoStack) > 0 }

// Undo reverts the latest action.
func (p *Pad) Undo() bool {
	if len(p.undoStack) == 0 {
		return false
	}
	last := len(p.undoStack) - 1
	action := p.undoStack[last]
	p.undoStack = p.undoStack[:last]

	switch action.Type {
	case ActionStroke:
		p.strokes = p.strokes[:len(p.strokes)-len(action.Data)]
	case ActionClear:
		p.strokes = append([]Stroke(nil), action.Inverse...)
	}
	p.redoStack = append(p.redoStack, action)
	return true
}

// Redo reapplies the latest undone action.
func (p *Pad) Redo() bool {
	if len(p.redoStack) == 0 {
		return false
	}
	last := len(p.redoStack) - 1
	action := p.redoStack[last]
	p.redoStack = p.redoStack[:last]

	switch action.Type {
	case ActionStroke:
		p.strokes = append(p.strokes, action.Data...)
	case ActionClear:
		p.strokes = nil
	}
	p.undoStack = append(p.undoStack, action)
	return true
}

// Strokes returns the finished strokes, the one in progress last.
func (p *Pad) Strokes() []Stroke {
	out := append([]Stroke(nil), p.strokes...)
	if p.drawing {
		out = append(out, p.current)
	}
	return out
}

// Empty reports whether there is nothing to add.
func (p *Pad) Empty() bool { return len(p.strokes) == 0 }

// Bounds is the box around every finished stroke. Width and height are at
// least board.MinDrawingSize.
func (p *Pad) Bounds() geometry.Rect {
	if p.Empty() {
		return geometry.Rect{Width: board.MinDrawingSize, Height: board.MinDrawingSize}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range p.strokes {
		for _, pt := range s {
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
	}
	return geometry.Rect{
		X:      minX,
		Y:      minY,
		Width:  math.Max(board.MinDrawingSize, maxX-minX),
		Height: math.Max(board.MinDrawingSize, maxY-minY),
	}
}

// Content renders the strokes as an SVG path relative to Bounds' origin.
func (p *Pad) Content() string {
	origin := p.Bounds()
	var sb strings.Builder
	for _, s := range p.strokes {
		for i, pt := range s {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			if i == 0 {
				sb.WriteByte('M')
			} else {
				sb.WriteByte('L')
			}
			sb.WriteString(num(pt.X - origin.X))
			sb.WriteByte(' ')
			sb.WriteString(num(pt.Y - origin.Y))
		}
		if len(s) == 1 {
			sb.WriteString(" L" + num(s[0].X-origin.X) + " " + num(s[0].Y-origin.Y))
		}
	}
	return sb.String()
}

// Draft turns the pad into a DRAWING item draft centred on (x, y).
func (p *Pad) Draft(x, y float64, color string) (board.Draft, error) {
	payload, err := board.NewPayload(board.TypeDrawing, p.Content())
	if err != nil {
		return board.Draft{}, err
	}
	r := p.Bounds()
	return board.Draft{
		Payload:   payload,
		X:         x,
		Y:         y,
		Width:     board.Float(r.Width),
		Height:    board.Float(r.Height),
		TextColor: color,
	}, nil
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// ParsePath reads the strokes back out of DRAWING content. Commands other
// than M and L end the current stroke and are otherwise ignored.
func ParsePath(d string) []Stroke {
	var strokes []Stroke
	var cur Stroke
	fields := strings.Fields(d)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		cmd := f[0]
		if cmd != 'M' && cmd != 'L' {
			if len(cur) > 0 {
				strokes = append(strokes, cur)
				cur = nil
			}
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		x, errX := strconv.ParseFloat(f[1:], 64)
		y, errY := strconv.ParseFloat(fields[i+1], 64)
		i++
		if errX != nil || errY != nil {
			continue
		}
		if cmd == 'M' && len(cur) > 0 {
			strokes = append(strokes, cur)
			cur = nil
		}
		cur = append(cur, geometry.Point{X: x, Y: y})
	}
	if len(cur) > 0 {
		strokes = append(strokes, cur)
	}
	return strokes
}

// PathExtent is the largest x and y reached by strokes, at least
// board.MinDrawingSize each.
func PathExtent(strokes []Stroke) (w, h float64) {
	w, h = board.MinDrawingSize, board.MinDrawingSize
	for _, s := range strokes {
		for _, pt := range s {
			w, h = math.Max(w, pt.X), math.Max(h, pt.Y)
		}
	}
	return w, h
}
