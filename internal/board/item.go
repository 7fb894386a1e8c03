package board

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

// ItemType tags what an item's payload means.
type ItemType string

const (
	TypeText    ItemType = "TEXT"
	TypeImage   ItemType = "IMAGE"
	TypeSticker ItemType = "STICKER"
	TypeEmoji   ItemType = "EMOJI"
	TypeDrawing ItemType = "DRAWING"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeSticker, TypeEmoji, TypeDrawing:
		return true
	}
	return false
}

const (
	MinSize         = 50.0
	MinDrawingSize  = 1.0
	DefaultExtent   = 50.0
	DefaultFontSize = 20.0
	MinFontSize     = 10.0
	MaxFontSize     = 200.0

	// Transparent is the colour sentinel for "no background fill".
	Transparent = "transparent"
)

// Payload is the type-specific part of an item.
type Payload interface {
	Type() ItemType
	Content() string
}

// Text is a note; its height follows the content unless set explicitly.
type Text struct{ Body string }

// Image holds picture bytes encoded as a data URI.
type Image struct{ DataURI string }

// Sticker is a generated image, also carried as a data URI or URL.
type Sticker struct{ Source string }

// Emoji is a single grapheme cluster.
type Emoji struct{ Glyph string }

// Drawing is an SVG path description of a freehand drawing.
type Drawing struct{ Path string }

func (Text) Type() ItemType    { return TypeText }
func (Image) Type() ItemType   { return TypeImage }
func (Sticker) Type() ItemType { return TypeSticker }
func (Emoji) Type() ItemType   { return TypeEmoji }
func (Drawing) Type() ItemType { return TypeDrawing }

func (p Text) Content() string    { return p.Body }
func (p Image) Content() string   { return p.DataURI }
func (p Sticker) Content() string { return p.Source }
func (p Emoji) Content() string   { return p.Glyph }
func (p Drawing) Content() string { return p.Path }

// NewPayload builds the payload for t from its wire content.
func NewPayload(t ItemType, content string) (Payload, error) {
	switch t {
	case TypeText:
		return Text{Body: content}, nil
	case TypeImage:
		if !strings.HasPrefix(content, "data:") {
			return nil, fmt.Errorf("%w: image content is not a data URI", ErrInvalidContent)
		}
		return Image{DataURI: content}, nil
	case TypeSticker:
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("%w: empty sticker", ErrInvalidContent)
		}
		return Sticker{Source: content}, nil
	case TypeEmoji:
		if uniseg.GraphemeClusterCount(content) != 1 {
			return nil, fmt.Errorf("%w: emoji must be a single grapheme, got %q", ErrInvalidContent, content)
		}
		return Emoji{Glyph: content}, nil
	case TypeDrawing:
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("%w: empty drawing path", ErrInvalidContent)
		}
		return Drawing{Path: content}, nil
	}
	return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidContent, t)
}

// Item is one placed object on a board.
//
// Width, Height and FontSize are optional. The pointed-to values are never
// written through: a change always installs a fresh pointer, so copies of an
// Item can share them safely.
type Item struct {
	ID        string
	Payload   Payload
	X         float64
	Y         float64
	Width     *float64
	Height    *float64
	Rotation  float64
	FontSize  *float64
	Author    string
	Color     string
	TextColor string
	CreatedAt int64
}

// Type returns the payload's type tag.
func (it Item) Type() ItemType {
	if it.Payload == nil {
		return ""
	}
	return it.Payload.Type()
}

// Content returns the payload's wire content.
func (it Item) Content() string {
	if it.Payload == nil {
		return ""
	}
	return it.Payload.Content()
}

// WidthOr returns the item's width, or def when it has none.
func (it Item) WidthOr(def float64) float64 {
	if it.Width == nil {
		return def
	}
	return *it.Width
}

// HeightOr returns the item's height, or def when it has none.
func (it Item) HeightOr(def float64) float64 {
	if it.Height == nil {
		return def
	}
	return *it.Height
}

// FontSizeOrDefault returns the font size used to render a TEXT item.
func (it Item) FontSizeOrDefault() float64 {
	if it.FontSize == nil {
		return DefaultFontSize
	}
	return *it.FontSize
}

// MinSizeFor is the smallest width or height an item of type t may have.
func MinSizeFor(t ItemType) float64 {
	if t == TypeDrawing {
		return MinDrawingSize
	}
	return MinSize
}

// ResizeDefaults is the box a resize gesture starts from when the item has
// no explicit size. TEXT has no default height.
func ResizeDefaults(t ItemType) (width float64, height *float64) {
	switch t {
	case TypeText:
		return 250, nil
	case TypeEmoji:
		return 100, Float(100)
	}
	return 200, Float(200)
}

// ClampFontSize keeps v inside [MinFontSize, MaxFontSize].
func ClampFontSize(v float64) float64 {
	return math.Max(MinFontSize, math.Min(MaxFontSize, v))
}

// NudgeFontSize returns a copy of it with the font size moved by delta.
func (it Item) NudgeFontSize(delta float64) Item {
	it.FontSize = Float(ClampFontSize(it.FontSizeOrDefault() + delta))
	return it
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Jitter supplies the randomness for new item placement. *rand.Rand
// satisfies it.
type Jitter interface {
	Float64() float64
}

// Draft describes an item about to be added. X and Y are the centre the
// item should land around.
type Draft struct {
	Payload   Payload
	X         float64
	Y         float64
	Width     *float64
	Height    *float64
	Color     string
	TextColor string
}

// NewItem builds a fresh item for author from d. With a non-nil jitter the
// position is scattered up to ±75 around the requested centre and the item
// gets a tilt in [-5, 5) degrees.
func NewItem(author string, d Draft, now time.Time, jitter Jitter) Item {
	t := d.Payload.Type()
	w, h := 200.0, Float(200)
	switch t {
	case TypeText:
		w, h = 250, nil
	case TypeEmoji:
		w, h = 100, Float(100)
	}
	if d.Width != nil {
		w = *d.Width
	}
	if d.Height != nil {
		h = Float(*d.Height)
	}
	floor := MinSizeFor(t)
	w = math.Max(floor, w)
	halfH := w / 2
	if h != nil {
		h = Float(math.Max(floor, *h))
		halfH = *h / 2
	}

	var dx, dy, tilt float64
	if jitter != nil {
		dx = (jitter.Float64() - 0.5) * 150
		dy = (jitter.Float64() - 0.5) * 150
		tilt = (jitter.Float64() - 0.5) * 10
	}

	it := Item{
		ID:        uuid.NewString(),
		Payload:   d.Payload,
		X:         d.X + dx - w/2,
		Y:         d.Y + dy - halfH,
		Width:     Float(w),
		Height:    h,
		Rotation:  tilt,
		Author:    author,
		Color:     d.Color,
		TextColor: d.TextColor,
		CreatedAt: now.UnixMilli(),
	}
	if t == TypeText {
		it.FontSize = Float(DefaultFontSize)
	}
	return it
}

// Patch is a partial update of an item. Nil fields are left alone.
type Patch struct {
	X         *float64
	Y         *float64
	Width     *float64
	Height    *float64
	Rotation  *float64
	FontSize  *float64
	Color     *string
	TextColor *string
	Content   *string
}

// Apply returns it with p applied and the size and font invariants enforced.
func (p Patch) Apply(it Item) (Item, error) {
	if p.Content != nil {
		payload, err := NewPayload(it.Type(), *p.Content)
		if err != nil {
			return it, err
		}
		it.Payload = payload
	}
	floor := MinSizeFor(it.Type())
	if p.X != nil {
		it.X = *p.X
	}
	if p.Y != nil {
		it.Y = *p.Y
	}
	if p.Width != nil {
		it.Width = Float(math.Max(floor, *p.Width))
	}
	if p.Height != nil {
		it.Height = Float(math.Max(floor, *p.Height))
	}
	if p.Rotation != nil {
		it.Rotation = *p.Rotation
	}
	if p.FontSize != nil && it.Type() == TypeText {
		it.FontSize = Float(ClampFontSize(*p.FontSize))
	}
	if p.Color != nil {
		it.Color = *p.Color
	}
	if p.TextColor != nil {
		it.TextColor = *p.TextColor
	}
	return it, nil
}

type itemJSON struct {
	ID        string   `json:"id"`
	Type      ItemType `json:"type"`
	Content   string   `json:"content"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Rotation  float64  `json:"rotation"`
	FontSize  *float64 `json:"fontSize,omitempty"`
	Author    string   `json:"author"`
	Color     string   `json:"color,omitempty"`
	TextColor string   `json:"textColor,omitempty"`
	CreatedAt int64    `json:"createdAt"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		ID:        it.ID,
		Type:      it.Type(),
		Content:   it.Content(),
		X:         it.X,
		Y:         it.Y,
		Width:     it.Width,
		Height:    it.Height,
		Rotation:  it.Rotation,
		FontSize:  it.FontSize,
		Author:    it.Author,
		Color:     it.Color,
		TextColor: it.TextColor,
		CreatedAt: it.CreatedAt,
	})
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := NewPayload(raw.Type, raw.Content)
	if err != nil {
		return fmt.Errorf("item %s: %w", raw.ID, err)
	}
	*it = Item{
		ID:        raw.ID,
		Payload:   payload,
		X:         raw.X,
		Y:         raw.Y,
		Width:     raw.Width,
		Height:    raw.Height,
		Rotation:  raw.Rotation,
		FontSize:  raw.FontSize,
		Author:    raw.Author,
		Color:     raw.Color,
		TextColor: raw.TextColor,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}
