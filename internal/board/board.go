// Package board holds the shared canvas model: a Board and its ordered
// items. Boards are values; every mutation returns a new Board with a freshly
// allocated item slice and leaves the receiver untouched.
package board

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLimitReached is returned when an author already owns
	// MaxItemsPerUser items.
	ErrLimitReached = errors.New("item limit reached")

	// ErrForbidden is returned when the acting user is neither the item's
	// author nor the board's host.
	ErrForbidden = errors.New("not authorized")

	// ErrNotFound is returned for an unknown item id.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidContent is returned when content does not fit its item type.
	ErrInvalidContent = errors.New("invalid content")
)

// BackgroundSize mirrors the CSS background-size keywords.
type BackgroundSize string

const (
	BackgroundCover   BackgroundSize = "cover"
	BackgroundContain BackgroundSize = "contain"
	BackgroundAuto    BackgroundSize = "auto"
)

// Board is the shared canvas. Items are in paint order, last on top.
type Board struct {
	ID              string         `json:"id"`
	Topic           string         `json:"topic"`
	Host            string         `json:"host"`
	Items           []Item         `json:"items"`
	BackgroundImage string         `json:"backgroundImage,omitempty"`
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	BackgroundSize  BackgroundSize `json:"backgroundSize,omitempty"`
	MaxItemsPerUser int            `json:"maxItemsPerUser,omitempty"`
	IsPublic        bool           `json:"isPublic,omitempty"`
	CreatedAt       int64          `json:"createdAt"`
}

// Summary is the lightweight public listing entry for a board.
type Summary struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Host      string `json:"host"`
	CreatedAt int64  `json:"createdAt"`
}

// New creates an empty board hosted by host.
func New(topic, host string, now time.Time) Board {
	return Board{
		ID:             uuid.NewString(),
		Topic:          topic,
		Host:           host,
		Items:          []Item{},
		BackgroundSize: BackgroundCover,
		CreatedAt:      now.UnixMilli(),
	}
}

// Summary returns the listing entry for b.
func (b Board) Summary() Summary {
	return Summary{ID: b.ID, Topic: b.Topic, Host: b.Host, CreatedAt: b.CreatedAt}
}

// IsHost reports whether user created the board.
func (b Board) IsHost(user string) bool {
	return user != "" && user == b.Host
}

// CanEdit reports whether user may mutate it: its author or the host.
func (b Board) CanEdit(user string, it Item) bool {
	if user == "" {
		return false
	}
	return it.Author == user || b.IsHost(user)
}

// Find returns the item with id and its index in paint order.
func (b Board) Find(id string) (Item, int, bool) {
	for i, it := range b.Items {
		if it.ID == id {
			return it, i, true
		}
	}
	return Item{}, -1, false
}

// CountByAuthor returns how many items author owns on b.
func (b Board) CountByAuthor(author string) int {
	n := 0
	for _, it := range b.Items {
		if it.Author == author {
			n++
		}
	}
	return n
}

// WithItems returns a copy of b holding items.
func (b Board) WithItems(items []Item) Board {
	b.Items = items
	return b
}

// Clone returns a copy of b whose item slice is not shared.
func (b Board) Clone() Board {
	items := make([]Item, len(b.Items))
	copy(items, b.Items)
	b.Items = items
	return b
}

// ReplaceItems returns a copy of b where every item whose id is a key of
// repl is swapped for the mapped value. Unknown ids are ignored, so an item
// deleted remotely mid-gesture is not resurrected.
func (b Board) ReplaceItems(repl map[string]Item) Board {
	items := make([]Item, len(b.Items))
	for i, it := range b.Items {
		if r, ok := repl[it.ID]; ok {
			items[i] = r
			continue
		}
		items[i] = it
	}
	b.Items = items
	return b
}

// Settings is a partial update of the board's scalar fields.
type Settings struct {
	Topic           *string
	BackgroundImage *string
	BackgroundColor *string
	BackgroundSize  *BackgroundSize
	MaxItemsPerUser *int
	IsPublic        *bool
}
