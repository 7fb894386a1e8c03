// Package store persists whole boards and streams their snapshots.
//
// A board is stored as one opaque JSON document keyed by its id. Writers
// replace the whole document; readers subscribe and receive every new
// snapshot (possibly coalesced to the latest). There is no server-side
// merge, so concurrent writers resolve as last-write-wins.
//
// Implementations:
//   - Memory: in-process, for tests and offline use
//   - Redis: SET + PUBLISH, with a sorted-set public index
//   - Mongo: one document per board, change streams for subscriptions
//
// FileCache is a separate local cache of visited boards.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"corkboard/internal/board"
)

// DefaultListLimit caps ListPublic when the caller passes no limit.
const DefaultListLimit = 50

// Handler receives board snapshots. A nil board means the board does not
// exist (never created, or deleted). Handlers are called from a store
// goroutine, one at a time per subscription.
type Handler func(b *board.Board)

// Store reads, writes and watches single boards.
type Store interface {
	// Put replaces the stored board with b.
	Put(ctx context.Context, b board.Board) error

	// Get returns the stored board or ErrNotFound.
	Get(ctx context.Context, id string) (board.Board, error)

	// Subscribe delivers the current snapshot of board id to fn, then every
	// later one, until the returned cancel func is called or ctx ends.
	// Snapshots delivered after cancel returns must be tolerated.
	Subscribe(ctx context.Context, id string, fn Handler) (cancel func(), err error)
}

// Directory lists and removes boards.
type Directory interface {
	// ListPublic returns at most limit public boards, newest first.
	ListPublic(ctx context.Context, limit int) ([]board.Summary, error)

	// Delete removes the board and its listing entry. Subscribers see an
	// absent board. Deleting a missing board is not an error.
	Delete(ctx context.Context, id string) error
}

// Backend is a full remote store.
type Backend interface {
	Store
	Directory
	Close() error
}

func encode(b board.Board) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode board %s: %w", b.ID, err)
	}
	return data, nil
}

func decode(data []byte) (board.Board, error) {
	var b board.Board
	if err := json.Unmarshal(data, &b); err != nil {
		return board.Board{}, fmt.Errorf("decode board: %w", err)
	}
	if b.Items == nil {
		b.Items = []board.Item{}
	}
	return b, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
