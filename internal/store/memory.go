package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"corkboard/internal/board"
)

// Memory is an in-process Backend. Boards are kept encoded so no caller
// ever shares memory with the stored copy.
type Memory struct {
	mu     sync.Mutex
	boards map[string][]byte
	meta   map[string]board.Summary
	public map[string]bool
	subs   map[string]map[*subscriber]struct{}
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		boards: make(map[string][]byte),
		meta:   make(map[string]board.Summary),
		public: make(map[string]bool),
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, b board.Board) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(b)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.boards[b.ID] = data
	m.meta[b.ID] = b.Summary()
	m.public[b.ID] = b.IsPublic
	subs := m.subscribersLocked(b.ID)
	m.mu.Unlock()

	for _, s := range subs {
		s.offer(data)
	}
	return nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id string) (board.Board, error) {
	if err := ctx.Err(); err != nil {
		return board.Board{}, err
	}
	m.mu.Lock()
	data, ok := m.boards[id]
	m.mu.Unlock()
	if !ok {
		return board.Board{}, ErrNotFound
	}
	return decode(data)
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, id string, fn Handler) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := newSubscriber(fn)

	m.mu.Lock()
	if m.subs[id] == nil {
		m.subs[id] = make(map[*subscriber]struct{})
	}
	m.subs[id][s] = struct{}{}
	s.offer(m.boards[id])
	m.mu.Unlock()

	go func() {
		s.run(ctx)
		m.mu.Lock()
		delete(m.subs[id], s)
		if len(m.subs[id]) == 0 {
			delete(m.subs, id)
		}
		m.mu.Unlock()
	}()
	return cancel, nil
}

// ListPublic implements Directory.
func (m *Memory) ListPublic(ctx context.Context, limit int) ([]board.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var out []board.Summary
	for id, pub := range m.public {
		if pub {
			out = append(out, m.meta[id])
		}
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b board.Summary) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n := listLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Delete implements Directory.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	_, existed := m.boards[id]
	delete(m.boards, id)
	delete(m.meta, id)
	delete(m.public, id)
	subs := m.subscribersLocked(id)
	m.mu.Unlock()

	if existed {
		for _, s := range subs {
			s.offer(nil)
		}
	}
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error { return nil }

func (m *Memory) subscribersLocked(id string) []*subscriber {
	out := make([]*subscriber, 0, len(m.subs[id]))
	for s := range m.subs[id] {
		out = append(out, s)
	}
	return out
}

// subscriber delivers snapshots in order on its own goroutine, keeping only
// the most recent undelivered one.
type subscriber struct {
	fn   Handler
	wake chan struct{}

	mu      sync.Mutex
	pending []byte
	has     bool
}

func newSubscriber(fn Handler) *subscriber {
	return &subscriber{fn: fn, wake: make(chan struct{}, 1)}
}

// offer queues data for delivery. A nil data means the board is absent.
func (s *subscriber) offer(data []byte) {
	s.mu.Lock()
	s.pending, s.has = data, true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		s.mu.Lock()
		data, has := s.pending, s.has
		s.pending, s.has = nil, false
		s.mu.Unlock()
		if !has || ctx.Err() != nil {
			continue
		}
		if data == nil {
			s.fn(nil)
			continue
		}
		b, err := decode(data)
		if err != nil {
			continue
		}
		s.fn(&b)
	}
}

var _ Backend = (*Memory)(nil)
