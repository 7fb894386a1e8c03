package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"corkboard/internal/board"
)

const waitFor = 2 * time.Second

func sampleBoard(topic string, created int64, public bool) board.Board {
	b := board.New(topic, "host", time.UnixMilli(created))
	b.IsPublic = public
	b.Items = []board.Item{{
		ID:      "i1",
		Payload: board.Text{Body: "hello"},
		X:       10,
		Y:       20,
		Width:   board.Float(250),
		Author:  "host",
	}}
	return b
}

// recorder collects snapshots delivered to a Handler.
type recorder struct {
	ch chan *board.Board
}

func newRecorder() *recorder { return &recorder{ch: make(chan *board.Board, 64)} }

func (r *recorder) handle(b *board.Board) { r.ch <- b }

func (r *recorder) next(t *testing.T) *board.Board {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(waitFor):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

// until skips snapshots until one satisfies ok.
func (r *recorder) until(t *testing.T, ok func(*board.Board) bool) *board.Board {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case b := <-r.ch:
			if ok(b) {
				return b
			}
		case <-deadline:
			t.Fatal("expected snapshot never arrived")
			return nil
		}
	}
}

// testBackend runs the behaviour every Backend must share.
func testBackend(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("get missing", func(t *testing.T) {
		s := newBackend(t)
		if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		b := sampleBoard("round trip", 1000, false)
		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := s.Get(ctx, b.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Topic != b.Topic || len(got.Items) != 1 || got.Items[0].Content() != "hello" {
			t.Fatalf("unexpected board %+v", got)
		}
		if got.Items[0].Height != nil || *got.Items[0].Width != 250 {
			t.Fatalf("sizes not preserved: %+v", got.Items[0])
		}
	})

	t.Run("subscribe", func(t *testing.T) {
		s := newBackend(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := sampleBoard("watched", 1000, false)
		rec := newRecorder()
		stop, err := s.Subscribe(ctx, b.ID, rec.handle)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer stop()
		if first := rec.next(t); first != nil {
			t.Fatalf("initial snapshot of a missing board = %+v, want nil", first)
		}

		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("put: %v", err)
		}
		if got := rec.next(t); got == nil || got.ID != b.ID {
			t.Fatalf("snapshot after put = %+v", got)
		}

		b.Topic = "renamed"
		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("put: %v", err)
		}
		rec.until(t, func(got *board.Board) bool { return got != nil && got.Topic == "renamed" })

		if err := s.Delete(ctx, b.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		rec.until(t, func(got *board.Board) bool { return got == nil })
	})

	t.Run("subscribe existing", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		b := sampleBoard("existing", 1000, false)
		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("put: %v", err)
		}
		rec := newRecorder()
		stop, err := s.Subscribe(ctx, b.ID, rec.handle)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer stop()
		if got := rec.next(t); got == nil || got.Topic != "existing" {
			t.Fatalf("initial snapshot = %+v", got)
		}
	})

	t.Run("public listing", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		older := sampleBoard("older", 1000, true)
		newer := sampleBoard("newer", 2000, true)
		private := sampleBoard("private", 3000, false)
		for _, b := range []board.Board{older, newer, private} {
			if err := s.Put(ctx, b); err != nil {
				t.Fatalf("put: %v", err)
			}
		}

		got, err := s.ListPublic(ctx, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 || got[0].Topic != "newer" || got[1].Topic != "older" {
			t.Fatalf("listing = %+v", got)
		}

		got, _ = s.ListPublic(ctx, 1)
		if len(got) != 1 || got[0].ID != newer.ID {
			t.Fatalf("limited listing = %+v", got)
		}

		newer.IsPublic = false
		if err := s.Put(ctx, newer); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Delete(ctx, older.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		got, _ = s.ListPublic(ctx, 0)
		if len(got) != 0 {
			t.Fatalf("listing after unpublish and delete = %+v", got)
		}
	})

	t.Run("delete missing", func(t *testing.T) {
		s := newBackend(t)
		if err := s.Delete(context.Background(), "nope"); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})
}

func TestRetryable(t *testing.T) {
	base := errors.New("boom")
	if IsRetryable(base) {
		t.Fatal("plain error reported retryable")
	}
	err := unavailable("put", base)
	if !IsRetryable(err) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("unavailable(...) = %v", err)
	}
	if Retryable(nil) != nil {
		t.Fatal("Retryable(nil) != nil")
	}
}
