package store

import (
	"context"
	"testing"
)

func TestMemory(t *testing.T) {
	testBackend(t, func(t *testing.T) Backend { return NewMemory() })
}

func TestMemoryDoesNotAlias(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b := sampleBoard("alias", 1000, false)
	if err := m.Put(ctx, b); err != nil {
		t.Fatalf("put: %v", err)
	}
	b.Items[0].X = 999
	*b.Items[0].Width = 1

	got, err := m.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].X != 10 || *got.Items[0].Width != 250 {
		t.Fatalf("stored copy changed through caller: %+v", got.Items[0])
	}
}

func TestMemoryStopsDeliveringAfterCancel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b := sampleBoard("stop", 1000, false)

	rec := newRecorder()
	stop, err := m.Subscribe(ctx, b.ID, rec.handle)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	rec.next(t)
	stop()

	if err := m.Put(ctx, b); err != nil {
		t.Fatalf("put: %v", err)
	}
	select {
	case got := <-rec.ch:
		t.Fatalf("delivered after cancel: %+v", got)
	default:
	}
}
