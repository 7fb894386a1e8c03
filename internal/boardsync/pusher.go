package boardsync

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"corkboard/internal/board"
	"corkboard/internal/store"
)

// pusher writes committed boards on its own goroutine. Only the latest
// scheduled board is kept, so a burst of commits costs one write.
type pusher struct {
	store   store.Store
	cache   *store.FileCache
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger
	metrics *Metrics

	mu      sync.Mutex
	pending *board.Board
	busy    bool
	idle    chan struct{}

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPusher(s store.Store, cache *store.FileCache, limiter *rate.Limiter, timeout time.Duration, logger *log.Logger, metrics *Metrics) *pusher {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	p := &pusher{
		store:   s,
		cache:   cache,
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		idle:    idle,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// schedule queues b, replacing anything not yet written.
func (p *pusher) schedule(b board.Board) {
	p.mu.Lock()
	p.pending = &b
	if !p.busy {
		p.busy = true
		p.idle = make(chan struct{})
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// flush blocks until everything scheduled so far has been attempted.
func (p *pusher) flush(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return nil
	}
}

func (p *pusher) stop() {
	p.cancel()
	<-p.done
}

func (p *pusher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}
		for {
			p.mu.Lock()
			b := p.pending
			p.pending = nil
			if b == nil {
				// A wake token left by a schedule during write finds
				// the batch already closed.
				if p.busy {
					p.busy = false
					close(p.idle)
				}
				p.mu.Unlock()
				break
			}
			p.mu.Unlock()
			p.write(*b)
		}
	}
}

func (p *pusher) write(b board.Board) {
	if p.cache != nil {
		if err := p.cache.Put(p.ctx, b); err != nil {
			p.logger.Debug("cache write failed", "board", b.ID, "err", err)
		}
	}
	if p.store == nil {
		p.metrics.push(pushSkipped)
		return
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(p.ctx); err != nil {
			p.metrics.push(pushSkipped)
			return
		}
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	start := time.Now()
	err := p.store.Put(ctx, b)
	switch {
	case err == nil:
		p.metrics.push(pushOK)
		p.logger.Debug("pushed board", "board", b.ID, "items", len(b.Items), "took", time.Since(start).Round(time.Millisecond))
	case store.IsRetryable(err):
		p.metrics.push(pushRetryable)
		p.logger.Warn("push failed, will retry on next commit", "board", b.ID, "err", err)
	default:
		p.metrics.push(pushError)
		p.logger.Error("push failed", "board", b.ID, "err", err)
	}
}
