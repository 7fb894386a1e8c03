// Package boardsync keeps a local board in step with its remote document.
//
// The Controller holds two tiers of state: the last snapshot received from
// the store (committedRemote) and the optimistic local board every edit is
// applied to immediately. Intermediate pointer moves only touch the local
// board; finished gestures and direct edits are pushed whole. Incoming
// snapshots replace the local board unless a gesture is in progress, in
// which case they are held and dropped again by the gesture's own commit.
package boardsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"corkboard/internal/board"
	"corkboard/internal/geometry"
	"corkboard/internal/interaction"
	"corkboard/internal/store"
)

// DefaultPushTimeout bounds a single remote write.
const DefaultPushTimeout = 10 * time.Second

// Options configures a Controller. Every field is optional.
type Options struct {
	// Store is the remote document store. Nil runs the controller offline:
	// every edit still applies locally and pushes are skipped.
	Store store.Store

	// Cache receives every committed and every applied board.
	Cache *store.FileCache

	Logger  *log.Logger
	Metrics *Metrics

	// PushesPerSecond throttles remote writes; zero means unthrottled.
	PushesPerSecond float64
	PushBurst       int
	PushTimeout     time.Duration

	// OnChange is called, without locks held, after anything visible
	// changed.
	OnChange func()

	Now    func() time.Time
	Jitter board.Jitter
}

// Style carries the optional placement and colours of a new item.
type Style struct {
	// X and Y are the centre the item lands around.
	X, Y      float64
	Width     *float64
	Height    *float64
	Color     string
	TextColor string
}

// View is a consistent copy of everything the presentation layer renders.
type View struct {
	Board   board.Board
	Session interaction.Session

	// Group is the selection's padded bounding box when HasGroup is set.
	Group    geometry.Rect
	HasGroup bool

	// Missing is set when the store reported the open board absent.
	Missing bool
	// FromCache is set when the board was loaded from the local cache and
	// no remote snapshot has arrived since.
	FromCache bool
	Offline   bool
}

// Controller owns one open board, its interaction session and its
// synchronization. It is safe for concurrent use; every entry point runs
// under one mutex.
type Controller struct {
	mu sync.Mutex

	user    string
	machine interaction.Machine
	session interaction.Session

	local     board.Board
	committed *board.Board
	held      *board.Board
	open      bool
	missing   bool
	fromCache bool
	// creating is set from Create until the first remote snapshot, while
	// the store may not have the board yet.
	creating bool

	gen         uint64
	unsubscribe func()

	store    store.Store
	cache    *store.FileCache
	pusher   *pusher
	logger   *log.Logger
	metrics  *Metrics
	onChange func()
	now      func() time.Time
	jitter   board.Jitter
}

type randJitter struct{}

func (randJitter) Float64() float64 { return rand.Float64() }

// New creates a Controller acting as user.
func New(user string, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := opts.PushTimeout
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	var limiter *rate.Limiter
	if opts.PushesPerSecond > 0 {
		burst := max(opts.PushBurst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.PushesPerSecond), burst)
	}
	c := &Controller{
		user:     user,
		machine:  interaction.Machine{User: user},
		store:    opts.Store,
		cache:    opts.Cache,
		logger:   logger,
		metrics:  opts.Metrics,
		onChange: opts.OnChange,
		now:      opts.Now,
		jitter:   opts.Jitter,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.jitter == nil {
		c.jitter = randJitter{}
	}
	c.pusher = newPusher(opts.Store, opts.Cache, limiter, timeout, logger, opts.Metrics)
	return c
}

// User returns the acting user's name.
func (c *Controller) User() string { return c.user }

// Offline reports whether the controller runs without a remote store.
func (c *Controller) Offline() bool { return c.store == nil }

// Create starts a new board hosted by the acting user, schedules its first
// push and opens it.
func (c *Controller) Create(ctx context.Context, topic string) (board.Board, error) {
	b := board.New(topic, c.user, c.now())
	c.mu.Lock()
	gen := c.resetLocked(b)
	c.creating = true
	c.pusher.schedule(b)
	c.mu.Unlock()

	c.metrics.mutation("create")
	c.logger.Info("created board", "board", b.ID, "topic", topic)
	c.subscribe(ctx, gen, b.ID)
	c.notify()
	return b, nil
}

// Open loads board id and subscribes to its snapshots. When the store is
// unreachable or reports the board absent, the cached copy is used.
func (c *Controller) Open(ctx context.Context, id string) error {
	b, found := board.Board{}, false
	if c.store != nil {
		var err error
		b, err = c.store.Get(ctx, id)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, store.ErrNotFound):
			c.logger.Debug("board not in store", "board", id)
		default:
			c.logger.Warn("store unavailable, trying cache", "board", id, "err", err)
		}
	}

	fromCache := false
	if !found && c.cache != nil {
		cached, saved, ok, err := c.cache.Get(ctx, id)
		if err != nil {
			c.logger.Debug("cache read failed", "board", id, "err", err)
		}
		if ok {
			b, found, fromCache = cached, true, true
			c.logger.Info("opened cached copy", "board", id, "saved", saved.Format(time.DateTime))
		}
	}
	if !found {
		return fmt.Errorf("open board %s: %w", id, store.ErrNotFound)
	}

	c.mu.Lock()
	gen := c.resetLocked(b)
	c.fromCache = fromCache
	if !fromCache {
		committed := b
		c.committed = &committed
	}
	c.mu.Unlock()

	c.subscribe(ctx, gen, id)
	c.notify()
	return nil
}

// resetLocked installs b as the open board and invalidates any earlier
// subscription. It returns the new subscription generation.
func (c *Controller) resetLocked(b board.Board) uint64 {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.gen++
	c.local = b
	c.committed = nil
	c.held = nil
	c.open = true
	c.missing = false
	c.fromCache = false
	c.creating = false
	c.session = interaction.Session{}
	return c.gen
}

func (c *Controller) subscribe(ctx context.Context, gen uint64, id string) {
	if c.store == nil {
		return
	}
	cancel, err := c.store.Subscribe(ctx, id, func(b *board.Board) { c.receive(gen, b) })
	if err != nil {
		c.logger.Warn("subscribe failed, continuing locally", "board", id, "err", err)
		return
	}
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancel()
		return
	}
	c.unsubscribe = cancel
	c.mu.Unlock()
}

// receive is the merge function: the only place a remote snapshot reaches
// the local board.
func (c *Controller) receive(gen uint64, snap *board.Board) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if snap == nil && c.creating {
		c.mu.Unlock()
		c.logger.Debug("new board not stored yet")
		return
	}
	if snap == nil {
		c.missing = true
		c.mu.Unlock()
		c.metrics.snapshot(snapshotMissing)
		c.logger.Debug("remote board absent")
		c.notify()
		return
	}

	remote := snap.Clone()
	c.committed = &remote
	c.missing = false
	c.fromCache = false
	c.creating = false
	if c.session.Interacting() {
		c.held = &remote
		c.mu.Unlock()
		c.metrics.snapshot(snapshotDeferred)
		c.logger.Debug("holding remote snapshot during gesture", "board", remote.ID)
		return
	}
	c.local = remote
	c.held = nil
	c.session.Prune(remote)
	c.mu.Unlock()

	c.metrics.snapshot(snapshotApplied)
	if c.cache != nil {
		if err := c.cache.Put(context.Background(), remote); err != nil {
			c.logger.Debug("cache write failed", "board", remote.ID, "err", err)
		}
	}
	c.notify()
}

// Close stops the subscription, waits for pending pushes until ctx ends and
// stops the pusher. The controller must not be used afterwards.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.gen++
	c.mu.Unlock()

	err := c.pusher.flush(ctx)
	c.pusher.stop()
	return err
}

// Flush waits until every commit scheduled so far has been pushed or has
// failed.
func (c *Controller) Flush(ctx context.Context) error {
	return c.pusher.flush(ctx)
}

// Board returns the current local board.
func (c *Controller) Board() board.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// View returns a consistent copy of the render state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Selected = slices.Clone(s.Selected)
	s.GroupInitial = nil
	v := View{
		Board:     c.local,
		Session:   s,
		Missing:   c.missing,
		FromCache: c.fromCache,
		Offline:   c.store == nil,
	}
	if s.GroupMode {
		v.Group, v.HasGroup = interaction.GroupBounds(&c.session, c.local)
	}
	return v
}

// Handle feeds one pointer event to the interaction machine.
func (c *Controller) Handle(ev interaction.Event) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	kind := c.session.State.String()
	out := c.machine.Handle(&c.session, c.local, ev)
	if out.Changed {
		c.local = out.Board
	}
	if out.Commit {
		c.commitLocked(kind)
	}
	c.mu.Unlock()
	c.notify()
}

// AddItem validates content for t and adds a new item on top of the board.
// It returns board.ErrLimitReached when the acting user already owns the
// board's maximum.
func (c *Controller) AddItem(t board.ItemType, content string, style Style) (board.Item, error) {
	payload, err := board.NewPayload(t, content)
	if err != nil {
		return board.Item{}, err
	}
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return board.Item{}, errNotOpen
	}
	it := board.NewItem(c.user, board.Draft{
		Payload:   payload,
		X:         style.X,
		Y:         style.Y,
		Width:     style.Width,
		Height:    style.Height,
		Color:     style.Color,
		TextColor: style.TextColor,
	}, c.now(), c.jitter)
	next, err := c.local.AddItem(it)
	if err != nil {
		c.mu.Unlock()
		return board.Item{}, err
	}
	c.local = next
	c.session.Active = it.ID
	c.commitLocked("add")
	c.mu.Unlock()
	c.notify()
	return it, nil
}

// UpdateItem applies a partial update to one item.
func (c *Controller) UpdateItem(id string, p board.Patch) error {
	return c.mutate("update", func(b board.Board) (board.Board, error) {
		return b.UpdateItem(c.user, id, p)
	})
}

// NudgeFontSize grows or shrinks a text item's font by delta.
func (c *Controller) NudgeFontSize(id string, delta float64) error {
	return c.mutate("font", func(b board.Board) (board.Board, error) {
		it, _, ok := b.Find(id)
		if !ok {
			return b, board.ErrNotFound
		}
		size := it.NudgeFontSize(delta).FontSize
		return b.UpdateItem(c.user, id, board.Patch{FontSize: size})
	})
}

// DeleteItem removes one item.
func (c *Controller) DeleteItem(id string) error {
	return c.mutate("delete", func(b board.Board) (board.Board, error) {
		return b.DeleteItem(c.user, id)
	})
}

// DeleteItems removes every listed item the acting user may edit and
// reports how many went.
func (c *Controller) DeleteItems(ids []string) int {
	n := 0
	_ = c.mutate("delete", func(b board.Board) (board.Board, error) {
		var next board.Board
		next, n = b.DeleteItems(c.user, ids)
		if n == 0 {
			return b, errUnchanged
		}
		return next, nil
	})
	return n
}

// ReorderItem brings an item to the front or sends it to the back.
func (c *Controller) ReorderItem(id string, layer board.Layer) error {
	return c.mutate("reorder", func(b board.Board) (board.Board, error) {
		return b.ReorderItem(c.user, id, layer)
	})
}

// SetBoardField changes board settings. Only the host may do so.
func (c *Controller) SetBoardField(s board.Settings) error {
	return c.mutate("settings", func(b board.Board) (board.Board, error) {
		return b.SetFields(c.user, s)
	})
}

// SetGroupMode switches group mode. It reports false mid-gesture.
func (c *Controller) SetGroupMode(on bool) bool {
	c.mu.Lock()
	ok := c.machine.SetGroupMode(&c.session, on)
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return ok
}

// DeleteSelection removes the selected items and clears the selection.
func (c *Controller) DeleteSelection() {
	c.mu.Lock()
	out := c.machine.DeleteSelection(&c.session, c.local)
	if out.Changed {
		c.local = out.Board
	}
	if out.Commit {
		c.commitLocked("delete")
	}
	c.mu.Unlock()
	c.notify()
}

var (
	errNotOpen   = errors.New("no board open")
	errUnchanged = errors.New("unchanged")
)

// mutate applies a direct, non-gesture edit and commits it. Authorization
// denials are not errors for the caller: the board is simply unchanged.
func (c *Controller) mutate(kind string, fn func(board.Board) (board.Board, error)) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return errNotOpen
	}
	next, err := fn(c.local)
	if err != nil {
		c.mu.Unlock()
		switch {
		case errors.Is(err, errUnchanged):
			return nil
		case errors.Is(err, board.ErrForbidden) && kind != "settings":
			c.logger.Debug("edit not authorized", "kind", kind, "user", c.user)
			return nil
		}
		return err
	}
	c.local = next
	c.session.Prune(next)
	c.commitLocked(kind)
	c.mu.Unlock()
	c.notify()
	return nil
}

// commitLocked drops any held remote snapshot and schedules the local board
// for pushing.
func (c *Controller) commitLocked(kind string) {
	c.held = nil
	c.metrics.mutation(kind)
	c.pusher.schedule(c.local)
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
