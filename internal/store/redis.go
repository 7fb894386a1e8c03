package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"corkboard/internal/board"
)

// DefaultKeyPrefix namespaces every Redis key written by the store.
const DefaultKeyPrefix = "corkboard:"

// resubscribeDelay is how long the listener waits before reconnecting a
// dropped subscription.
const resubscribeDelay = time.Second

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *log.Logger
}

// Redis stores each board as a JSON string and publishes every write on a
// per-board channel. Public boards are indexed in a sorted set scored by
// creation time, with their summaries in a hash.
type Redis struct {
	client *redis.Client
	prefix string
	logger *log.Logger
	owned  bool
}

// NewRedis connects to the server described by opts.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("ping redis", err)
	}
	r := NewRedisFromClient(client, opts.Prefix, opts.Logger)
	r.owned = true
	return r, nil
}

// NewRedisFromClient wraps an existing client. Close does not close it.
func NewRedisFromClient(client *redis.Client, prefix string, logger *log.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

func (r *Redis) boardKey(id string) string { return r.prefix + "board:" + id }
func (r *Redis) channel(id string) string  { return r.prefix + "board:" + id + ":updates" }
func (r *Redis) publicKey() string         { return r.prefix + "public" }
func (r *Redis) metaKey() string           { return r.prefix + "public:meta" }

// Put implements Store.
func (r *Redis) Put(ctx context.Context, b board.Board) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(b.Summary())
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.boardKey(b.ID), data, 0)
		if b.IsPublic {
			p.ZAdd(ctx, r.publicKey(), redis.Z{Score: float64(b.CreatedAt), Member: b.ID})
			p.HSet(ctx, r.metaKey(), b.ID, meta)
		} else {
			p.ZRem(ctx, r.publicKey(), b.ID)
			p.HDel(ctx, r.metaKey(), b.ID)
		}
		return nil
	})
	if err != nil {
		return r.wrap("put "+b.ID, err)
	}
	if err := r.client.Publish(ctx, r.channel(b.ID), data).Err(); err != nil {
		return r.wrap("publish "+b.ID, err)
	}
	return nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, id string) (board.Board, error) {
	data, err := r.client.Get(ctx, r.boardKey(id)).Bytes()
	if err != nil {
		return board.Board{}, r.wrap("get "+id, err)
	}
	return decode(data)
}

// Subscribe implements Store. The channel subscription is confirmed before
// the current snapshot is read, so no write between the two is lost.
func (r *Redis) Subscribe(ctx context.Context, id string, fn Handler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := r.subscribe(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}
	first, err := r.current(ctx, id)
	if err != nil {
		cancel()
		_ = sub.Close()
		return nil, err
	}
	go r.listen(ctx, id, sub, first, fn)
	return cancel, nil
}

func (r *Redis) subscribe(ctx context.Context, id string) (*redis.PubSub, error) {
	sub := r.client.Subscribe(ctx, r.channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, r.wrap("subscribe "+id, err)
	}
	return sub, nil
}

// current returns the stored snapshot, or nil when the board is absent.
func (r *Redis) current(ctx context.Context, id string) (*board.Board, error) {
	b, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Redis) listen(ctx context.Context, id string, sub *redis.PubSub, first *board.Board, fn Handler) {
	fn(first)
	for {
		r.drain(ctx, id, sub, fn)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("board subscription closed, reconnecting", "board", id)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
			var err error
			if sub, err = r.subscribe(ctx, id); err != nil {
				r.logger.Debug("resubscribe failed", "board", id, "err", err)
				continue
			}
			snap, err := r.current(ctx, id)
			if err != nil {
				r.logger.Debug("refetch after resubscribe failed", "board", id, "err", err)
				_ = sub.Close()
				continue
			}
			fn(snap)
			break
		}
	}
}

func (r *Redis) drain(ctx context.Context, id string, sub *redis.PubSub, fn Handler) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == "" {
				fn(nil)
				continue
			}
			b, err := decode([]byte(msg.Payload))
			if err != nil {
				r.logger.Error("unable to parse board update", "board", id, "err", err)
				continue
			}
			fn(&b)
		}
	}
}

// ListPublic implements Directory.
func (r *Redis) ListPublic(ctx context.Context, limit int) ([]board.Summary, error) {
	ids, err := r.client.ZRevRange(ctx, r.publicKey(), 0, int64(listLimit(limit)-1)).Result()
	if err != nil {
		return nil, r.wrap("list public", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := r.client.HMGet(ctx, r.metaKey(), ids...).Result()
	if err != nil {
		return nil, r.wrap("list public", err)
	}
	out := make([]board.Summary, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			r.logger.Debug("public board without summary", "board", ids[i])
			continue
		}
		var sum board.Summary
		if err := json.Unmarshal([]byte(s), &sum); err != nil {
			r.logger.Debug("bad public summary", "board", ids[i], "err", err)
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// Delete implements Directory.
func (r *Redis) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.boardKey(id))
		p.ZRem(ctx, r.publicKey(), id)
		p.HDel(ctx, r.metaKey(), id)
		return nil
	})
	if err != nil {
		return r.wrap("delete "+id, err)
	}
	if err := r.client.Publish(ctx, r.channel(id), "").Err(); err != nil {
		return r.wrap("publish "+id, err)
	}
	return nil
}

// Close implements Backend.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) wrap(op string, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}

var _ Backend = (*Redis)(nil)
