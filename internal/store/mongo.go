package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"corkboard/internal/board"
)

// MongoOptions configures NewMongo.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Logger     *log.Logger
}

// mongoDoc is the stored shape: the listing fields at top level for
// queries, and the whole board as an opaque JSON string.
type mongoDoc struct {
	ID        string `bson:"_id"`
	Topic     string `bson:"topic"`
	Host      string `bson:"host"`
	CreatedAt int64  `bson:"createdAt"`
	IsPublic  bool   `bson:"isPublic"`
	Doc       string `bson:"doc"`
}

type changeEvent struct {
	OperationType string    `bson:"operationType"`
	FullDocument  *mongoDoc `bson:"fullDocument"`
}

// Mongo keeps one document per board and watches it with change streams,
// which require a replica set or sharded cluster.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
}

// NewMongo connects to the deployment described by opts.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, unavailable("connect mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping mongo", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	dbName, collName := opts.Database, opts.Collection
	if dbName == "" {
		dbName = "corkboard"
	}
	if collName == "" {
		collName = "boards"
	}
	coll := client.Database(dbName).Collection(collName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		logger.Warn("could not create listing index", "err", err)
	}
	return &Mongo{client: client, coll: coll, logger: logger}, nil
}

// Put implements Store.
func (m *Mongo) Put(ctx context.Context, b board.Board) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	doc := mongoDoc{
		ID:        b.ID,
		Topic:     b.Topic,
		Host:      b.Host,
		CreatedAt: b.CreatedAt,
		IsPublic:  b.IsPublic,
		Doc:       string(data),
	}
	_, err = m.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return m.wrap("put "+b.ID, err)
	}
	return nil
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, id string) (board.Board, error) {
	var doc mongoDoc
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return board.Board{}, m.wrap("get "+id, err)
	}
	return decode([]byte(doc.Doc))
}

// Subscribe implements Store. The change stream is opened before the
// current document is read.
func (m *Mongo) Subscribe(ctx context.Context, id string, fn Handler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	cs, err := m.watch(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}
	first, err := m.current(ctx, id)
	if err != nil {
		cancel()
		_ = cs.Close(context.Background())
		return nil, err
	}
	go m.listen(ctx, id, cs, first, fn)
	return cancel, nil
}

func (m *Mongo) watch(ctx context.Context, id string) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}},
	}
	cs, err := m.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, m.wrap("watch "+id, err)
	}
	return cs, nil
}

func (m *Mongo) current(ctx context.Context, id string) (*board.Board, error) {
	b, err := m.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *Mongo) listen(ctx context.Context, id string, cs *mongo.ChangeStream, first *board.Board, fn Handler) {
	fn(first)
	for {
		for cs.Next(ctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				m.logger.Error("unable to decode change event", "board", id, "err", err)
				continue
			}
			if ev.OperationType == "delete" || ev.FullDocument == nil {
				fn(nil)
				continue
			}
			b, err := decode([]byte(ev.FullDocument.Doc))
			if err != nil {
				m.logger.Error("unable to parse board update", "board", id, "err", err)
				continue
			}
			fn(&b)
		}
		err := cs.Err()
		_ = cs.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("change stream closed, reconnecting", "board", id, "err", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
			if cs, err = m.watch(ctx, id); err != nil {
				m.logger.Debug("rewatch failed", "board", id, "err", err)
				continue
			}
			snap, err := m.current(ctx, id)
			if err != nil {
				_ = cs.Close(context.Background())
				continue
			}
			fn(snap)
			break
		}
	}
}

// ListPublic implements Directory.
func (m *Mongo) ListPublic(ctx context.Context, limit int) ([]board.Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(listLimit(limit))).
		SetProjection(bson.M{"doc": 0})
	cur, err := m.coll.Find(ctx, bson.M{"isPublic": true}, opts)
	if err != nil {
		return nil, m.wrap("list public", err)
	}
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, m.wrap("list public", err)
	}
	out := make([]board.Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, board.Summary{ID: d.ID, Topic: d.Topic, Host: d.Host, CreatedAt: d.CreatedAt})
	}
	return out, nil
}

// Delete implements Directory.
func (m *Mongo) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return m.wrap("delete "+id, err)
	}
	return nil
}

// Close implements Backend.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) wrap(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Backend = (*Mongo)(nil)
