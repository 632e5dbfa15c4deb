package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoCollection = "records"

type mongoKey struct {
	UserID     string `bson:"u"`
	RecordType string `bson:"t"`
}

type mongoRecord struct {
	ID        mongoKey  `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo stores one document per record in the "records" collection, keyed by
// a compound {u, t} id.
type Mongo struct {
	collection *mongo.Collection
	client     *mongo.Client
}

// NewMongo uses the records collection of db. The caller owns the client.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{collection: db.Collection(mongoCollection)}
}

// DialMongo connects to uri, pings the server and selects database.
func DialMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	m := NewMongo(client.Database(database))
	m.client = client
	return m, nil
}

// Close disconnects the client when it was created by DialMongo.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	var rec mongoRecord
	err := m.collection.FindOne(ctx, bson.M{"_id": mongoKey{userID, recordType}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s/%s: %w", userID, recordType, err)
	}
	return rec.Value, nil
}

func (m *Mongo) Set(ctx context.Context, userID, recordType string, value []byte) error {
	key := mongoKey{userID, recordType}
	rec := mongoRecord{ID: key, Value: value, UpdatedAt: time.Now().UTC()}

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo set %s/%s: %w", userID, recordType, err)
	}
	return nil
}

func (m *Mongo) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	filter := bson.M{
		"_id.u": userID,
		"_id.t": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	}
	cur, err := m.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongo keys %s: %w", userID, err)
	}

	var docs []struct {
		ID mongoKey `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo keys %s: %w", userID, err)
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.ID.RecordType)
	}
	sort.Strings(keys)
	return keys, nil
}
