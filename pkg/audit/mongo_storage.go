package audit

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection used when none is configured.
const DefaultMongoCollection = "audit_records"

// MongoStorage stores records as documents keyed by record id. It only ever
// inserts; the deployment should grant the application role insert and find
// on the collection and nothing else.
type MongoStorage struct {
	coll *mongo.Collection
}

func NewMongoStorage(db *mongo.Database, collection string) *MongoStorage {
	if db == nil {
		panic("audit: mongo database cannot be nil")
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoStorage{coll: db.Collection(collection)}
}

// EnsureIndexes creates the indexes used by Query.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id_claimed", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *MongoStorage) Store(ctx context.Context, record Record) error {
	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStorage) StoreBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.coll.InsertMany(ctx, records); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStorage) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if criteria.Limit > 0 {
		opts.SetLimit(int64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		opts.SetSkip(int64(criteria.Offset))
	}

	cur, err := s.coll.Find(ctx, mongoFilter(criteria), opts)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	var records []Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return records, nil
}

func (s *MongoStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, mongoFilter(criteria))
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return n, nil
}

func mongoFilter(c Criteria) bson.D {
	filter := bson.D{}
	if c.Actor != "" {
		filter = append(filter, bson.E{Key: "actor", Value: c.Actor})
	}
	if c.TenantID != "" {
		filter = append(filter, bson.E{Key: "tenant_id_claimed", Value: c.TenantID})
	}
	if c.Action != "" {
		filter = append(filter, bson.E{Key: "action", Value: c.Action})
	}
	if c.Result != "" {
		filter = append(filter, bson.E{Key: "result", Value: string(c.Result)})
	}
	if c.RequestID != "" {
		filter = append(filter, bson.E{Key: "request_id", Value: c.RequestID})
	}
	if c.BypassOnly {
		filter = append(filter, bson.E{Key: "bypass_used", Value: true})
	}
	created := bson.D{}
	if !c.StartTime.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: c.StartTime})
	}
	if !c.EndTime.IsZero() {
		created = append(created, bson.E{Key: "$lt", Value: c.EndTime})
	}
	if len(created) > 0 {
		filter = append(filter, bson.E{Key: "created_at", Value: created})
	}
	return filter
}
