package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petpath/tracksync/internal/models"
)

// Collection names (the logical tables of the original system).
const (
	ColUsers       = "users"
	ColUserDevices = "user_devices"
	ColUserChanges = "user_changes"
	ColAPICalls    = "api_calls"
)

// MongoUserRepository implements UserRepository on a Mongo collection keyed
// by the nif field.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates the repository and ensures the unique nif
// index exists (idempotent, best effort like the rest of index bootstrap).
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "nif", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) FindByNIF(ctx context.Context, nif string) (*models.UserRecord, error) {
	var u models.UserRecord
	if err := r.col.FindOne(ctx, bson.M{"nif": nif}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) Upsert(ctx context.Context, u *models.UserRecord) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"nif": u.NIF}, u, opts); err != nil {
		return fmt.Errorf("upsert user %s: %w", u.NIF, err)
	}
	return nil
}

func (r *MongoUserRepository) ListActive(ctx context.Context) ([]models.UserRecord, error) {
	return r.list(ctx, bson.M{"status": models.StatusActive})
}

func (r *MongoUserRepository) List(ctx context.Context) ([]models.UserRecord, error) {
	return r.list(ctx, bson.M{})
}

func (r *MongoUserRepository) list(ctx context.Context, filter bson.M) ([]models.UserRecord, error) {
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.UserRecord{}
	for cur.Next(ctx) {
		var u models.UserRecord
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, cur.Err()
}

// MongoDeviceRepository implements DeviceRepository keyed by the composite
// "<nif>_<deviceID>" key.
type MongoDeviceRepository struct {
	col *mongo.Collection
}

func NewMongoDeviceRepository(col *mongo.Collection) *MongoDeviceRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoDeviceRepository{col: col}
}

func (r *MongoDeviceRepository) UpsertBatch(ctx context.Context, recs []models.DeviceRecord) error {
	opts := options.Replace().SetUpsert(true)
	for _, rec := range recs {
		if _, err := r.col.ReplaceOne(ctx, bson.M{"key": rec.Key}, rec, opts); err != nil {
			return fmt.Errorf("upsert device %s: %w", rec.Key, err)
		}
	}
	return nil
}

func (r *MongoDeviceRepository) ListByNIF(ctx context.Context, nif string) ([]models.DeviceRecord, error) {
	cur, err := r.col.Find(ctx, bson.M{"nif": nif})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.DeviceRecord{}
	for cur.Next(ctx) {
		var d models.DeviceRecord
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, cur.Err()
}

// MongoChangeLogRepository implements the append-only change audit trail,
// partitioned per user.
type MongoChangeLogRepository struct {
	col *mongo.Collection
}

func NewMongoChangeLogRepository(col *mongo.Collection) *MongoChangeLogRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "partition_key", Value: 1}, {Key: "row_key", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoChangeLogRepository{col: col}
}

func (r *MongoChangeLogRepository) Append(ctx context.Context, e *models.ChangeLogEntry) error {
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("append change log for %s: %w", e.NIF, err)
	}
	return nil
}

func (r *MongoChangeLogRepository) ListByNIF(ctx context.Context, nif string) ([]models.ChangeLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "row_key", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"nif": nif}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.ChangeLogEntry{}
	for cur.Next(ctx) {
		var e models.ChangeLogEntry
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

// MongoAPICallRepository implements the write-once fetch log.
type MongoAPICallRepository struct {
	col *mongo.Collection
}

func NewMongoAPICallRepository(col *mongo.Collection) *MongoAPICallRepository {
	return &MongoAPICallRepository{col: col}
}

func (r *MongoAPICallRepository) Append(ctx context.Context, e *models.APICallLog) error {
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("append api call log: %w", err)
	}
	return nil
}

// NewMongoStores wires all four repositories against one database.
func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Users:    NewMongoUserRepository(db.Collection(ColUsers)),
		Devices:  NewMongoDeviceRepository(db.Collection(ColUserDevices)),
		Changes:  NewMongoChangeLogRepository(db.Collection(ColUserChanges)),
		APICalls: NewMongoAPICallRepository(db.Collection(ColAPICalls)),
	}
}
