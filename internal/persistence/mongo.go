package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Repository and FieldMigrator on one MongoDB collection.
// Entities are stored with their identity in _id as a UUID string.
type MongoStore[T any, P Entity[T]] struct {
	col *mongo.Collection
	instrument
}

// NewMongoStore binds T to the collection named after T plus the backend suffix.
func NewMongoStore[T any, P Entity[T]](b *Backend) *MongoStore[T, P] {
	name := CollectionName[T](b.suffix)
	return &MongoStore[T, P]{col: b.db.Collection(name), instrument: instrument{collection: name}}
}

func (s *MongoStore[T, P]) CollectionName() string { return s.collection }

func (s *MongoStore[T, P]) Create(ctx context.Context, entity *T) (*T, error) {
	defer s.observe("create", time.Now())
	if entity == nil {
		return nil, ErrNilEntity
	}
	p := P(entity)
	if p.EntityID() == "" {
		p.SetEntityID(uuid.NewString())
	}
	if _, err := s.col.InsertOne(ctx, entity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = duplicateKey(err)
		}
		return nil, s.fail("create", p.EntityID(), "", err)
	}
	s.ok("create")
	return entity, nil
}

func (s *MongoStore[T, P]) FindByID(ctx context.Context, id string) (*T, error) {
	defer s.observe("find_by_id", time.Now())
	var out T
	if err := s.col.FindOne(ctx, byID(id)).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.ok("find_by_id")
			return nil, nil
		}
		return nil, s.fail("find_by_id", id, "", err)
	}
	s.ok("find_by_id")
	return &out, nil
}

func (s *MongoStore[T, P]) FindByProperty(ctx context.Context, match Property[T]) ([]*T, error) {
	defer s.observe("find_by_property", time.Now())
	out, err := s.find(ctx, bson.M{match.Name(): match.Value()})
	if err != nil {
		return nil, s.fail("find_by_property", "", match.Name(), err)
	}
	s.ok("find_by_property")
	return out, nil
}

func (s *MongoStore[T, P]) FindAndUpdateByProperty(ctx context.Context, id string, set Property[T]) (*T, error) {
	defer s.observe("find_and_update", time.Now())
	if set.Name() == IdentityField {
		return nil, s.fail("find_and_update", id, set.Name(), ErrIdentityField)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(false)
	var out T
	err := s.col.FindOneAndUpdate(ctx, byID(id), bson.M{"$set": bson.M{set.Name(): set.Value()}}, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.ok("find_and_update")
			return nil, nil
		}
		return nil, s.fail("find_and_update", id, set.Name(), err)
	}
	s.ok("find_and_update")
	return &out, nil
}

func (s *MongoStore[T, P]) Update(ctx context.Context, id string, replacement *T) (*T, error) {
	defer s.observe("update", time.Now())
	if replacement == nil {
		return nil, ErrNilEntity
	}
	P(replacement).SetEntityID(id)
	opts := options.FindOneAndReplace().SetReturnDocument(options.After).SetUpsert(false)
	var out T
	if err := s.col.FindOneAndReplace(ctx, byID(id), replacement, opts).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.ok("update")
			return nil, nil
		}
		return nil, s.fail("update", id, "", err)
	}
	s.ok("update")
	return &out, nil
}

func (s *MongoStore[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	defer s.observe("delete", time.Now())
	res, err := s.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return false, s.fail("delete", id, "", err)
	}
	s.ok("delete")
	return res.DeletedCount > 0, nil
}

func (s *MongoStore[T, P]) List(ctx context.Context) ([]*T, error) {
	defer s.observe("list", time.Now())
	out, err := s.find(ctx, bson.M{})
	if err != nil {
		return nil, s.fail("list", "", "", err)
	}
	s.ok("list")
	return out, nil
}

func (s *MongoStore[T, P]) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := s.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func (s *MongoStore[T, P]) RenameField(ctx context.Context, from, to string) (int64, error) {
	defer s.observe("rename_field", time.Now())
	res, err := s.col.UpdateMany(ctx, renameFilter(from, to), bson.M{"$rename": bson.M{from: to}})
	if err != nil {
		return 0, s.fail("rename_field", "", from, err)
	}
	s.ok("rename_field")
	return res.ModifiedCount, nil
}

func (s *MongoStore[T, P]) SetFieldDefault(ctx context.Context, field string, value any) (int64, error) {
	defer s.observe("set_field_default", time.Now())
	res, err := s.col.UpdateMany(ctx, missingFilter(field), bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return 0, s.fail("set_field_default", "", field, err)
	}
	s.ok("set_field_default")
	return res.ModifiedCount, nil
}

func (s *MongoStore[T, P]) UnsetField(ctx context.Context, field string) (int64, error) {
	defer s.observe("unset_field", time.Now())
	res, err := s.col.UpdateMany(ctx, presentFilter(field), bson.M{"$unset": bson.M{field: ""}})
	if err != nil {
		return 0, s.fail("unset_field", "", field, err)
	}
	s.ok("unset_field")
	return res.ModifiedCount, nil
}

// MongoGeoStore is a MongoStore for located entities with a 2dsphere index
// on the location field.
type MongoGeoStore[T any, P LocatedEntity[T]] struct {
	*MongoStore[T, P]
}

// NewMongoGeoStore ensures the 2dsphere index exists before returning the store.
func NewMongoGeoStore[T any, P LocatedEntity[T]](ctx context.Context, b *Backend) (*MongoGeoStore[T, P], error) {
	s := &MongoGeoStore[T, P]{MongoStore: NewMongoStore[T, P](b)}
	idx := mongo.IndexModel{Keys: bson.D{{Key: LocationField, Value: "2dsphere"}}}
	if _, err := s.col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, s.fail("create_index", "", LocationField, err)
	}
	return s, nil
}

func (s *MongoGeoStore[T, P]) FindNearest(ctx context.Context, point GeoPoint, count int) ([]*T, error) {
	defer s.observe("find_nearest", time.Now())
	if count <= 0 {
		return []*T{}, nil
	}
	out, err := s.find(ctx, nearFilter(point), options.Find().SetLimit(int64(count)))
	if err != nil {
		return nil, s.fail("find_nearest", "", LocationField, err)
	}
	s.ok("find_nearest")
	return out, nil
}

func byID(id string) bson.M {
	return bson.M{IdentityField: id}
}

func renameFilter(from, to string) bson.M {
	return bson.M{from: bson.M{"$exists": true}, to: bson.M{"$exists": false}}
}

func missingFilter(field string) bson.M {
	return bson.M{field: bson.M{"$exists": false}}
}

func presentFilter(field string) bson.M {
	return bson.M{field: bson.M{"$exists": true}}
}

// nearFilter sorts by distance; documents without a location never match $near.
func nearFilter(point GeoPoint) bson.M {
	return bson.M{LocationField: bson.M{"$near": bson.M{"$geometry": point}}}
}
