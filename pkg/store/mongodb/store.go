// Package mongodb implements store.Client on MongoDB, one collection per
// entity kind.
package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

const refPrefix = "mongodb:"

var collections = map[models.Kind]string{
	models.KindFunder: "funders",
	models.KindUser:   "users",
	models.KindGrant:  "grants",
}

// Store persists entities in MongoDB.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

var (
	_ store.Client = (*Store)(nil)
	_ store.Closer = (*Store)(nil)
)

func init() {
	store.Register(config.StoreMongoDB, func(ctx context.Context, cfg *config.StoreConfig) (store.Client, error) {
		return Open(ctx, cfg.MongoDB)
	})
}

// Open connects to cfg.URI, verifies the server answers and makes sure the
// lookup indexes exist.
func Open(ctx context.Context, cfg config.MongoDBConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb uri is required")
	}
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		clientOpts.SetTimeout(cfg.Timeout)
		clientOpts.SetConnectTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStoreUnavailable, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background()) // best effort
		return nil, errors.Wrap(err, errors.ErrorTypeStoreUnavailable, "failed to ping MongoDB")
	}

	s := &Store{
		client:   client,
		database: client.Database(cfg.Database),
		logger:   logger.Named("mongodb_store"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.logger.Info("connected to MongoDB", zap.String("database", cfg.Database))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[models.Kind]string{
		models.KindFunder: models.AttrLocalKey,
		models.KindGrant:  models.AttrLocalKey,
		models.KindUser:   models.AttrLocatorIDs,
	}
	for kind, attribute := range indexes {
		_, err := s.collection(kind).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: attribute, Value: 1}},
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStoreUnavailable, "failed to create index").
				WithDetail("kind", string(kind))
		}
	}
	return nil
}

// Close disconnects from the server.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func (s *Store) collection(kind models.Kind) *mongo.Collection {
	return s.database.Collection(collections[kind])
}

// FindByAttribute implements store.Client. MongoDB equality on an array
// field matches any element, so locatorIds needs no special case.
func (s *Store) FindByAttribute(ctx context.Context, kind models.Kind, attribute, value string) (models.Reference, error) {
	if _, ok := collections[kind]; !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "unknown kind %s", kind)
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	var hit struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err := s.collection(kind).FindOne(ctx, bson.D{{Key: attribute, Value: value}}, opts).Decode(&hit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err, "find "+string(kind))
	}
	return reference(kind, hit.ID), nil
}

// ReadResource implements store.Client.
func (s *Store) ReadResource(ctx context.Context, ref models.Reference, kind models.Kind) (models.Entity, error) {
	id, err := parseRef(ref, kind)
	if err != nil {
		return nil, err
	}
	entity := models.New(kind)
	err = s.collection(kind).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "read "+string(kind))
	}
	entity.SetRef(ref)
	return entity, nil
}

// CreateResource implements store.Client.
func (s *Store) CreateResource(ctx context.Context, entity models.Entity) (models.Reference, error) {
	kind := entity.Kind()
	doc, err := document(entity)
	if err != nil {
		return "", err
	}
	id := primitive.NewObjectID()
	doc = append(bson.D{{Key: "_id", Value: id}}, doc...)
	doc = append(doc, bson.E{Key: "updatedAt", Value: time.Now().UTC()})

	if _, err := s.collection(kind).InsertOne(ctx, doc); err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	return reference(kind, id), nil
}

// UpdateResource implements store.Client.
func (s *Store) UpdateResource(ctx context.Context, entity models.Entity) error {
	kind := entity.Kind()
	id, err := parseRef(entity.Ref(), kind)
	if err != nil {
		return err
	}
	doc, err := document(entity)
	if err != nil {
		return err
	}
	doc = append(doc, bson.E{Key: "updatedAt", Value: time.Now().UTC()})

	res, err := s.collection(kind).ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc)
	if err != nil {
		return unavailable(err, "update "+string(kind))
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, errors.ErrorTypeNotFound, "update "+string(kind)).
			WithDetail("ref", string(entity.Ref()))
	}
	return nil
}

// document renders entity as BSON without its Reference, which lives in _id.
func document(entity models.Entity) (bson.D, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "encode "+string(entity.Kind()))
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "encode "+string(entity.Kind()))
	}
	out := doc[:0]
	for _, e := range doc {
		if e.Key != "_ref" {
			out = append(out, e)
		}
	}
	return out, nil
}

func reference(kind models.Kind, id primitive.ObjectID) models.Reference {
	return models.Reference(refPrefix + string(kind) + "/" + id.Hex())
}

func parseRef(ref models.Reference, kind models.Kind) (primitive.ObjectID, error) {
	raw, ok := strings.CutPrefix(string(ref), refPrefix+string(kind)+"/")
	if !ok {
		return primitive.NilObjectID, errors.Newf(errors.ErrorTypeValidation, "reference %q is not a mongodb %s", ref, kind)
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errors.Wrap(err, errors.ErrorTypeValidation, fmt.Sprintf("malformed reference %q", ref))
	}
	return id, nil
}

func unavailable(err error, op string) error {
	return errors.Wrap(err, errors.ErrorTypeStoreUnavailable, op)
}
