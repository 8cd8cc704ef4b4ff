// Package mongodb stores the billing data in MongoDB. Multi-document writes
// run in transactions, so the server must be a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const (
	shopsCollection         = "shops"
	usersCollection         = "users"
	itemsCollection         = "inventory_items"
	billsCollection         = "bills"
	lineItemsCollection     = "bill_items"
	creditsCollection       = "credit_entries"
	salaryEntriesCollection = "salary_entries"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, uri string, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
// Creating them also creates the collections, which transactions need.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	hasString := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}
	indexes := map[string][]mongo.IndexModel{
		shopsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("shops_code")},
			{Keys: bson.D{{Key: "gst_number", Value: 1}}, Options: options.Index().SetUnique(true).SetName("shops_gst_number")},
			{Keys: bson.D{{Key: "owner_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("shops_owner_id")},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email").SetPartialFilterExpression(hasString("email"))},
			{Keys: bson.D{{Key: "employee_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_employee_id").SetPartialFilterExpression(hasString("employee_id"))},
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "role", Value: 1}}},
		},
		itemsCollection: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		billsCollection: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		lineItemsCollection: {
			{Keys: bson.D{{Key: "bill_id", Value: 1}}},
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		creditsCollection: {
			{Keys: bson.D{{Key: "bill_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("credit_entries_bill_id")},
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "customer_mobile", Value: 1}}},
		},
		salaryEntriesCollection: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// inTransaction runs fn in a multi-document transaction. The driver retries
// fn on transient write conflicts.
func (s *Store) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func mapDuplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "shops_code"), strings.Contains(msg, "users_employee_id"):
		return store.ErrDuplicateCode
	case strings.Contains(msg, "shops_gst_number"):
		return store.Conflict("gst number already registered")
	case strings.Contains(msg, "shops_owner_id"):
		return store.Conflict("owner already has a shop")
	case strings.Contains(msg, "users_email"):
		return store.Conflict("email already registered")
	default:
		return store.Conflict("record already exists")
	}
}

func notFound(err error, entity string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.NotFound(entity)
	}
	return err
}

// createdRange filters created_at to the half-open range, leaving nil
// bounds open.
func createdRange(filter bson.M, from *time.Time, to *time.Time) {
	bounds := bson.M{}
	if from != nil {
		bounds["$gte"] = from.UTC()
	}
	if to != nil {
		bounds["$lt"] = to.UTC()
	}
	if len(bounds) > 0 {
		filter["created_at"] = bounds
	}
}

func findOptions(sort bson.D, limit int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// roundedAdd is an update pipeline stage adding delta to field, rounding to
// two decimals and flooring at zero.
func roundedAdd(field string, delta float64, extra bson.M) bson.A {
	set := bson.M{
		field: bson.M{"$max": bson.A{0, bson.M{"$round": bson.A{bson.M{"$add": bson.A{"$" + field, delta}}, 2}}}},
	}
	for k, v := range extra {
		set[k] = v
	}
	return bson.A{bson.M{"$set": set}}
}
