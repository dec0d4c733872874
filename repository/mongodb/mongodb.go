package mongodb

import (
	"cloudnest/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection   = "users"
	foldersCollection = "folders"
	filesCollection   = "files"
	sharesCollection  = "share_links"
	locksCollection   = "tree_locks"
)

type Options struct {
	URI      string
	Database string
	// Transactions runs folder tree writes in transactions serialized per
	// owner. Nil detects support: replica sets and sharded clusters have it.
	Transactions *bool
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, opts Options) (*repository.Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(opts.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	transactions, err := transactionsEnabled(ctx, db, opts.Transactions)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if transactions {
		// collections cannot be created implicitly inside every transaction
		if err := db.CreateCollection(ctx, locksCollection); err != nil && !isNamespaceExists(err) {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create %s: %w", locksCollection, err)
		}
	}

	log.Info().
		Str("database", opts.Database).
		Bool("transactions", transactions).
		Msg("Connected to MongoDB")

	return NewStore(db, transactions, client.Disconnect), nil
}

func NewStore(db *mongo.Database, transactions bool, closeFn func(ctx context.Context) error) *repository.Store {
	guard := &treeGuard{locks: db.Collection(locksCollection), transactions: transactions}
	return repository.NewStore(
		&UserRepo{users: db.Collection(usersCollection), files: db.Collection(filesCollection)},
		&FolderRepo{
			folders: db.Collection(foldersCollection),
			files:   db.Collection(filesCollection),
			guard:   guard,
		},
		&FileRepo{
			files:   db.Collection(filesCollection),
			folders: db.Collection(foldersCollection),
			guard:   guard,
		},
		&ShareRepo{shares: db.Collection(sharesCollection)},
		closeFn,
	)
}

// transactionsEnabled returns the configured choice, or asks the server
// when there is none. Standalone servers reject transactions.
func transactionsEnabled(ctx context.Context, db *mongo.Database, configured *bool) (bool, error) {
	if configured != nil {
		return *configured, nil
	}

	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false, fmt.Errorf("failed to query MongoDB topology: %w", err)
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid", nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		foldersCollection: {
			{
				Keys: bson.D{
					{Key: "owner_id", Value: 1},
					{Key: "parent_id", Value: 1},
					{Key: "name", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "parent_id", Value: 1}, {Key: "updated_at", Value: 1}}},
		},
		filesCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "folder_id", Value: 1}, {Key: "original_name", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		},
		sharesCollection: {
			{
				Keys:    bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	default:
		return err
	}
}

func sortOrder(desc bool) int {
	if desc {
		return -1
	}
	return 1
}

// parentFilter matches both a null and a missing parent for root.
func parentFilter(parentID *string) interface{} {
	if parentID == nil {
		return nil
	}
	return *parentID
}
