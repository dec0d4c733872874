package mongodb

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo struct {
	users *mongo.Collection
	files *mongo.Collection
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	_, err := r.users.InsertOne(ctx, user)
	if err != nil {
		return translate(err)
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepo) ListIDs(ctx context.Context) ([]string, error) {
	cursor, err := r.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		ids = append(ids, row.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

// AddStorageUsed uses an update pipeline so the clamp happens server-side in
// the same atomic document update as the addition.
func (r *UserRepo) AddStorageUsed(ctx context.Context, id string, delta int64) (int64, error) {
	update := bson.A{
		bson.M{"$set": bson.M{
			"storage_used": bson.M{"$max": bson.A{int64(0), bson.M{"$add": bson.A{"$storage_used", delta}}}},
			"updated_at":   time.Now(),
		}},
	}

	var user models.User
	err := r.users.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return 0, translate(err)
	}
	return user.StorageUsed, nil
}

func (r *UserRepo) SetStorageUsed(ctx context.Context, id string, used int64) error {
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"storage_used": max(used, 0),
			"updated_at":   time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update storage usage: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecomputeStorageUsed aggregates the file sizes and then stores the total.
// MongoDB cannot read another collection inside an update, so a counter
// change landing between the two steps is overwritten until the next run.
func (r *UserRepo) RecomputeStorageUsed(ctx context.Context, id string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": id}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$file_size"}}}},
	}

	cursor, err := r.files.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode file size sum: %w", err)
	}

	var total int64
	if len(rows) > 0 {
		total = rows[0].Total
	}
	if err := r.SetStorageUsed(ctx, id, total); err != nil {
		return 0, err
	}
	return total, nil
}
