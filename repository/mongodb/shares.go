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

type ShareRepo struct {
	shares *mongo.Collection
}

func (r *ShareRepo) Create(ctx context.Context, link *models.ShareLink) error {
	if _, err := r.shares.InsertOne(ctx, link); err != nil {
		return translate(err)
	}
	return nil
}

func (r *ShareRepo) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	if err := r.shares.FindOne(ctx, bson.M{"_id": token}).Decode(&link); err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *ShareRepo) FindByTarget(ctx context.Context, targetType models.TargetType, targetID string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := r.shares.FindOne(ctx, bson.M{
		"target_type": targetType,
		"target_id":   targetID,
	}).Decode(&link)
	if err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *ShareRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.shares.Find(ctx, bson.M{"owner_id": ownerID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer cursor.Close(ctx)

	links := []models.ShareLink{}
	if err := cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("failed to decode share links: %w", err)
	}
	return links, nil
}

// ConsumeAccess matches only a usable link, so two concurrent callers racing
// for the last access cannot both be accepted.
func (r *ShareRepo) ConsumeAccess(ctx context.Context, token string, now time.Time) (*models.ShareLink, error) {
	filter := bson.M{
		"_id": token,
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"expires_at": nil},
				bson.M{"expires_at": bson.M{"$gt": now}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"max_access": nil},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$access_count", "$max_access"}}},
			}},
		},
	}

	var link models.ShareLink
	err := r.shares.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$inc": bson.M{"access_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&link)
	if err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *ShareRepo) TokensFor(ctx context.Context, targetType models.TargetType, targetIDs []string) (map[string]string, error) {
	tokens := make(map[string]string)
	if len(targetIDs) == 0 {
		return tokens, nil
	}

	cursor, err := r.shares.Find(ctx, bson.M{
		"target_type": targetType,
		"target_id":   bson.M{"$in": targetIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up share links: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var link models.ShareLink
		if err := cursor.Decode(&link); err != nil {
			return nil, fmt.Errorf("failed to decode share link: %w", err)
		}
		tokens[link.TargetID] = link.Token
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return tokens, nil
}

func (r *ShareRepo) DeleteByTarget(ctx context.Context, targetType models.TargetType, targetID string) error {
	result, err := r.shares.DeleteOne(ctx, bson.M{
		"target_type": targetType,
		"target_id":   targetID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete share link: %w", err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ShareRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.shares.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$ne": nil, "$lte": now},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired share links: %w", err)
	}
	return result.DeletedCount, nil
}
