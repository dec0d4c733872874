package mongodb

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FileRepo struct {
	files   *mongo.Collection
	folders *mongo.Collection
	guard   *treeGuard
}

var fileColumns = map[models.SortField]string{
	models.FieldOriginalName: "original_name",
	models.FieldMimeType:     "mime_type",
	models.FieldUploadedAt:   "uploaded_at",
	models.FieldFileSize:     "file_size",
}

// Create inserts the file and then confirms its folder still exists; see
// FolderRepo.Create.
func (r *FileRepo) Create(ctx context.Context, file *models.File) error {
	return r.guard.run(ctx, file.OwnerID, func(ctx context.Context) error {
		return writeVerified(ctx,
			func(ctx context.Context) error {
				_, err := r.files.InsertOne(ctx, file)
				return translate(err)
			},
			folderExists(r.folders, file.OwnerID, file.FolderID),
			func(ctx context.Context) error {
				_, err := r.files.DeleteOne(ctx, bson.M{"_id": file.ID})
				return err
			},
		)
	})
}

func (r *FileRepo) FindByID(ctx context.Context, ownerID, id string) (*models.File, error) {
	var file models.File
	err := r.files.FindOne(ctx, bson.M{
		"_id":      id,
		"owner_id": ownerID,
	}).Decode(&file)
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

func (r *FileRepo) Update(ctx context.Context, file *models.File) error {
	return r.guard.run(ctx, file.OwnerID, func(ctx context.Context) error {
		previous, err := r.FindByID(ctx, file.OwnerID, file.ID)
		if err != nil {
			return err
		}
		return writeVerified(ctx,
			func(ctx context.Context) error { return r.setPlacement(ctx, file) },
			folderExists(r.folders, file.OwnerID, file.FolderID),
			func(ctx context.Context) error { return r.setPlacement(ctx, previous) },
		)
	})
}

func (r *FileRepo) setPlacement(ctx context.Context, file *models.File) error {
	result, err := r.files.UpdateOne(ctx, bson.M{
		"_id":      file.ID,
		"owner_id": file.OwnerID,
	}, bson.M{
		"$set": bson.M{
			"original_name": file.OriginalName,
			"folder_id":     file.FolderID,
		},
	})
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FileRepo) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.files.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FileRepo) ListChildren(ctx context.Context, ownerID string, folderID *string, s models.Sort) ([]models.File, error) {
	filter := bson.M{
		"owner_id":  ownerID,
		"folder_id": parentFilter(folderID),
	}
	order := bson.D{
		{Key: fileColumns[s.FileField()], Value: sortOrder(s.Descending())},
		{Key: "_id", Value: 1},
	}

	cursor, err := r.files.Find(ctx, filter, options.Find().SetSort(order))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return files, nil
}

func (r *FileRepo) Search(ctx context.Context, ownerID, query string, limit int) ([]models.File, error) {
	filter := bson.M{
		"owner_id":      ownerID,
		"original_name": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	findOptions := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "original_name", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.files.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return files, nil
}
