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

type FolderRepo struct {
	folders *mongo.Collection
	files   *mongo.Collection
	guard   *treeGuard
}

var folderColumns = map[models.SortField]string{
	models.FieldName:      "name",
	models.FieldUpdatedAt: "updated_at",
}

// Create inserts the folder and then confirms its parent still exists, so a
// parent deleted concurrently never ends up with an orphan below it.
func (r *FolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	return r.guard.run(ctx, folder.OwnerID, func(ctx context.Context) error {
		return writeVerified(ctx,
			func(ctx context.Context) error {
				_, err := r.folders.InsertOne(ctx, folder)
				return translate(err)
			},
			folderExists(r.folders, folder.OwnerID, folder.ParentID),
			func(ctx context.Context) error {
				_, err := r.folders.DeleteOne(ctx, bson.M{"_id": folder.ID})
				return err
			},
		)
	})
}

func (r *FolderRepo) FindByID(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	var folder models.Folder
	err := r.folders.FindOne(ctx, bson.M{
		"_id":      id,
		"owner_id": ownerID,
	}).Decode(&folder)
	if err != nil {
		return nil, translate(err)
	}
	return &folder, nil
}

func (r *FolderRepo) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	var folder models.Folder
	err := r.folders.FindOne(ctx, bson.M{
		"owner_id":  ownerID,
		"parent_id": parentFilter(parentID),
		"name":      name,
	}).Decode(&folder)
	if err != nil {
		return nil, translate(err)
	}
	return &folder, nil
}

func (r *FolderRepo) Move(ctx context.Context, folder *models.Folder) error {
	return r.guard.run(ctx, folder.OwnerID, func(ctx context.Context) error {
		previous, err := r.FindByID(ctx, folder.OwnerID, folder.ID)
		if err != nil {
			return err
		}

		acyclic := func(ctx context.Context) error {
			return checkAncestry(ctx, folder.ID, folder.ParentID, r.parentOf(folder.OwnerID))
		}
		if err := acyclic(ctx); err != nil {
			return err
		}

		// a concurrent move may close a loop after the check above; the
		// second check sees both writes and the later one backs out
		return writeVerified(ctx,
			func(ctx context.Context) error { return r.setPlacement(ctx, folder) },
			acyclic,
			func(ctx context.Context) error { return r.setPlacement(ctx, previous) },
		)
	})
}

func (r *FolderRepo) parentOf(ownerID string) func(ctx context.Context, id string) (*string, error) {
	return func(ctx context.Context, id string) (*string, error) {
		folder, err := r.FindByID(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		return folder.ParentID, nil
	}
}

func (r *FolderRepo) setPlacement(ctx context.Context, folder *models.Folder) error {
	result, err := r.folders.UpdateOne(ctx, bson.M{
		"_id":      folder.ID,
		"owner_id": folder.OwnerID,
	}, bson.M{
		"$set": bson.M{
			"name":       folder.Name,
			"parent_id":  folder.ParentID,
			"updated_at": folder.UpdatedAt,
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

func (r *FolderRepo) DeleteIfEmpty(ctx context.Context, ownerID, id string) error {
	return r.guard.run(ctx, ownerID, func(ctx context.Context) error {
		folder, err := r.FindByID(ctx, ownerID, id)
		if err != nil {
			return err
		}

		return removeIfEmpty(ctx,
			func(ctx context.Context) (int64, error) {
				files, folders, err := r.countChildren(ctx, id)
				return files + folders, err
			},
			func(ctx context.Context) error {
				result, err := r.folders.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
				if err != nil {
					return fmt.Errorf("failed to delete folder: %w", err)
				}
				if result.DeletedCount == 0 {
					return repository.ErrNotFound
				}
				return nil
			},
			func(ctx context.Context) error {
				_, err := r.folders.InsertOne(ctx, folder)
				return translate(err)
			},
		)
	})
}

func (r *FolderRepo) countChildren(ctx context.Context, id string) (int64, int64, error) {
	fileCount, err := r.files.CountDocuments(ctx, bson.M{"folder_id": id})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count files: %w", err)
	}
	subfolderCount, err := r.folders.CountDocuments(ctx, bson.M{"parent_id": id})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subfolders: %w", err)
	}
	return fileCount, subfolderCount, nil
}

func (r *FolderRepo) CountChildren(ctx context.Context, ownerID, id string) (int64, int64, error) {
	if _, err := r.FindByID(ctx, ownerID, id); err != nil {
		return 0, 0, err
	}
	return r.countChildren(ctx, id)
}

func (r *FolderRepo) ListChildren(ctx context.Context, ownerID string, parentID *string, s models.Sort) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id":  ownerID,
		"parent_id": parentFilter(parentID),
	}
	order := bson.D{
		{Key: folderColumns[s.FolderField()], Value: sortOrder(s.Descending())},
		{Key: "_id", Value: 1},
	}

	cursor, err := r.folders.Find(ctx, filter, options.Find().SetSort(order))
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer cursor.Close(ctx)

	folders := []models.Folder{}
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("failed to decode folders: %w", err)
	}
	return folders, nil
}

func (r *FolderRepo) Search(ctx context.Context, ownerID, query string, limit int) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id": ownerID,
		"name":     primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	findOptions := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.folders.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to search folders: %w", err)
	}
	defer cursor.Close(ctx)

	folders := []models.Folder{}
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("failed to decode folders: %w", err)
	}
	return folders, nil
}
