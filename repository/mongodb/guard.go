package mongodb

import (
	"cloudnest/repository"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxAncestry bounds the parent walk of a move; a longer chain can only be
// a corrupt tree.
const maxAncestry = 1024

// treeGuard serializes the tree writes of one owner. With transactions on,
// every guarded write runs in a transaction that first bumps the owner's
// document in the lock collection, so two of them touching the same tree
// always conflict and one is retried against the other's result. Without
// transactions the callers fall back to write-then-verify.
type treeGuard struct {
	locks        *mongo.Collection
	transactions bool
}

func (g *treeGuard) run(ctx context.Context, ownerID string, fn func(ctx context.Context) error) error {
	if g == nil || !g.transactions {
		return fn(ctx)
	}

	session, err := g.locks.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		_, err := g.locks.UpdateOne(sessCtx,
			bson.M{"_id": ownerID},
			bson.M{"$inc": bson.M{"version": 1}},
			options.Update().SetUpsert(true))
		if err != nil {
			return nil, fmt.Errorf("failed to lock folder tree: %w", err)
		}
		return nil, fn(sessCtx)
	})
	return err
}

// writeVerified applies write, then runs verify against the stored state.
// A concurrent writer may have changed the tree between the caller's checks
// and the write; if verify fails the write is undone and verify's error
// returned.
func writeVerified(ctx context.Context, write, verify, undo func(ctx context.Context) error) error {
	if err := write(ctx); err != nil {
		return err
	}
	if err := verify(ctx); err != nil {
		if undoErr := undo(ctx); undoErr != nil {
			log.Error().Err(undoErr).Msg("Failed to undo folder tree write")
		}
		return err
	}
	return nil
}

// removeIfEmpty deletes a folder with no children and counts again after the
// delete. A child placed in between means the folder is restored and
// ErrNotEmpty returned; a child whose own verify runs in that gap undoes
// itself instead.
func removeIfEmpty(ctx context.Context, count func(ctx context.Context) (int64, error), remove, restore func(ctx context.Context) error) error {
	children, err := count(ctx)
	if err != nil {
		return err
	}
	if children > 0 {
		return repository.ErrNotEmpty
	}

	if err := remove(ctx); err != nil {
		return err
	}

	children, err = count(ctx)
	if err != nil {
		return err
	}
	if children > 0 {
		if err := restore(ctx); err != nil {
			return fmt.Errorf("failed to restore folder with new children: %w", err)
		}
		return repository.ErrNotEmpty
	}
	return nil
}

// checkAncestry walks up from parentID and fails with ErrCycle if it reaches
// id, or ErrNotFound if a folder on the way is missing.
func checkAncestry(ctx context.Context, id string, parentID *string, parentOf func(ctx context.Context, id string) (*string, error)) error {
	current := parentID
	for depth := 0; current != nil; depth++ {
		if *current == id || depth >= maxAncestry {
			return repository.ErrCycle
		}
		next, err := parentOf(ctx, *current)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// folderExists reports ErrNotFound unless id is nil (root) or names a folder
// of ownerID.
func folderExists(folders *mongo.Collection, ownerID string, id *string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if id == nil {
			return nil
		}
		n, err := folders.CountDocuments(ctx, bson.M{"_id": *id, "owner_id": ownerID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("failed to look up folder: %w", err)
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	}
}

// isNamespaceExists matches the error CreateCollection returns for an
// existing collection.
func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == 48
}
