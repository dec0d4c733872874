package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// QuotaDecision is the outcome of a reservation. Remaining is the allowance
// left before the reservation, never negative.
type QuotaDecision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
}

type QuotaService struct {
	users repository.UserRepository
}

func NewQuotaService(users repository.UserRepository) *QuotaService {
	return &QuotaService{users: users}
}

// Reserve checks whether additional bytes fit in the owner's quota. It does
// not change the counter; Commit does that once the upload has landed.
func (s *QuotaService) Reserve(ctx context.Context, ownerID string, additional int64) (QuotaDecision, error) {
	if additional < 0 {
		return QuotaDecision{}, BadRequest("reservation size cannot be negative")
	}

	user, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return QuotaDecision{}, NotFound("user not found")
		}
		return QuotaDecision{}, Internal("failed to load user", err)
	}

	remaining := max(user.StorageLimit-user.StorageUsed, 0)
	return QuotaDecision{
		Allowed:   additional <= remaining,
		Remaining: remaining,
	}, nil
}

// Commit applies a signed delta to the owner's storage counter. The store
// clamps the result at zero.
func (s *QuotaService) Commit(ctx context.Context, ownerID string, delta int64) (int64, error) {
	used, err := s.users.AddStorageUsed(ctx, ownerID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, NotFound("user not found")
		}
		return 0, Internal("failed to update storage usage", err)
	}
	return used, nil
}

func (s *QuotaService) Status(ctx context.Context, ownerID string) (*models.QuotaStatus, error) {
	user, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, Internal("failed to load user", err)
	}
	return &models.QuotaStatus{Used: user.StorageUsed, Limit: user.StorageLimit}, nil
}

// Recompute replaces the owner's counter with the sum of their file sizes,
// repairing any drift left by tolerated commit failures. The store sums and
// writes together where it can.
func (s *QuotaService) Recompute(ctx context.Context, ownerID string) (int64, error) {
	total, err := s.users.RecomputeStorageUsed(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, NotFound("user not found")
		}
		return 0, Internal("failed to recompute storage usage", err)
	}
	return total, nil
}

// RecomputeAll runs Recompute for every user. A failing user is logged and
// skipped; the returned count covers the users that were updated.
func (s *QuotaService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := s.Recompute(ctx, id); err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("Quota recompute failed")
			continue
		}
		updated++
	}
	return updated, nil
}
