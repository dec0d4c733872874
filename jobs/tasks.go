package jobs

import (
	"context"

	"github.com/rs/zerolog/log"
)

type QuotaReconciler interface {
	RecomputeAll(ctx context.Context) (int, error)
}

type ShareSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ReconcileQuota recomputes every user's storage usage from the sizes of
// their files.
func ReconcileQuota(quota QuotaReconciler) Task {
	return func(ctx context.Context) error {
		updated, err := quota.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("users", updated).Msg("Storage usage reconciled")
		return nil
	}
}

// SweepExpiredShares deletes share links whose expiry has passed.
func SweepExpiredShares(shares ShareSweeper) Task {
	return func(ctx context.Context) error {
		removed, err := shares.SweepExpired(ctx)
		if err != nil {
			return err
		}
		log.Info().Int64("removed", removed).Msg("Expired share links swept")
		return nil
	}
}
