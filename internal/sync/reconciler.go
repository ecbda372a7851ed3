package sync

import (
	"context"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/store"

	"github.com/rs/zerolog"
)

// LinkReconciler converges the workout/exercise link rows of one workout
// to a desired membership set. It owns the input policy (deterministic
// de-duplication, value clamping); the store runs the actual convergence
// in a single transaction.
type LinkReconciler struct {
	links store.LinkStore
	log   zerolog.Logger
}

// NewLinkReconciler creates a reconciler over the given link store.
func NewLinkReconciler(links store.LinkStore, logger zerolog.Logger) *LinkReconciler {
	return &LinkReconciler{
		links: links,
		log:   logger.With().Str("component", "link_reconciler").Logger(),
	}
}

// Reconcile makes the workout's active links match targets exactly:
// links outside the set are soft-deleted, matching links (including
// previously soft-deleted ones) are updated and revived, missing links
// are created. Rows of other workouts are never touched. Every touched
// row comes out Dirty for the next push.
//
// If the same exercise appears more than once in targets, the last
// occurrence wins. Negative repetitions or weight are floored to zero
// rather than rejected.
func (r *LinkReconciler) Reconcile(ctx context.Context, workoutLocalID string, targets []domain.LinkTarget) error {
	normalized := normalizeTargets(targets)
	if err := r.links.ReconcileWorkout(ctx, workoutLocalID, normalized); err != nil {
		r.log.Error().Err(err).Str("workout", workoutLocalID).Msg("link reconciliation rolled back")
		return err
	}
	r.log.Debug().Str("workout", workoutLocalID).Int("targets", len(normalized)).Msg("links reconciled")
	return nil
}

// normalizeTargets de-duplicates by exercise (last occurrence wins,
// original ordering of first appearance kept) and clamps negative values
// to zero.
func normalizeTargets(targets []domain.LinkTarget) []domain.LinkTarget {
	index := make(map[string]int, len(targets))
	out := make([]domain.LinkTarget, 0, len(targets))
	for _, t := range targets {
		if t.Repetitions < 0 {
			t.Repetitions = 0
		}
		if t.Weight < 0 {
			t.Weight = 0
		}
		if i, ok := index[t.ExerciseLocalID]; ok {
			out[i] = t
			continue
		}
		index[t.ExerciseLocalID] = len(out)
		out = append(out, t)
	}
	return out
}
