package sync

import (
	"context"
	"testing"

	"alcyxob/fitness-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTargetsLastOccurrenceWins(t *testing.T) {
	got := normalizeTargets([]domain.LinkTarget{
		{ExerciseLocalID: "a", Repetitions: 5, Weight: 100},
		{ExerciseLocalID: "b", Repetitions: 8, Weight: 40},
		{ExerciseLocalID: "a", Repetitions: 3, Weight: 110},
	})

	require.Len(t, got, 2)
	// "a" keeps its first-appearance position but carries the last values.
	assert.Equal(t, "a", got[0].ExerciseLocalID)
	assert.Equal(t, 3, got[0].Repetitions)
	assert.Equal(t, 110.0, got[0].Weight)
	assert.Equal(t, "b", got[1].ExerciseLocalID)
}

func TestNormalizeTargetsClampsNegativeValues(t *testing.T) {
	got := normalizeTargets([]domain.LinkTarget{
		{ExerciseLocalID: "a", Repetitions: -5, Weight: -20},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Repetitions)
	assert.Equal(t, 0.0, got[0].Weight)
}

func TestNormalizeTargetsEmptyInput(t *testing.T) {
	assert.Empty(t, normalizeTargets(nil))
}

func TestReconcileNormalizesBeforeTheStoreWrite(t *testing.T) {
	links := newMemLinkStore()
	r := NewLinkReconciler(links, zerolog.Nop())

	err := r.Reconcile(context.Background(), "w1", []domain.LinkTarget{
		{ExerciseLocalID: "a", Repetitions: 5, Weight: 100},
		{ExerciseLocalID: "a", Repetitions: -2, Weight: 90},
	})
	require.NoError(t, err)

	assert.Equal(t, "w1", links.lastWorkout)
	require.Len(t, links.lastTargets, 1, "duplicates collapse before the transaction")
	assert.Equal(t, 0, links.lastTargets[0].Repetitions, "clamped, not rejected")
	assert.Equal(t, 90.0, links.lastTargets[0].Weight)
}
