package sqlite

import (
	"context"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/store"

	"github.com/google/uuid"
)

// LinkStore extends the generic store with the workout/exercise
// relation's queries and the set-convergence transaction.
type LinkStore struct {
	*Store[domain.WorkoutExerciseLink]
}

// NewLinkStore creates the workout/exercise link store.
func NewLinkStore(db *DB) *LinkStore {
	return &LinkStore{Store: newStore(db, linkSpec())}
}

var _ store.LinkStore = (*LinkStore)(nil)

// ListByWorkout returns the link rows of one workout, oldest first so
// set order within a workout is stable.
func (s *LinkStore) ListByWorkout(ctx context.Context, workoutLocalID string, includeDeleted bool) ([]domain.WorkoutExerciseLink, error) {
	where := "workout_local_id = ?"
	if !includeDeleted {
		where += " AND is_deleted = 0"
	}
	links, err := s.queryMany(ctx, "workout_exercises.list_by_workout", where, workoutLocalID)
	if err != nil {
		return nil, err
	}
	// queryMany sorts newest first; reverse for insertion order.
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
	return links, nil
}

// ReconcileWorkout converges the link rows of workoutLocalID to the
// target set inside one transaction:
//
//  1. existing rows (active or soft-deleted) are loaded,
//  2. active rows whose exercise is not targeted are soft-deleted,
//  3. targeted exercises with an existing row get repetitions/weight
//     updated and is_deleted cleared,
//  4. targeted exercises without a row get a fresh one inserted.
//
// Every touched row is forced Dirty. On any failure the transaction is
// rolled back and a *store.StorageError reports the classification.
//
// Targets are applied as given: callers normalize duplicates and clamp
// values first (see the sync package's LinkReconciler).
func (s *LinkStore) ReconcileWorkout(ctx context.Context, workoutLocalID string, targets []domain.LinkTarget) error {
	const op = "workout_exercises.reconcile"

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT local_id, exercise_local_id, is_deleted FROM workout_exercises WHERE workout_local_id = ?",
		workoutLocalID)
	if err != nil {
		return classify(op, err)
	}

	type existing struct {
		localID string
		deleted bool
	}
	byExercise := make(map[string]existing)
	for rows.Next() {
		var e existing
		var exerciseID string
		var deleted int
		if err := rows.Scan(&e.localID, &exerciseID, &deleted); err != nil {
			rows.Close()
			return classify(op, err)
		}
		e.deleted = deleted != 0
		// Prefer the active row if the pair somehow has several.
		if prev, ok := byExercise[exerciseID]; !ok || prev.deleted {
			byExercise[exerciseID] = e
		}
	}
	if err := rows.Close(); err != nil {
		return classify(op, err)
	}

	targeted := make(map[string]bool, len(targets))
	for _, t := range targets {
		targeted[t.ExerciseLocalID] = true
	}

	now := fmtTime(time.Now().UTC())
	dirty := string(domain.StateDirty)

	// Soft-delete active rows that fell out of the target set.
	for exerciseID, e := range byExercise {
		if targeted[exerciseID] || e.deleted {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE workout_exercises SET is_deleted = 1, sync_state = ?, last_modified = ? WHERE local_id = ?",
			dirty, now, e.localID); err != nil {
			return classify(op, err)
		}
	}

	// Upsert each target: revive and update a matching row, else insert.
	for _, t := range targets {
		if e, ok := byExercise[t.ExerciseLocalID]; ok {
			if _, err := tx.ExecContext(ctx,
				"UPDATE workout_exercises SET repetitions = ?, weight = ?, is_deleted = 0, sync_state = ?, last_modified = ? WHERE local_id = ?",
				t.Repetitions, t.Weight, dirty, now, e.localID); err != nil {
				return classify(op, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO workout_exercises (local_id, remote_id, is_deleted, sync_state, last_modified, last_synced, workout_local_id, exercise_local_id, repetitions, weight) VALUES (?, NULL, 0, ?, ?, NULL, ?, ?, ?, ?)",
			uuid.NewString(), dirty, now, workoutLocalID, t.ExerciseLocalID, t.Repetitions, t.Weight); err != nil {
			return classify(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}
