package sqlite

import (
	"database/sql"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/store"
)

// NewExerciseStore creates the exercise store.
func NewExerciseStore(db *DB) store.RecordStore[domain.Exercise] {
	return newStore(db, tableSpec[domain.Exercise]{
		table: "exercises",
		cols:  []string{"name", "category", "notes"},
		meta:  func(e *domain.Exercise) *domain.Meta { return &e.Meta },
		vals:  func(e *domain.Exercise) []any { return []any{e.Name, e.Category, e.Notes} },
		scan: func(e *domain.Exercise) ([]any, func() error) {
			return []any{&e.Name, &e.Category, &e.Notes}, nil
		},
	})
}

// NewWorkoutStore creates the workout store.
func NewWorkoutStore(db *DB) store.RecordStore[domain.Workout] {
	return newStore(db, tableSpec[domain.Workout]{
		table: "workouts",
		cols:  []string{"title", "notes"},
		meta:  func(w *domain.Workout) *domain.Meta { return &w.Meta },
		vals:  func(w *domain.Workout) []any { return []any{w.Title, w.Notes} },
		scan: func(w *domain.Workout) ([]any, func() error) {
			return []any{&w.Title, &w.Notes}, nil
		},
	})
}

func linkSpec() tableSpec[domain.WorkoutExerciseLink] {
	return tableSpec[domain.WorkoutExerciseLink]{
		table: "workout_exercises",
		cols:  []string{"workout_local_id", "exercise_local_id", "repetitions", "weight"},
		meta:  func(l *domain.WorkoutExerciseLink) *domain.Meta { return &l.Meta },
		vals: func(l *domain.WorkoutExerciseLink) []any {
			return []any{l.WorkoutLocalID, l.ExerciseLocalID, l.Repetitions, l.Weight}
		},
		scan: func(l *domain.WorkoutExerciseLink) ([]any, func() error) {
			return []any{&l.WorkoutLocalID, &l.ExerciseLocalID, &l.Repetitions, &l.Weight}, nil
		},
	}
}

// NewSessionStore creates the session store.
func NewSessionStore(db *DB) store.RecordStore[domain.Session] {
	return newStore(db, tableSpec[domain.Session]{
		table: "sessions",
		cols:  []string{"title", "date", "description", "workout_local_id"},
		meta:  func(s *domain.Session) *domain.Meta { return &s.Meta },
		vals: func(s *domain.Session) []any {
			var workout any
			if s.WorkoutLocalID != nil {
				workout = *s.WorkoutLocalID
			}
			return []any{s.Title, fmtTime(s.Date), s.Description, workout}
		},
		scan: func(s *domain.Session) ([]any, func() error) {
			var date string
			var workout sql.NullString
			dest := []any{&s.Title, &date, &s.Description, &workout}
			return dest, func() error {
				t, err := parseTime(date)
				if err != nil {
					return err
				}
				s.Date = t
				if workout.Valid {
					s.WorkoutLocalID = &workout.String
				}
				return nil
			}
		},
	})
}

// NewSessionSetStore creates the session set store.
func NewSessionSetStore(db *DB) store.RecordStore[domain.SessionSet] {
	return newStore(db, tableSpec[domain.SessionSet]{
		table: "session_sets",
		cols:  []string{"session_local_id", "exercise_local_id", "set_number", "reps", "weight", "rpe", "note"},
		meta:  func(s *domain.SessionSet) *domain.Meta { return &s.Meta },
		vals: func(s *domain.SessionSet) []any {
			var rpe any
			if s.RPE != nil {
				rpe = *s.RPE
			}
			return []any{s.SessionLocalID, s.ExerciseLocalID, s.SetNumber, s.Reps, s.Weight, rpe, s.Note}
		},
		scan: func(s *domain.SessionSet) ([]any, func() error) {
			var rpe sql.NullFloat64
			dest := []any{&s.SessionLocalID, &s.ExerciseLocalID, &s.SetNumber, &s.Reps, &s.Weight, &rpe, &s.Note}
			return dest, func() error {
				if rpe.Valid {
					s.RPE = &rpe.Float64
				}
				return nil
			}
		},
	})
}
