package domain

// WorkoutExerciseLink connects an Exercise to a Workout together with the
// prescribed repetitions and weight. Uniqueness on
// (WorkoutLocalID, ExerciseLocalID) holds over non-deleted rows only; a
// prior soft-deleted link never blocks recreation.
type WorkoutExerciseLink struct {
	Meta
	WorkoutLocalID  string  `json:"workoutLocalId"`
	ExerciseLocalID string  `json:"exerciseLocalId"`
	Repetitions     int     `json:"repetitions"`
	Weight          float64 `json:"weight"`
}

// NewWorkoutExerciseLink creates a Dirty, never-pushed link row.
func NewWorkoutExerciseLink(workoutLocalID, exerciseLocalID string, repetitions int, weight float64) *WorkoutExerciseLink {
	return &WorkoutExerciseLink{
		Meta:            NewMeta(),
		WorkoutLocalID:  workoutLocalID,
		ExerciseLocalID: exerciseLocalID,
		Repetitions:     repetitions,
		Weight:          weight,
	}
}

// LinkTarget is one desired membership tuple for a workout, consumed by
// the link reconciler.
type LinkTarget struct {
	ExerciseLocalID string  `json:"exerciseLocalId"`
	Repetitions     int     `json:"repetitions"`
	Weight          float64 `json:"weight"`
}
