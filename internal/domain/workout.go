package domain

// Workout is a reusable workout template. Exercises are attached through
// WorkoutExerciseLink rows rather than embedded, so the same exercise can
// appear in many workouts with different targets.
type Workout struct {
	Meta
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

// NewWorkout creates a Dirty, never-pushed workout.
func NewWorkout(title, notes string) *Workout {
	return &Workout{Meta: NewMeta(), Title: title, Notes: notes}
}
