package domain

// Exercise is a single exercise definition in the user's library.
type Exercise struct {
	Meta
	Name     string `json:"name"`
	Category string `json:"category,omitempty"` // e.g., "Chest", "Legs", "Back"
	Notes    string `json:"notes,omitempty"`
}

// NewExercise creates a Dirty, never-pushed exercise.
func NewExercise(name, category, notes string) *Exercise {
	return &Exercise{Meta: NewMeta(), Name: name, Category: category, Notes: notes}
}
