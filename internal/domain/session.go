package domain

import "time"

// Session is one logged training session. It may reference the workout
// template it was based on; ad-hoc sessions leave WorkoutLocalID nil.
type Session struct {
	Meta
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description,omitempty"`
	WorkoutLocalID *string   `json:"workoutLocalId,omitempty"`
}

// NewSession creates a Dirty, never-pushed session.
func NewSession(title string, date time.Time, description string, workoutLocalID *string) *Session {
	return &Session{
		Meta:           NewMeta(),
		Title:          title,
		Date:           date.UTC(),
		Description:    description,
		WorkoutLocalID: workoutLocalID,
	}
}

// SessionSet is a single performed set inside a session.
type SessionSet struct {
	Meta
	SessionLocalID  string   `json:"sessionLocalId"`
	ExerciseLocalID string   `json:"exerciseLocalId"`
	SetNumber       int      `json:"setNumber"`
	Reps            int      `json:"reps"`
	Weight          float64  `json:"weight"`
	RPE             *float64 `json:"rpe,omitempty"`
	Note            string   `json:"note,omitempty"`
}

// NewSessionSet creates a Dirty, never-pushed set.
func NewSessionSet(sessionLocalID, exerciseLocalID string, setNumber, reps int, weight float64) *SessionSet {
	return &SessionSet{
		Meta:            NewMeta(),
		SessionLocalID:  sessionLocalID,
		ExerciseLocalID: exerciseLocalID,
		SetNumber:       setNumber,
		Reps:            reps,
		Weight:          weight,
	}
}
