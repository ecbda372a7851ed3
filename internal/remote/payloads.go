package remote

import "time"

// Wire payloads exchanged with the remote service. Each carries the
// server-assigned integer identifier plus the entity's business fields;
// references between entities are expressed in remote ids.

// Item is satisfied by every wire payload.
type Item interface {
	ItemID() int64
}

type Exercise struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (e Exercise) ItemID() int64 { return e.ID }

type Workout struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

func (w Workout) ItemID() int64 { return w.ID }

type WorkoutExercise struct {
	ID          int64   `json:"id,omitempty"`
	WorkoutID   int64   `json:"workoutId"`
	ExerciseID  int64   `json:"exerciseId"`
	Repetitions int     `json:"repetitions"`
	Weight      float64 `json:"weight"`
}

func (l WorkoutExercise) ItemID() int64 { return l.ID }

type Session struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	WorkoutID   *int64    `json:"workoutId,omitempty"`
}

func (s Session) ItemID() int64 { return s.ID }

type SessionSet struct {
	ID         int64    `json:"id,omitempty"`
	SessionID  int64    `json:"sessionId"`
	ExerciseID int64    `json:"exerciseId"`
	SetNumber  int      `json:"setNumber"`
	Reps       int      `json:"reps"`
	Weight     float64  `json:"weight"`
	RPE        *float64 `json:"rpe,omitempty"`
	Note       string   `json:"note,omitempty"`
}

func (s SessionSet) ItemID() int64 { return s.ID }
