package sync

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newLocalID() string { return uuid.NewString() }

// Stores bundles the per-entity local stores the engine works against.
type Stores struct {
	Exercises store.RecordStore[domain.Exercise]
	Workouts  store.RecordStore[domain.Workout]
	Links     store.LinkStore
	Sessions  store.RecordStore[domain.Session]
	Sets      store.RecordStore[domain.SessionSet]
}

// Clients bundles the per-entity remote clients.
type Clients struct {
	Exercises API[remote.Exercise]
	Workouts  API[remote.Workout]
	Links     API[remote.WorkoutExercise]
	Sessions  API[remote.Session]
	Sets      API[remote.SessionSet]
}

// NewEngine wires the five entity bindings in dependency order:
// exercises and workouts first, then the links, sessions and sets that
// reference them.
func NewEngine(stores Stores, clients Clients, logger zerolog.Logger) *Engine {
	log := logger.With().Str("component", "engine").Logger()

	exercises := &binding[domain.Exercise, remote.Exercise]{
		entity: "exercise",
		store:  stores.Exercises,
		client: clients.Exercises,
		log:    log,
		codec: codec[domain.Exercise, remote.Exercise]{
			toPayload: func(_ context.Context, e *domain.Exercise) (remote.Exercise, error) {
				return remote.Exercise{ID: remoteIDOrZero(&e.Meta), Name: e.Name, Category: e.Category, Notes: e.Notes}, nil
			},
			applyRemote: func(_ context.Context, e *domain.Exercise, item remote.Exercise) error {
				e.Name, e.Category, e.Notes = item.Name, item.Category, item.Notes
				return nil
			},
			fromRemote: func(_ context.Context, item remote.Exercise) (*domain.Exercise, error) {
				return &domain.Exercise{Meta: syncedMeta(item.ID), Name: item.Name, Category: item.Category, Notes: item.Notes}, nil
			},
		},
	}

	workouts := &binding[domain.Workout, remote.Workout]{
		entity: "workout",
		store:  stores.Workouts,
		client: clients.Workouts,
		log:    log,
		codec: codec[domain.Workout, remote.Workout]{
			toPayload: func(_ context.Context, w *domain.Workout) (remote.Workout, error) {
				return remote.Workout{ID: remoteIDOrZero(&w.Meta), Title: w.Title, Notes: w.Notes}, nil
			},
			applyRemote: func(_ context.Context, w *domain.Workout, item remote.Workout) error {
				w.Title, w.Notes = item.Title, item.Notes
				return nil
			},
			fromRemote: func(_ context.Context, item remote.Workout) (*domain.Workout, error) {
				return &domain.Workout{Meta: syncedMeta(item.ID), Title: item.Title, Notes: item.Notes}, nil
			},
		},
	}

	links := &binding[domain.WorkoutExerciseLink, remote.WorkoutExercise]{
		entity: "workout_exercise",
		store:  stores.Links,
		client: clients.Links,
		log:    log,
		codec: codec[domain.WorkoutExerciseLink, remote.WorkoutExercise]{
			toPayload: func(ctx context.Context, l *domain.WorkoutExerciseLink) (remote.WorkoutExercise, error) {
				workoutID, err := remoteIDOf(ctx, stores.Workouts, l.WorkoutLocalID, "workout")
				if err != nil {
					return remote.WorkoutExercise{}, err
				}
				exerciseID, err := remoteIDOf(ctx, stores.Exercises, l.ExerciseLocalID, "exercise")
				if err != nil {
					return remote.WorkoutExercise{}, err
				}
				return remote.WorkoutExercise{
					ID:          remoteIDOrZero(&l.Meta),
					WorkoutID:   workoutID,
					ExerciseID:  exerciseID,
					Repetitions: l.Repetitions,
					Weight:      l.Weight,
				}, nil
			},
			applyRemote: func(ctx context.Context, l *domain.WorkoutExerciseLink, item remote.WorkoutExercise) error {
				workout, err := stores.Workouts.FindByRemoteID(ctx, item.WorkoutID)
				if err != nil {
					return fmt.Errorf("link workout %d: %w", item.WorkoutID, err)
				}
				exercise, err := stores.Exercises.FindByRemoteID(ctx, item.ExerciseID)
				if err != nil {
					return fmt.Errorf("link exercise %d: %w", item.ExerciseID, err)
				}
				l.WorkoutLocalID = workout.LocalID
				l.ExerciseLocalID = exercise.LocalID
				l.Repetitions = item.Repetitions
				l.Weight = item.Weight
				return nil
			},
			fromRemote: func(ctx context.Context, item remote.WorkoutExercise) (*domain.WorkoutExerciseLink, error) {
				workout, err := stores.Workouts.FindByRemoteID(ctx, item.WorkoutID)
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil // parent not merged yet; next cycle
				}
				if err != nil {
					return nil, err
				}
				exercise, err := stores.Exercises.FindByRemoteID(ctx, item.ExerciseID)
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return &domain.WorkoutExerciseLink{
					Meta:            syncedMeta(item.ID),
					WorkoutLocalID:  workout.LocalID,
					ExerciseLocalID: exercise.LocalID,
					Repetitions:     item.Repetitions,
					Weight:          item.Weight,
				}, nil
			},
		},
	}

	sessions := &binding[domain.Session, remote.Session]{
		entity: "session",
		store:  stores.Sessions,
		client: clients.Sessions,
		log:    log,
		codec: codec[domain.Session, remote.Session]{
			toPayload: func(ctx context.Context, s *domain.Session) (remote.Session, error) {
				payload := remote.Session{
					ID:          remoteIDOrZero(&s.Meta),
					Title:       s.Title,
					Date:        s.Date,
					Description: s.Description,
				}
				if s.WorkoutLocalID != nil {
					workoutID, err := remoteIDOf(ctx, stores.Workouts, *s.WorkoutLocalID, "workout")
					if err != nil {
						return remote.Session{}, err
					}
					payload.WorkoutID = &workoutID
				}
				return payload, nil
			},
			applyRemote: func(ctx context.Context, s *domain.Session, item remote.Session) error {
				s.Title, s.Date, s.Description = item.Title, item.Date.UTC(), item.Description
				s.WorkoutLocalID = resolveOptionalWorkout(ctx, stores.Workouts, item.WorkoutID)
				return nil
			},
			fromRemote: func(ctx context.Context, item remote.Session) (*domain.Session, error) {
				return &domain.Session{
					Meta:           syncedMeta(item.ID),
					Title:          item.Title,
					Date:           item.Date.UTC(),
					Description:    item.Description,
					WorkoutLocalID: resolveOptionalWorkout(ctx, stores.Workouts, item.WorkoutID),
				}, nil
			},
		},
	}

	sets := &binding[domain.SessionSet, remote.SessionSet]{
		entity: "session_set",
		store:  stores.Sets,
		client: clients.Sets,
		log:    log,
		codec: codec[domain.SessionSet, remote.SessionSet]{
			toPayload: func(ctx context.Context, s *domain.SessionSet) (remote.SessionSet, error) {
				sessionID, err := remoteIDOf(ctx, stores.Sessions, s.SessionLocalID, "session")
				if err != nil {
					return remote.SessionSet{}, err
				}
				exerciseID, err := remoteIDOf(ctx, stores.Exercises, s.ExerciseLocalID, "exercise")
				if err != nil {
					return remote.SessionSet{}, err
				}
				return remote.SessionSet{
					ID:         remoteIDOrZero(&s.Meta),
					SessionID:  sessionID,
					ExerciseID: exerciseID,
					SetNumber:  s.SetNumber,
					Reps:       s.Reps,
					Weight:     s.Weight,
					RPE:        s.RPE,
					Note:       s.Note,
				}, nil
			},
			applyRemote: func(ctx context.Context, s *domain.SessionSet, item remote.SessionSet) error {
				session, err := stores.Sessions.FindByRemoteID(ctx, item.SessionID)
				if err != nil {
					return fmt.Errorf("set session %d: %w", item.SessionID, err)
				}
				exercise, err := stores.Exercises.FindByRemoteID(ctx, item.ExerciseID)
				if err != nil {
					return fmt.Errorf("set exercise %d: %w", item.ExerciseID, err)
				}
				s.SessionLocalID = session.LocalID
				s.ExerciseLocalID = exercise.LocalID
				s.SetNumber, s.Reps, s.Weight = item.SetNumber, item.Reps, item.Weight
				s.RPE, s.Note = item.RPE, item.Note
				return nil
			},
			fromRemote: func(ctx context.Context, item remote.SessionSet) (*domain.SessionSet, error) {
				session, err := stores.Sessions.FindByRemoteID(ctx, item.SessionID)
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				exercise, err := stores.Exercises.FindByRemoteID(ctx, item.ExerciseID)
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return &domain.SessionSet{
					Meta:            syncedMeta(item.ID),
					SessionLocalID:  session.LocalID,
					ExerciseLocalID: exercise.LocalID,
					SetNumber:       item.SetNumber,
					Reps:            item.Reps,
					Weight:          item.Weight,
					RPE:             item.RPE,
					Note:            item.Note,
				}, nil
			},
		},
	}

	return &Engine{
		syncers: []entitySyncer{exercises, workouts, links, sessions, sets},
		log:     log,
	}
}

func remoteIDOrZero(m *domain.Meta) int64 {
	if m.RemoteID == nil {
		return 0
	}
	return *m.RemoteID
}

// remoteIDOf resolves a parent record's remote id, or defers the push
// with errParentNotPushed when the parent has not been created remotely.
func remoteIDOf[T any](ctx context.Context, s store.RecordStore[T], localID, kind string) (int64, error) {
	parent, err := s.Get(ctx, localID)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", kind, localID, err)
	}
	m := metaOf(parent)
	if m.RemoteID == nil {
		return 0, fmt.Errorf("%s %s: %w", kind, localID, errParentNotPushed)
	}
	return *m.RemoteID, nil
}

// resolveOptionalWorkout maps a remote workout reference to a local id,
// degrading to nil when the reference is absent or not merged yet: a
// session is still useful without its template link.
func resolveOptionalWorkout(ctx context.Context, workouts store.RecordStore[domain.Workout], remoteID *int64) *string {
	if remoteID == nil {
		return nil
	}
	workout, err := workouts.FindByRemoteID(ctx, *remoteID)
	if err != nil {
		return nil
	}
	id := workout.LocalID
	return &id
}
