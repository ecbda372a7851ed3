package sync

import (
	"context"
	"errors"
	"testing"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory store fake ---

type memStore[T any] struct {
	recs map[string]T
}

func newMemStore[T any]() *memStore[T] {
	return &memStore[T]{recs: map[string]T{}}
}

func (s *memStore[T]) Get(_ context.Context, localID string) (*T, error) {
	rec, ok := s.recs[localID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *memStore[T]) FindByRemoteID(_ context.Context, remoteID int64) (*T, error) {
	for _, rec := range s.recs {
		cp := rec
		if m := metaOf(&cp); m.RemoteID != nil && *m.RemoteID == remoteID {
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore[T]) list(filter func(*domain.Meta) bool) []T {
	var out []T
	for _, rec := range s.recs {
		cp := rec
		if filter(metaOf(&cp)) {
			out = append(out, cp)
		}
	}
	return out
}

func (s *memStore[T]) ListActive(context.Context) ([]T, error) {
	return s.list(func(m *domain.Meta) bool { return !m.IsDeleted }), nil
}

func (s *memStore[T]) ListDirty(context.Context) ([]T, error) {
	return s.list(func(m *domain.Meta) bool { return m.SyncState == domain.StateDirty }), nil
}

func (s *memStore[T]) ListWithRemoteID(context.Context) ([]T, error) {
	return s.list(func(m *domain.Meta) bool { return m.RemoteID != nil }), nil
}

func (s *memStore[T]) Upsert(_ context.Context, rec *T) error {
	m := metaOf(rec)
	// Same contract as the real store: an edit never detaches the row
	// from its server identity.
	if prev, ok := s.recs[m.LocalID]; ok {
		pm := metaOf(&prev)
		if m.RemoteID == nil {
			m.RemoteID = pm.RemoteID
		}
		if m.LastSynced == nil {
			m.LastSynced = pm.LastSynced
		}
	}
	m.Touch()
	s.recs[m.LocalID] = *rec
	return nil
}

func (s *memStore[T]) Replace(_ context.Context, rec *T) error {
	s.recs[metaOf(rec).LocalID] = *rec
	return nil
}

func (s *memStore[T]) SoftDelete(_ context.Context, localID string) error {
	rec, ok := s.recs[localID]
	if !ok {
		return store.ErrNotFound
	}
	m := metaOf(&rec)
	m.IsDeleted = true
	m.Touch()
	s.recs[localID] = rec
	return nil
}

func (s *memStore[T]) MarkSynced(_ context.Context, localID string, remoteID *int64) error {
	rec, ok := s.recs[localID]
	if !ok {
		return store.ErrNotFound
	}
	m := metaOf(&rec)
	m.MarkSynced(remoteID)
	s.recs[localID] = rec
	return nil
}

func (s *memStore[T]) HardDelete(_ context.Context, localID string) error {
	delete(s.recs, localID)
	return nil
}

type memLinkStore struct {
	*memStore[domain.WorkoutExerciseLink]
	lastWorkout string
	lastTargets []domain.LinkTarget
}

func newMemLinkStore() *memLinkStore {
	return &memLinkStore{memStore: newMemStore[domain.WorkoutExerciseLink]()}
}

func (s *memLinkStore) ListByWorkout(_ context.Context, workoutLocalID string, includeDeleted bool) ([]domain.WorkoutExerciseLink, error) {
	var out []domain.WorkoutExerciseLink
	for _, l := range s.recs {
		if l.WorkoutLocalID == workoutLocalID && (includeDeleted || !l.IsDeleted) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memLinkStore) ReconcileWorkout(ctx context.Context, workoutLocalID string, targets []domain.LinkTarget) error {
	s.lastWorkout = workoutLocalID
	s.lastTargets = targets
	targeted := map[string]domain.LinkTarget{}
	for _, t := range targets {
		targeted[t.ExerciseLocalID] = t
	}
	for id, l := range s.recs {
		if l.WorkoutLocalID != workoutLocalID {
			continue
		}
		t, ok := targeted[l.ExerciseLocalID]
		if !ok {
			if !l.IsDeleted {
				l.IsDeleted = true
				l.Touch()
				s.recs[id] = l
			}
			continue
		}
		l.Repetitions, l.Weight, l.IsDeleted = t.Repetitions, t.Weight, false
		l.Touch()
		s.recs[id] = l
		delete(targeted, l.ExerciseLocalID)
	}
	for _, t := range targeted {
		link := domain.NewWorkoutExerciseLink(workoutLocalID, t.ExerciseLocalID, t.Repetitions, t.Weight)
		s.recs[link.LocalID] = *link
	}
	return nil
}

// --- fake remote client: behaves as a tiny in-memory server ---

type fakeClient[P remote.Item] struct {
	withID func(P, int64) P

	items  []P
	nextID int64

	creates []P
	updates map[int64]P
	deletes []int64

	createErr func(P) error
	updateErr func(int64) error
	deleteErr func(int64) error
	listErr   error
}

func newFakeClient[P remote.Item](withID func(P, int64) P) *fakeClient[P] {
	return &fakeClient[P]{withID: withID, updates: map[int64]P{}}
}

func (f *fakeClient[P]) List(context.Context) ([]P, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]P(nil), f.items...), nil
}

func (f *fakeClient[P]) Create(_ context.Context, payload P) (P, error) {
	if f.createErr != nil {
		if err := f.createErr(payload); err != nil {
			var zero P
			return zero, err
		}
	}
	f.nextID++
	created := f.withID(payload, f.nextID)
	f.creates = append(f.creates, created)
	f.items = append(f.items, created)
	return created, nil
}

func (f *fakeClient[P]) Update(_ context.Context, id int64, payload P) error {
	if f.updateErr != nil {
		if err := f.updateErr(id); err != nil {
			return err
		}
	}
	updated := f.withID(payload, id)
	f.updates[id] = updated
	for i, item := range f.items {
		if item.ItemID() == id {
			f.items[i] = updated
		}
	}
	return nil
}

func (f *fakeClient[P]) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		if err := f.deleteErr(id); err != nil {
			return err
		}
	}
	f.deletes = append(f.deletes, id)
	kept := f.items[:0]
	for _, item := range f.items {
		if item.ItemID() != id {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return nil
}

// --- environment ---

type env struct {
	exercises *memStore[domain.Exercise]
	workouts  *memStore[domain.Workout]
	links     *memLinkStore
	sessions  *memStore[domain.Session]
	sets      *memStore[domain.SessionSet]

	exClient      *fakeClient[remote.Exercise]
	workoutClient *fakeClient[remote.Workout]
	linkClient    *fakeClient[remote.WorkoutExercise]
	sessionClient *fakeClient[remote.Session]
	setClient     *fakeClient[remote.SessionSet]

	engine *Engine
}

func newEnv() *env {
	e := &env{
		exercises: newMemStore[domain.Exercise](),
		workouts:  newMemStore[domain.Workout](),
		links:     newMemLinkStore(),
		sessions:  newMemStore[domain.Session](),
		sets:      newMemStore[domain.SessionSet](),
		exClient: newFakeClient(func(p remote.Exercise, id int64) remote.Exercise {
			p.ID = id
			return p
		}),
		workoutClient: newFakeClient(func(p remote.Workout, id int64) remote.Workout {
			p.ID = id
			return p
		}),
		linkClient: newFakeClient(func(p remote.WorkoutExercise, id int64) remote.WorkoutExercise {
			p.ID = id
			return p
		}),
		sessionClient: newFakeClient(func(p remote.Session, id int64) remote.Session {
			p.ID = id
			return p
		}),
		setClient: newFakeClient(func(p remote.SessionSet, id int64) remote.SessionSet {
			p.ID = id
			return p
		}),
	}
	stores := Stores{
		Exercises: e.exercises,
		Workouts:  e.workouts,
		Links:     e.links,
		Sessions:  e.sessions,
		Sets:      e.sets,
	}
	clients := Clients{
		Exercises: e.exClient,
		Workouts:  e.workoutClient,
		Links:     e.linkClient,
		Sessions:  e.sessionClient,
		Sets:      e.setClient,
	}
	e.engine = NewEngine(stores, clients, zerolog.Nop())
	return e
}

var errTransient = errors.New("connection reset")

// --- tests ---

func TestOfflineCreateIsPushedOnceAndNotDuplicated(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	ex := domain.NewExercise("Squat", "Legs", "")
	require.NoError(t, e.exercises.Upsert(ctx, ex))

	require.NoError(t, e.engine.Run(ctx))

	require.Len(t, e.exClient.creates, 1, "exactly one remote create")
	got, err := e.exercises.Get(ctx, ex.LocalID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, domain.StateSynced, got.SyncState)
	assert.Equal(t, "Squat", got.Name)

	// The pull ran right after the push within the same cycle; the fresh
	// snapshot contains the created item and must not be merged as new.
	active, err := e.exercises.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	// A second full cycle must not create again either.
	require.NoError(t, e.engine.Run(ctx))
	assert.Len(t, e.exClient.creates, 1)
}

func TestMergeNeverClobbersDirtyRecord(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	ex := domain.NewExercise("Bench", "Chest", "")
	require.NoError(t, e.exercises.Upsert(ctx, ex))
	remoteID := int64(7)
	require.NoError(t, e.exercises.MarkSynced(ctx, ex.LocalID, &remoteID))
	// Local edit after the last sync.
	ex.Name = "Bench"
	require.NoError(t, e.exercises.Upsert(ctx, ex))

	// The server knows the same record under a different name, and the
	// push cannot get through this cycle.
	e.exClient.items = []remote.Exercise{{ID: 7, Name: "Bench Press", Category: "Chest"}}
	e.exClient.updateErr = func(int64) error { return errTransient }

	err := e.engine.Run(ctx)
	require.Error(t, err, "failed push surfaces for scheduling")

	got, err := e.exercises.Get(ctx, ex.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Bench", got.Name, "local edit wins over remote snapshot")
	assert.Equal(t, domain.StateDirty, got.SyncState, "record stays queued for the next cycle")
}

func TestPullCreatesAndOverwritesSyncedRecords(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	// One record already known locally and synced.
	known := domain.NewExercise("Row", "Back", "")
	require.NoError(t, e.exercises.Upsert(ctx, known))
	remoteID := int64(1)
	require.NoError(t, e.exercises.MarkSynced(ctx, known.LocalID, &remoteID))

	e.exClient.items = []remote.Exercise{
		{ID: 1, Name: "Barbell Row", Category: "Back"},
		{ID: 2, Name: "Deadlift", Category: "Back"},
	}

	require.NoError(t, e.engine.Run(ctx))

	got, err := e.exercises.Get(ctx, known.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Barbell Row", got.Name, "synced record refreshed from remote")
	assert.Equal(t, domain.StateSynced, got.SyncState)

	merged, err := e.exercises.FindByRemoteID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Deadlift", merged.Name)
	assert.Equal(t, domain.StateSynced, merged.SyncState)
	assert.NotEmpty(t, merged.LocalID)
}

func TestTombstoneByAbsenceSparesDirtyRecords(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	synced := domain.NewExercise("Gone", "", "")
	require.NoError(t, e.exercises.Upsert(ctx, synced))
	require.NoError(t, e.exercises.MarkSynced(ctx, synced.LocalID, ptr(int64(5))))

	edited := domain.NewExercise("Edited", "", "")
	require.NoError(t, e.exercises.Upsert(ctx, edited))
	require.NoError(t, e.exercises.MarkSynced(ctx, edited.LocalID, ptr(int64(6))))
	edited.Name = "Edited Offline"
	require.NoError(t, e.exercises.Upsert(ctx, edited))

	// Server deleted both; the edited record's push also fails.
	e.exClient.updateErr = func(int64) error { return errTransient }

	_ = e.engine.Run(ctx)

	_, err := e.exercises.Get(ctx, synced.LocalID)
	assert.ErrorIs(t, err, store.ErrNotFound, "synced absentee is tombstoned")

	got, err := e.exercises.Get(ctx, edited.LocalID)
	require.NoError(t, err, "dirty absentee must be preserved")
	assert.Equal(t, "Edited Offline", got.Name)
}

func TestDeletePushPaths(t *testing.T) {
	t.Run("confirmed remote delete purges locally", func(t *testing.T) {
		e := newEnv()
		ctx := context.Background()
		ex := domain.NewExercise("Old", "", "")
		require.NoError(t, e.exercises.Upsert(ctx, ex))
		require.NoError(t, e.exercises.MarkSynced(ctx, ex.LocalID, ptr(int64(3))))
		e.exClient.items = []remote.Exercise{{ID: 3, Name: "Old"}}
		require.NoError(t, e.exercises.SoftDelete(ctx, ex.LocalID))

		require.NoError(t, e.engine.Run(ctx))

		assert.Equal(t, []int64{3}, e.exClient.deletes)
		_, err := e.exercises.Get(ctx, ex.LocalID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("not found on delete is success", func(t *testing.T) {
		e := newEnv()
		ctx := context.Background()
		ex := domain.NewExercise("Old", "", "")
		require.NoError(t, e.exercises.Upsert(ctx, ex))
		require.NoError(t, e.exercises.MarkSynced(ctx, ex.LocalID, ptr(int64(3))))
		require.NoError(t, e.exercises.SoftDelete(ctx, ex.LocalID))
		e.exClient.deleteErr = func(int64) error { return remote.ErrNotFound }

		require.NoError(t, e.engine.Run(ctx))

		_, err := e.exercises.Get(ctx, ex.LocalID)
		assert.ErrorIs(t, err, store.ErrNotFound, "absent remotely is the goal state")
	})

	t.Run("transient delete failure keeps the tombstone queued", func(t *testing.T) {
		e := newEnv()
		ctx := context.Background()
		ex := domain.NewExercise("Old", "", "")
		require.NoError(t, e.exercises.Upsert(ctx, ex))
		require.NoError(t, e.exercises.MarkSynced(ctx, ex.LocalID, ptr(int64(3))))
		e.exClient.items = []remote.Exercise{{ID: 3, Name: "Old"}}
		require.NoError(t, e.exercises.SoftDelete(ctx, ex.LocalID))
		e.exClient.deleteErr = func(int64) error { return errTransient }

		require.Error(t, e.engine.Run(ctx))

		got, err := e.exercises.Get(ctx, ex.LocalID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
		assert.Equal(t, domain.StateDirty, got.SyncState)
	})

	t.Run("never-pushed record is purged without a remote call", func(t *testing.T) {
		e := newEnv()
		ctx := context.Background()
		ex := domain.NewExercise("Draft", "", "")
		require.NoError(t, e.exercises.Upsert(ctx, ex))
		require.NoError(t, e.exercises.SoftDelete(ctx, ex.LocalID))

		require.NoError(t, e.engine.Run(ctx))

		assert.Empty(t, e.exClient.deletes)
		_, err := e.exercises.Get(ctx, ex.LocalID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPushFailuresAreIsolatedPerRecord(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	good := domain.NewExercise("Good", "", "")
	bad := domain.NewExercise("Bad", "", "")
	require.NoError(t, e.exercises.Upsert(ctx, good))
	require.NoError(t, e.exercises.Upsert(ctx, bad))

	e.exClient.createErr = func(p remote.Exercise) error {
		if p.Name == "Bad" {
			return errTransient
		}
		return nil
	}

	require.Error(t, e.engine.Run(ctx))

	gotGood, err := e.exercises.Get(ctx, good.LocalID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, gotGood.SyncState, "one failure never aborts the rest of the dirty set")

	gotBad, err := e.exercises.Get(ctx, bad.LocalID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDirty, gotBad.SyncState)
}

func TestLinkPushDeferredUntilParentsCreatedRemotely(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	ex := domain.NewExercise("Squat", "Legs", "")
	w := domain.NewWorkout("Leg Day", "")
	require.NoError(t, e.exercises.Upsert(ctx, ex))
	require.NoError(t, e.workouts.Upsert(ctx, w))
	link := domain.NewWorkoutExerciseLink(w.LocalID, ex.LocalID, 5, 100)
	require.NoError(t, e.links.Upsert(ctx, link))

	// The workout's create cannot get through this cycle.
	e.workoutClient.createErr = func(remote.Workout) error { return errTransient }

	require.Error(t, e.engine.Run(ctx))

	assert.Empty(t, e.linkClient.creates, "link must never reach the server before its workout")
	gotLink, err := e.links.Get(ctx, link.LocalID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDirty, gotLink.SyncState)

	// Next cycle the workout goes through, and the link follows with the
	// server-side ids of both parents.
	e.workoutClient.createErr = nil
	require.NoError(t, e.engine.Run(ctx))

	require.Len(t, e.linkClient.creates, 1)
	pushed := e.linkClient.creates[0]
	gotEx, err := e.exercises.Get(ctx, ex.LocalID)
	require.NoError(t, err)
	gotW, err := e.workouts.Get(ctx, w.LocalID)
	require.NoError(t, err)
	assert.Equal(t, *gotEx.RemoteID, pushed.ExerciseID)
	assert.Equal(t, *gotW.RemoteID, pushed.WorkoutID)
}

func TestLinkPullDefersItemsWithUnknownParents(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	e.linkClient.items = []remote.WorkoutExercise{
		{ID: 9, WorkoutID: 100, ExerciseID: 200, Repetitions: 5, Weight: 80},
	}

	require.NoError(t, e.engine.Run(ctx), "unmapped parents defer the item, not the run")

	all, err := e.links.ListWithRemoteID(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPullFailureLeavesLocalStateUntouched(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	ex := domain.NewExercise("Press", "", "")
	require.NoError(t, e.exercises.Upsert(ctx, ex))
	require.NoError(t, e.exercises.MarkSynced(ctx, ex.LocalID, ptr(int64(4))))
	e.exClient.listErr = errTransient

	require.Error(t, e.engine.Run(ctx))

	got, err := e.exercises.Get(ctx, ex.LocalID)
	require.NoError(t, err, "a failed snapshot fetch must not tombstone anything")
	assert.Equal(t, domain.StateSynced, got.SyncState)
}

func TestRunRecordsStatus(t *testing.T) {
	e := newEnv()
	require.NoError(t, e.engine.Run(context.Background()))
	status := e.engine.Status()
	assert.False(t, status.LastRunAt.IsZero())
	assert.Empty(t, status.LastError)

	e.exClient.listErr = errTransient
	require.Error(t, e.engine.Run(context.Background()))
	assert.NotEmpty(t, e.engine.Status().LastError)
}

func ptr[T any](v T) *T { return &v }
