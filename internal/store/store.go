// Package store defines the local record store boundary shared by the UI
// facade and the sync engine. Both sides use the identical write API,
// which is what makes Dirty tracking automatic and uniform.
package store

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/fitness-sync/internal/domain"
)

// ErrNotFound is returned when no record matches the given identifier.
var ErrNotFound = errors.New("record not found")

// ErrorKind classifies a local storage failure.
type ErrorKind string

const (
	// KindConstraint covers uniqueness and foreign key violations.
	KindConstraint ErrorKind = "constraint"
	// KindIO covers everything else the storage engine reports.
	KindIO ErrorKind = "io"
)

// StorageError is a typed local storage failure. It aborts only the
// current atomic operation, never a whole sync run.
type StorageError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RecordStore is the typed CRUD contract per entity.
//
// Upsert and SoftDelete are the local-edit path: they force the record
// Dirty. Replace, MarkSynced and HardDelete are the merge path: they
// write exactly what the sync engine decided.
type RecordStore[T any] interface {
	Get(ctx context.Context, localID string) (*T, error)
	// FindByRemoteID returns ErrNotFound when no local record carries the
	// given remote id.
	FindByRemoteID(ctx context.Context, remoteID int64) (*T, error)
	// ListActive returns non-deleted records. Deleted rows are excluded by
	// an explicit predicate here, never by an implicit global filter, so
	// maintenance paths can deliberately read them elsewhere.
	ListActive(ctx context.Context) ([]T, error)
	ListDirty(ctx context.Context) ([]T, error)
	// ListWithRemoteID returns every record that has been created remotely
	// at some point, including soft-deleted rows. The pull phase scans it
	// for tombstone-by-absence.
	ListWithRemoteID(ctx context.Context) ([]T, error)

	// Upsert inserts the record if absent, else updates its fields. Either
	// way the record is forced Dirty and LastModified is refreshed, on the
	// passed value as well as in storage.
	Upsert(ctx context.Context, rec *T) error
	// Replace writes the record verbatim, inserting if absent. Metadata is
	// stored exactly as given; used by the merge phase.
	Replace(ctx context.Context, rec *T) error
	// SoftDelete flags the record deleted and forces it Dirty.
	SoftDelete(ctx context.Context, localID string) error
	// MarkSynced flips the record to Synced, refreshes LastSynced and
	// optionally assigns a server-issued remote id.
	MarkSynced(ctx context.Context, localID string, remoteID *int64) error
	// HardDelete physically removes the row; dependent link rows are
	// removed in the same statement through cascading foreign keys.
	HardDelete(ctx context.Context, localID string) error
}

// LinkStore extends RecordStore for the workout/exercise relation.
type LinkStore interface {
	RecordStore[domain.WorkoutExerciseLink]

	ListByWorkout(ctx context.Context, workoutLocalID string, includeDeleted bool) ([]domain.WorkoutExerciseLink, error)
	// ReconcileWorkout converges the link rows of one workout to the given
	// target set inside a single transaction: rows outside the set are
	// soft-deleted, matching rows (active or soft-deleted) are updated and
	// revived, missing rows are inserted. Every touched row comes out
	// Dirty. Rows of other workouts are never disturbed. On failure the
	// transaction rolls back entirely and a *StorageError is returned.
	ReconcileWorkout(ctx context.Context, workoutLocalID string, targets []domain.LinkTarget) error
}
