// Package sync implements the offline-first synchronization engine: the
// per-entity push and pull/merge phases, the workout/exercise link
// reconciler, and the connectivity-triggered scheduler.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/observability"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/store"

	"github.com/rs/zerolog"
)

// errParentNotPushed defers a dependent record whose parent has no remote
// id yet. The record stays Dirty and is retried once the parent's create
// has gone through, so a link can never reach the server ahead of the
// rows it references.
var errParentNotPushed = errors.New("parent record not yet created remotely")

// API is the remote call surface the engine needs per entity type.
// *remote.Client[P] satisfies it.
type API[P remote.Item] interface {
	List(ctx context.Context) ([]P, error)
	Create(ctx context.Context, payload P) (P, error)
	Update(ctx context.Context, id int64, payload P) error
	Delete(ctx context.Context, id int64) error
}

// codec translates between a local record and its wire payload. All
// closures may consult other stores to map references between local and
// remote id space.
type codec[T any, P remote.Item] struct {
	// toPayload encodes a local record for create/update. Returns
	// errParentNotPushed when a referenced parent has no remote id yet.
	toPayload func(ctx context.Context, rec *T) (P, error)
	// applyRemote copies the remote item's business fields onto an
	// existing Synced local record.
	applyRemote func(ctx context.Context, rec *T, item P) error
	// fromRemote builds a brand-new Synced local record from a remote
	// item. Returns (nil, nil) to skip items whose referenced parents are
	// not known locally yet; the next cycle picks them up.
	fromRemote func(ctx context.Context, item P) (*T, error)
}

func metaOf[T any](rec *T) *domain.Meta {
	return any(rec).(domain.Record).RecordMeta()
}

// syncedMeta is the metadata of a record first seen through a merge.
func syncedMeta(remoteID int64) domain.Meta {
	now := time.Now().UTC()
	id := remoteID
	return domain.Meta{
		LocalID:      newLocalID(),
		RemoteID:     &id,
		SyncState:    domain.StateSynced,
		LastModified: now,
		LastSynced:   &now,
	}
}

type entitySyncer interface {
	name() string
	sync(ctx context.Context) error
}

// binding ties one entity type's store, remote client and codec together
// and runs its push phase followed by its pull/merge phase.
type binding[T any, P remote.Item] struct {
	entity string
	store  store.RecordStore[T]
	client API[P]
	codec  codec[T, P]
	log    zerolog.Logger
}

func (b *binding[T, P]) name() string { return b.entity }

func (b *binding[T, P]) sync(ctx context.Context) error {
	var errs []error
	if err := b.push(ctx); err != nil {
		errs = append(errs, err)
	}
	// The pull runs regardless of push failures: other records' remote
	// state is still worth merging.
	if err := b.pull(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// push uploads every Dirty record. Failures are isolated per record: a
// failed record stays Dirty for the next cycle and never aborts the rest
// of the dirty set.
func (b *binding[T, P]) push(ctx context.Context) error {
	dirty, err := b.store.ListDirty(ctx)
	if err != nil {
		return fmt.Errorf("push %s: %w", b.entity, err)
	}

	failed := 0
	for i := range dirty {
		rec := &dirty[i]
		m := metaOf(rec)
		if err := b.pushOne(ctx, rec, m); err != nil {
			failed++
			b.log.Warn().Err(err).Str("local_id", m.LocalID).Msg("push failed, record stays dirty")
		}
	}
	if failed > 0 {
		return fmt.Errorf("push %s: %d of %d dirty records failed", b.entity, failed, len(dirty))
	}
	return nil
}

func (b *binding[T, P]) pushOne(ctx context.Context, rec *T, m *domain.Meta) error {
	switch {
	case m.IsDeleted:
		if m.RemoteID == nil {
			// Never existed remotely; nothing to push, purge right away.
			observability.RecordPushOp(b.entity, "purge", "success")
			return b.store.HardDelete(ctx, m.LocalID)
		}
		err := b.client.Delete(ctx, *m.RemoteID)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			observability.RecordPushOp(b.entity, "delete", "failure")
			return err
		}
		// Gone remotely, by this call or already: goal state achieved.
		observability.RecordPushOp(b.entity, "delete", "success")
		return b.store.HardDelete(ctx, m.LocalID)

	case m.RemoteID == nil:
		payload, err := b.codec.toPayload(ctx, rec)
		if err != nil {
			observability.RecordPushOp(b.entity, "create", "deferred")
			return err
		}
		created, err := b.client.Create(ctx, payload)
		if err != nil {
			observability.RecordPushOp(b.entity, "create", "failure")
			return err
		}
		id := created.ItemID()
		observability.RecordPushOp(b.entity, "create", "success")
		return b.store.MarkSynced(ctx, m.LocalID, &id)

	default:
		payload, err := b.codec.toPayload(ctx, rec)
		if err != nil {
			observability.RecordPushOp(b.entity, "update", "deferred")
			return err
		}
		if err := b.client.Update(ctx, *m.RemoteID, payload); err != nil {
			observability.RecordPushOp(b.entity, "update", "failure")
			return err
		}
		observability.RecordPushOp(b.entity, "update", "success")
		return b.store.MarkSynced(ctx, m.LocalID, nil)
	}
}

// pull fetches the full remote snapshot and merges it into local storage.
// Dirty records always win over the incoming snapshot; Synced records are
// overwritten; locally unknown items become new Synced records; Synced
// records whose remote id is absent from the snapshot are hard-deleted
// (tombstone-by-absence).
func (b *binding[T, P]) pull(ctx context.Context) error {
	items, err := b.client.List(ctx)
	if err != nil {
		return fmt.Errorf("pull %s: %w", b.entity, err)
	}
	known, err := b.store.ListWithRemoteID(ctx)
	if err != nil {
		return fmt.Errorf("pull %s: %w", b.entity, err)
	}

	byRemote := make(map[int64]*T, len(known))
	for i := range known {
		byRemote[*metaOf(&known[i]).RemoteID] = &known[i]
	}

	merged := 0
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		id := item.ItemID()
		seen[id] = struct{}{}

		local, ok := byRemote[id]
		if !ok {
			rec, err := b.codec.fromRemote(ctx, item)
			if err != nil {
				b.log.Warn().Err(err).Int64("remote_id", id).Msg("skipping unmappable remote item")
				continue
			}
			if rec == nil {
				observability.RecordPullAction(b.entity, "deferred")
				continue
			}
			if err := b.store.Replace(ctx, rec); err != nil {
				b.log.Error().Err(err).Int64("remote_id", id).Msg("failed to store remote item")
				continue
			}
			observability.RecordPullAction(b.entity, "created")
			merged++
			continue
		}

		m := metaOf(local)
		if m.SyncState == domain.StateDirty {
			// Local edit is authoritative until pushed.
			observability.RecordPullAction(b.entity, "skipped_dirty")
			continue
		}
		if err := b.codec.applyRemote(ctx, local, item); err != nil {
			b.log.Warn().Err(err).Int64("remote_id", id).Msg("skipping unmappable remote update")
			continue
		}
		now := time.Now().UTC()
		m.LastSynced = &now
		m.IsDeleted = false
		if err := b.store.Replace(ctx, local); err != nil {
			b.log.Error().Err(err).Str("local_id", m.LocalID).Msg("failed to apply remote update")
			continue
		}
		observability.RecordPullAction(b.entity, "updated")
		merged++
	}

	// Tombstone-by-absence, Synced records only: a Dirty record may be an
	// unpushed edit on something the server deleted and is preserved.
	removed := 0
	for i := range known {
		m := metaOf(&known[i])
		if _, ok := seen[*m.RemoteID]; ok {
			continue
		}
		if m.SyncState == domain.StateDirty {
			continue
		}
		if err := b.store.HardDelete(ctx, m.LocalID); err != nil {
			b.log.Error().Err(err).Str("local_id", m.LocalID).Msg("failed to remove tombstoned record")
			continue
		}
		observability.RecordPullAction(b.entity, "tombstoned")
		removed++
	}

	b.log.Debug().Int("remote_items", len(items)).Int("merged", merged).Int("removed", removed).Msg("pull complete")
	return nil
}

// Status is a snapshot of the engine's most recent run.
type Status struct {
	LastRunAt time.Time `json:"lastRunAt,omitzero"`
	LastError string    `json:"lastError,omitempty"`
}

// Engine orchestrates the sync of every tracked entity type in a fixed
// order: exercises and workouts before the rows that reference them.
type Engine struct {
	syncers []entitySyncer
	log     zerolog.Logger

	mu     stdsync.Mutex
	status Status
}

// Run executes one full push-then-pull cycle per entity type. Errors are
// aggregated and returned for scheduling decisions, never raised to the
// UI; a sync-level failure simply leaves records Dirty for the next
// cycle. Cancellation is honored between entity types: a phase already
// in flight runs to completion.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	e.log.Info().Msg("sync run starting")

	var errs []error
	for _, s := range e.syncers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.sync(ctx); err != nil {
			e.log.Warn().Err(err).Str("entity", s.name()).Msg("entity sync incomplete")
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	result := "success"
	if err != nil {
		result = "failure"
	}
	observability.RecordRun(result, time.Since(start))
	e.log.Info().Str("result", result).Dur("elapsed", time.Since(start)).Msg("sync run finished")

	e.mu.Lock()
	e.status = Status{LastRunAt: time.Now().UTC()}
	if err != nil {
		e.status.LastError = err.Error()
	}
	e.mu.Unlock()
	return err
}

// Status returns a snapshot of the last run's outcome.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}
