package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncState describes whether a local record matches the last-fetched
// remote state.
type SyncState string

const (
	// StateDirty means the local fields are authoritative and must not be
	// overwritten by an incoming remote merge.
	StateDirty SyncState = "dirty"
	// StateSynced means the local fields are known to equal the last
	// remote snapshot.
	StateSynced SyncState = "synced"
)

// Meta carries the bookkeeping fields shared by every synchronized record.
// It is embedded by each concrete entity.
type Meta struct {
	// LocalID is the client-generated primary key. It is immutable and
	// never reused; remote identifiers are never used as keys locally.
	LocalID string `json:"localId"`
	// RemoteID is the server-assigned identifier, set only after the
	// record has been successfully created remotely.
	RemoteID *int64 `json:"remoteId,omitempty"`
	// IsDeleted marks a soft delete. The row is physically removed only
	// once the deletion has been confirmed remotely (or was never pushed).
	IsDeleted    bool       `json:"isDeleted"`
	SyncState    SyncState  `json:"syncState"`
	LastModified time.Time  `json:"lastModifiedUtc"`
	LastSynced   *time.Time `json:"lastSyncedUtc,omitempty"`
}

// NewMeta returns metadata for a freshly created local record: a new
// local id, Dirty, never pushed.
func NewMeta() Meta {
	return Meta{
		LocalID:      uuid.NewString(),
		SyncState:    StateDirty,
		LastModified: time.Now().UTC(),
	}
}

// RecordMeta exposes the embedded metadata through a uniform accessor so
// generic store and sync code can reach it on any entity.
func (m *Meta) RecordMeta() *Meta { return m }

// Record is satisfied by every entity that embeds Meta.
type Record interface {
	RecordMeta() *Meta
}

// Touch marks a local edit: the record becomes Dirty and authoritative.
func (m *Meta) Touch() {
	m.SyncState = StateDirty
	m.LastModified = time.Now().UTC()
}

// MarkSynced records a successful push or merge, optionally capturing a
// newly assigned remote id.
func (m *Meta) MarkSynced(remoteID *int64) {
	now := time.Now().UTC()
	m.SyncState = StateSynced
	m.LastSynced = &now
	if remoteID != nil {
		m.RemoteID = remoteID
	}
}
