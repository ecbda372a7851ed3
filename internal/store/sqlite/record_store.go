package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/store"

	"github.com/ncruces/go-sqlite3"
)

// metaColumns are shared by every synchronized table, in this order,
// ahead of the entity's business columns.
const metaColumns = "local_id, remote_id, is_deleted, sync_state, last_modified, last_synced"

// tableSpec describes how one entity maps onto its table. The scan
// closure returns destinations for the business columns plus an optional
// finish hook converting intermediate values (times, nullables).
type tableSpec[T any] struct {
	table string
	cols  []string
	meta  func(rec *T) *domain.Meta
	vals  func(rec *T) []any
	scan  func(rec *T) (dest []any, finish func() error)
}

// Store is the SQLite implementation of store.RecordStore for one entity.
type Store[T any] struct {
	db   *DB
	spec tableSpec[T]
}

func newStore[T any](db *DB, spec tableSpec[T]) *Store[T] {
	return &Store[T]{db: db, spec: spec}
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// classify wraps a storage engine failure into a typed *store.StorageError,
// distinguishing constraint violations from I/O errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := store.KindIO
	var serr *sqlite3.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.CONSTRAINT {
		kind = store.KindConstraint
	}
	return &store.StorageError{Kind: kind, Op: op, Err: err}
}

func (s *Store[T]) selectClause() string {
	return fmt.Sprintf("SELECT %s, %s FROM %s", metaColumns, strings.Join(s.spec.cols, ", "), s.spec.table)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store[T]) scanRecord(row rowScanner) (*T, error) {
	rec := new(T)
	m := s.spec.meta(rec)

	var (
		remoteID   sql.NullInt64
		isDeleted  int
		state      string
		lastMod    string
		lastSynced sql.NullString
	)
	dest := []any{&m.LocalID, &remoteID, &isDeleted, &state, &lastMod, &lastSynced}
	bizDest, finish := s.spec.scan(rec)
	dest = append(dest, bizDest...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if remoteID.Valid {
		m.RemoteID = &remoteID.Int64
	}
	m.IsDeleted = isDeleted != 0
	m.SyncState = domain.SyncState(state)
	t, err := parseTime(lastMod)
	if err != nil {
		return nil, fmt.Errorf("bad last_modified for %s: %w", m.LocalID, err)
	}
	m.LastModified = t
	if lastSynced.Valid {
		ls, err := parseTime(lastSynced.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_synced for %s: %w", m.LocalID, err)
		}
		m.LastSynced = &ls
	}
	if finish != nil {
		if err := finish(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Store[T]) queryOne(ctx context.Context, op, where string, args ...any) (*T, error) {
	row := s.db.conn.QueryRowContext(ctx, s.selectClause()+" WHERE "+where, args...)
	rec, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return rec, nil
}

func (s *Store[T]) queryMany(ctx context.Context, op, where string, args ...any) ([]T, error) {
	q := s.selectClause()
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY last_modified DESC"

	rows, err := s.db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// Get retrieves a record by local id, deleted or not.
func (s *Store[T]) Get(ctx context.Context, localID string) (*T, error) {
	return s.queryOne(ctx, s.spec.table+".get", "local_id = ?", localID)
}

// FindByRemoteID retrieves the record carrying the given remote id.
func (s *Store[T]) FindByRemoteID(ctx context.Context, remoteID int64) (*T, error) {
	return s.queryOne(ctx, s.spec.table+".find_by_remote", "remote_id = ?", remoteID)
}

// ListActive returns all non-deleted records, newest edits first.
func (s *Store[T]) ListActive(ctx context.Context) ([]T, error) {
	return s.queryMany(ctx, s.spec.table+".list_active", "is_deleted = 0")
}

// ListDirty returns every record awaiting a push, deleted rows included.
func (s *Store[T]) ListDirty(ctx context.Context) ([]T, error) {
	return s.queryMany(ctx, s.spec.table+".list_dirty", "sync_state = ?", string(domain.StateDirty))
}

// ListWithRemoteID returns every record known to exist (or to have
// existed) remotely, deleted rows included.
func (s *Store[T]) ListWithRemoteID(ctx context.Context) ([]T, error) {
	return s.queryMany(ctx, s.spec.table+".list_remote", "remote_id IS NOT NULL")
}

func (s *Store[T]) metaArgs(m *domain.Meta) []any {
	var remoteID any
	if m.RemoteID != nil {
		remoteID = *m.RemoteID
	}
	var lastSynced any
	if m.LastSynced != nil {
		lastSynced = fmtTime(*m.LastSynced)
	}
	deleted := 0
	if m.IsDeleted {
		deleted = 1
	}
	return []any{m.LocalID, remoteID, deleted, string(m.SyncState), fmtTime(m.LastModified), lastSynced}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Upsert inserts the record or updates its business fields, forcing it
// Dirty. The remote identity of an existing row (remote_id, last_synced)
// is preserved and copied back onto rec, so a local edit of a synced
// record keeps pointing at its server counterpart.
func (s *Store[T]) Upsert(ctx context.Context, rec *T) error {
	m := s.spec.meta(rec)
	if m.LocalID == "" {
		return &store.StorageError{Kind: store.KindConstraint, Op: s.spec.table + ".upsert", Err: errors.New("empty local id")}
	}
	m.Touch()

	sets := []string{"is_deleted = excluded.is_deleted", "sync_state = excluded.sync_state", "last_modified = excluded.last_modified"}
	for _, c := range s.spec.cols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (%s) ON CONFLICT(local_id) DO UPDATE SET %s RETURNING remote_id, last_synced",
		s.spec.table, metaColumns, strings.Join(s.spec.cols, ", "),
		placeholders(6+len(s.spec.cols)), strings.Join(sets, ", "),
	)
	args := append(s.metaArgs(m), s.spec.vals(rec)...)

	var remoteID sql.NullInt64
	var lastSynced sql.NullString
	if err := s.db.conn.QueryRowContext(ctx, q, args...).Scan(&remoteID, &lastSynced); err != nil {
		return classify(s.spec.table+".upsert", err)
	}
	if remoteID.Valid {
		m.RemoteID = &remoteID.Int64
	}
	if lastSynced.Valid {
		if ls, err := parseTime(lastSynced.String); err == nil {
			m.LastSynced = &ls
		}
	}
	return nil
}

// Replace writes the record verbatim, metadata included. The merge phase
// uses it to apply remote state without disturbing Dirty bookkeeping
// elsewhere. An INSERT OR REPLACE would fire delete cascades on dependent
// rows, so the conflict clause updates in place instead.
func (s *Store[T]) Replace(ctx context.Context, rec *T) error {
	m := s.spec.meta(rec)
	sets := []string{
		"remote_id = excluded.remote_id", "is_deleted = excluded.is_deleted",
		"sync_state = excluded.sync_state", "last_modified = excluded.last_modified",
		"last_synced = excluded.last_synced",
	}
	for _, c := range s.spec.cols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (%s) ON CONFLICT(local_id) DO UPDATE SET %s",
		s.spec.table, metaColumns, strings.Join(s.spec.cols, ", "),
		placeholders(6+len(s.spec.cols)), strings.Join(sets, ", "),
	)
	args := append(s.metaArgs(m), s.spec.vals(rec)...)
	if _, err := s.db.conn.ExecContext(ctx, q, args...); err != nil {
		return classify(s.spec.table+".replace", err)
	}
	return nil
}

// SoftDelete flags the record deleted and forces it Dirty so the deletion
// is pushed on the next cycle.
func (s *Store[T]) SoftDelete(ctx context.Context, localID string) error {
	q := fmt.Sprintf("UPDATE %s SET is_deleted = 1, sync_state = ?, last_modified = ? WHERE local_id = ?", s.spec.table)
	res, err := s.db.conn.ExecContext(ctx, q, string(domain.StateDirty), fmtTime(time.Now().UTC()), localID)
	if err != nil {
		return classify(s.spec.table+".soft_delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkSynced flips the record to Synced, refreshing last_synced and
// optionally capturing a server-assigned remote id.
func (s *Store[T]) MarkSynced(ctx context.Context, localID string, remoteID *int64) error {
	var rid any
	if remoteID != nil {
		rid = *remoteID
	}
	q := fmt.Sprintf("UPDATE %s SET sync_state = ?, last_synced = ?, remote_id = COALESCE(?, remote_id) WHERE local_id = ?", s.spec.table)
	res, err := s.db.conn.ExecContext(ctx, q, string(domain.StateSynced), fmtTime(time.Now().UTC()), rid, localID)
	if err != nil {
		return classify(s.spec.table+".mark_synced", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// HardDelete physically removes the row. Dependent rows go with it via
// the schema's cascading foreign keys. Deleting an absent row is a no-op.
func (s *Store[T]) HardDelete(ctx context.Context, localID string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE local_id = ?", s.spec.table)
	if _, err := s.db.conn.ExecContext(ctx, q, localID); err != nil {
		return classify(s.spec.table+".hard_delete", err)
	}
	return nil
}
