package store

import (
	"context"
	"fmt"

	"github.com/teemow/duety/internal/sync"
)

const (
	sqlListRecords = `SELECT calendar_id, account_id, event_uid, external_task_id, fingerprint, last_synced_at
		FROM synced_events
		WHERE calendar_id = ? AND account_id = ?
		ORDER BY event_uid`

	sqlUpsertRecord = `INSERT INTO synced_events
		(calendar_id, account_id, event_uid, external_task_id, fingerprint, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(calendar_id, account_id, event_uid) DO UPDATE SET
		 external_task_id = excluded.external_task_id,
		 fingerprint = excluded.fingerprint,
		 last_synced_at = excluded.last_synced_at`

	sqlDeleteRecord = `DELETE FROM synced_events
		WHERE calendar_id = ? AND account_id = ? AND event_uid = ?`
)

// ListRecords returns the sync records of one calendar and account pair.
func (s *Store) ListRecords(ctx context.Context, calendarID, accountID string) ([]sync.Record, error) {
	rows, err := s.db.QueryContext(ctx, sqlListRecords, calendarID, accountID)
	if err != nil {
		return nil, fmt.Errorf("store: listing records: %w", err)
	}
	defer rows.Close()

	var records []sync.Record
	for rows.Next() {
		var (
			rec      sync.Record
			syncedAt int64
		)
		err := rows.Scan(&rec.CalendarID, &rec.AccountID, &rec.EventUID, &rec.ExternalTaskID, &rec.Fingerprint, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("store: scanning record: %w", err)
		}
		rec.LastSyncedAt = fromUnixNano(syncedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating records: %w", err)
	}
	return records, nil
}

// UpsertRecord inserts or replaces the record keyed by calendar, account
// and event uid. A zero LastSyncedAt is stamped with the current time.
func (s *Store) UpsertRecord(ctx context.Context, rec sync.Record) error {
	syncedAt := s.now()
	if !rec.LastSyncedAt.IsZero() {
		syncedAt = rec.LastSyncedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, sqlUpsertRecord,
		rec.CalendarID, rec.AccountID, rec.EventUID, rec.ExternalTaskID, rec.Fingerprint, syncedAt)
	if err != nil {
		return fmt.Errorf("store: upserting record %s: %w", rec.EventUID, err)
	}
	return nil
}

// DeleteRecord removes one record. Deleting a missing record is not an
// error.
func (s *Store) DeleteRecord(ctx context.Context, calendarID, accountID, eventUID string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteRecord, calendarID, accountID, eventUID); err != nil {
		return fmt.Errorf("store: deleting record %s: %w", eventUID, err)
	}
	return nil
}
