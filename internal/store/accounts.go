package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/teemow/duety/internal/sync"
)

const (
	sqlAccountColumns = `id, username, service_type, credentials, config, enabled, created_at, updated_at`

	sqlGetAccount = `SELECT ` + sqlAccountColumns + ` FROM task_accounts WHERE id = ?`

	sqlGetAccountByUser = `SELECT ` + sqlAccountColumns + ` FROM task_accounts WHERE username = ?`

	// Reconnecting keeps the account id so existing sync records stay valid.
	sqlUpsertAccount = `INSERT INTO task_accounts (` + sqlAccountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
		 service_type = excluded.service_type,
		 credentials = excluded.credentials,
		 config = excluded.config,
		 enabled = excluded.enabled,
		 updated_at = excluded.updated_at`

	sqlUpdateCredentials = `UPDATE task_accounts SET credentials = ?, updated_at = ? WHERE id = ?`

	sqlDeleteAccountByUser = `DELETE FROM task_accounts WHERE username = ?`

	sqlListTargets = `SELECT c.id, a.id, c.username
		FROM calendars c
		JOIN task_accounts a ON a.username = c.username
		WHERE a.enabled = 1 AND a.credentials != ''
		ORDER BY c.username, c.created_at, c.id`
)

// UpsertAccount creates or replaces the user's task service account and
// returns the stored row. The user row must exist.
func (s *Store) UpsertAccount(ctx context.Context, acct sync.Account) (sync.Account, error) {
	now := s.now()
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx, sqlUpsertAccount,
		id, acct.Username, string(acct.ServiceType), acct.Credentials, acct.Config, acct.Enabled, now, now)
	if err != nil {
		return sync.Account{}, fmt.Errorf("store: upserting account for %s: %w", acct.Username, err)
	}
	return s.GetAccountByUser(ctx, acct.Username)
}

// GetAccount returns the account with id.
func (s *Store) GetAccount(ctx context.Context, id string) (sync.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, sqlGetAccount, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sync.Account{}, fmt.Errorf("store: account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return sync.Account{}, fmt.Errorf("store: getting account %s: %w", id, err)
	}
	return acct, nil
}

// GetAccountByUser returns the user's account.
func (s *Store) GetAccountByUser(ctx context.Context, username string) (sync.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, sqlGetAccountByUser, username))
	if errors.Is(err, sql.ErrNoRows) {
		return sync.Account{}, fmt.Errorf("store: account for %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return sync.Account{}, fmt.Errorf("store: getting account for %s: %w", username, err)
	}
	return acct, nil
}

// UpdateCredentials replaces the stored credential blob.
func (s *Store) UpdateCredentials(ctx context.Context, accountID, credentials string) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateCredentials, credentials, s.now(), accountID)
	if err != nil {
		return fmt.Errorf("store: updating credentials for %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: updating credentials for %s: %w", accountID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// DeleteAccountByUser disconnects the user's account and drops its sync
// records. Deleting a missing account is not an error.
func (s *Store) DeleteAccountByUser(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteAccountByUser, username); err != nil {
		return fmt.Errorf("store: deleting account for %s: %w", username, err)
	}
	return nil
}

// ListTargets returns every calendar paired with its owner's enabled,
// connected account.
func (s *Store) ListTargets(ctx context.Context) ([]sync.Target, error) {
	rows, err := s.db.QueryContext(ctx, sqlListTargets)
	if err != nil {
		return nil, fmt.Errorf("store: listing targets: %w", err)
	}
	defer rows.Close()

	var targets []sync.Target
	for rows.Next() {
		var t sync.Target
		if err := rows.Scan(&t.CalendarID, &t.AccountID, &t.Username); err != nil {
			return nil, fmt.Errorf("store: scanning target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating targets: %w", err)
	}
	return targets, nil
}

func scanAccount(row rowScanner) (sync.Account, error) {
	var (
		acct                 sync.Account
		serviceType          string
		createdAt, updatedAt int64
	)
	err := row.Scan(&acct.ID, &acct.Username, &serviceType, &acct.Credentials, &acct.Config,
		&acct.Enabled, &createdAt, &updatedAt)
	if err != nil {
		return sync.Account{}, err
	}
	acct.ServiceType = sync.ServiceType(serviceType)
	acct.CreatedAt = fromUnixNano(createdAt)
	acct.UpdatedAt = fromUnixNano(updatedAt)
	return acct, nil
}
