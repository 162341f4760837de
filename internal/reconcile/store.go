package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

// Store persists sync state on transaction headers. The external id is write
// once: a later push can refresh the status but never reassign the id.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) setStatus(ctx context.Context, transactionID string, from []ledger.SyncStatus, to ledger.SyncStatus) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE transactions
		SET external_sync_status = $2, updated_at = now()
		WHERE id = $1 AND external_sync_status = ANY($3)`,
		transactionID, to, from)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s cannot move to %s", ErrBadTransition, transactionID, to)
	}
	return nil
}

// MarkPending re-queues a transaction for push. Legal from none and failed;
// pending stays pending so a resync request is idempotent.
func (s *Store) MarkPending(ctx context.Context, transactionID string) error {
	return s.setStatus(ctx, transactionID,
		[]ledger.SyncStatus{ledger.SyncNone, ledger.SyncFailed, ledger.SyncPending},
		ledger.SyncPending)
}

// MarkSynced stores success. COALESCE keeps the first external id ever
// assigned even if the provider answers again with a different one.
func (s *Store) MarkSynced(ctx context.Context, transactionID string, externalID int64) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE transactions
		SET external_sync_status = 'synced',
		    external_sync_error = NULL,
		    external_transaction_id = COALESCE(external_transaction_id, $2),
		    updated_at = now()
		WHERE id = $1 AND external_sync_status = 'pending'`,
		transactionID, externalID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s cannot move to synced", ErrBadTransition, transactionID)
	}
	return nil
}

// MarkFailed records the provider error. The transaction itself is left
// exactly as it was committed.
func (s *Store) MarkFailed(ctx context.Context, transactionID, message string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE transactions
		SET external_sync_status = 'failed',
		    external_sync_error = $2,
		    updated_at = now()
		WHERE id = $1 AND external_sync_status = 'pending'`,
		transactionID, message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s cannot move to failed", ErrBadTransition, transactionID)
	}
	return nil
}

// ListUnsynced returns ids of an org's pending and failed transactions,
// oldest first, for the retry sweep.
func (s *Store) ListUnsynced(ctx context.Context, orgID string, limit int) ([]string, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id FROM transactions
		WHERE org_id = $1 AND external_sync_status IN ('pending', 'failed')
		ORDER BY created_at
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
