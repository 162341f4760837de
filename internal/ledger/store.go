package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists transactions and their lines. All mutations run inside a
// single database transaction so a failure never leaves an orphaned header
// or a partial line set behind.
type Store struct {
	Pool DB
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const headerColumns = `
	t.id, t.org_id, t.date, t.memo, t.transaction_type, t.status,
	t.total_amount, t.bank_gl_account_id, t.check_number,
	t.payee_name, t.payee_type, t.payee_external_id,
	t.external_transaction_id, t.external_sync_status, t.external_sync_error,
	t.created_at, t.updated_at`

const lineColumns = `
	l.id, l.transaction_id, l.gl_account_id, l.amount, l.posting_type,
	l.date, l.memo, l.property_id, l.unit_id,
	l.account_entity_type, l.account_entity_id,
	l.external_property_id, l.external_unit_id,
	l.created_at, l.updated_at`

const insertLineSQL = `
	INSERT INTO transaction_lines (
		transaction_id, gl_account_id, amount, posting_type, date, memo,
		property_id, unit_id, account_entity_type, account_entity_id,
		external_property_id, external_unit_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

func scanHeader(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Date, &t.Memo, &t.TransactionType, &t.Status,
		&t.TotalAmount, &t.BankGLAccountID, &t.CheckNumber,
		&t.PayeeName, &t.PayeeType, &t.PayeeExternalID,
		&t.ExternalTransactionID, &t.ExternalSyncStatus, &t.ExternalSyncError,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

func scanLines(rows pgx.Rows) ([]TransactionLine, error) {
	defer rows.Close()
	var lines []TransactionLine
	for rows.Next() {
		var l TransactionLine
		if err := rows.Scan(
			&l.ID, &l.TransactionID, &l.GLAccountID, &l.Amount, &l.PostingType,
			&l.Date, &l.Memo, &l.PropertyID, &l.UnitID,
			&l.AccountEntityType, &l.AccountEntityID,
			&l.ExternalPropertyID, &l.ExternalUnitID,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// asConflict translates lock and serialization failures into ErrConflict so
// callers can surface a retryable 409 instead of a 500.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001": // lock_not_available, serialization_failure
			return ErrConflict
		}
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*Transaction, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+headerColumns+` FROM transactions t WHERE t.id = $1`, id)
	return scanHeader(row)
}

func (s *Store) GetLines(ctx context.Context, transactionID string) ([]TransactionLine, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+lineColumns+` FROM transaction_lines l
		 WHERE l.transaction_id = $1 ORDER BY l.created_at, l.id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query transaction lines: %w", err)
	}
	return scanLines(rows)
}

// Commit validates the draft and writes the header plus every line in one
// database transaction. It returns the new transaction id. Pushable drafts
// start in SyncPending, everything else in SyncNone.
func (s *Store) Commit(ctx context.Context, d *Draft) (string, error) {
	if err := ValidateDraft(d); err != nil {
		return "", err
	}

	syncStatus := SyncNone
	if d.Pushable {
		syncStatus = SyncPending
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (
			org_id, date, memo, transaction_type, status, total_amount,
			bank_gl_account_id, check_number,
			payee_name, payee_type, payee_external_id,
			external_sync_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`,
		d.Header.OrgID, d.Header.Date, d.Header.Memo,
		d.Header.TransactionType, d.Header.Status, d.Header.TotalAmount,
		d.Header.BankGLAccountID, d.Header.CheckNumber,
		d.Header.PayeeName, d.Header.PayeeType, d.Header.PayeeExternalID,
		syncStatus,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	for i, l := range d.Lines {
		date := l.Date
		if date.IsZero() {
			date = d.Header.Date
		}
		if _, err := tx.Exec(ctx, insertLineSQL,
			id, l.GLAccountID, l.Amount, l.PostingType, date, l.Memo,
			l.PropertyID, l.UnitID, l.AccountEntityType, l.AccountEntityID,
			l.ExternalPropertyID, l.ExternalUnitID,
		); err != nil {
			return "", fmt.Errorf("insert line %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// Replace swaps the entire line set of an existing transaction. The header
// row is locked for the duration so concurrent replaces serialize; lock or
// serialization failures come back as ErrConflict. The header total is
// recomputed from the debit side of the new lines. An empty line set is
// allowed: a bill edited down to nothing keeps its header with total 0 and
// no postings. When validateBalance is false the balance invariant is
// skipped (bill replacement defers it to the caller) but per-line validity
// is always enforced.
func (s *Store) Replace(ctx context.Context, transactionID string, lines []TransactionLine, validateBalance bool) error {
	if len(lines) > 0 {
		if err := ValidateLines(lines); err != nil {
			return err
		}
	}
	if validateBalance && !Balanced(lines) {
		return fmt.Errorf("%w: debits %s credits %s", ErrUnbalanced,
			DebitTotal(lines), CreditTotal(lines))
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	var headerDate time.Time
	err = tx.QueryRow(ctx,
		`SELECT date FROM transactions WHERE id = $1 FOR UPDATE NOWAIT`,
		transactionID).Scan(&headerDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return asConflict(err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM transaction_lines WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("delete old lines: %w", err)
	}

	for i, l := range lines {
		date := l.Date
		if date.IsZero() {
			date = headerDate
		}
		if _, err := tx.Exec(ctx, insertLineSQL,
			transactionID, l.GLAccountID, l.Amount, l.PostingType, date, l.Memo,
			l.PropertyID, l.UnitID, l.AccountEntityType, l.AccountEntityID,
			l.ExternalPropertyID, l.ExternalUnitID,
		); err != nil {
			return fmt.Errorf("insert replacement line %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE transactions SET total_amount = $2, updated_at = now() WHERE id = $1`,
		transactionID, DebitTotal(lines)); err != nil {
		return fmt.Errorf("update total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return asConflict(fmt.Errorf("commit replace: %w", err))
	}

	if validateBalance && len(lines) > 0 {
		return s.VerifyCommitted(ctx, transactionID)
	}
	return nil
}

// VerifyCommitted re-reads the persisted transaction and runs the full
// draft validator against it. A violation here means the stored books are
// wrong, which is worth an ErrCorrupted rather than a quiet log line.
func (s *Store) VerifyCommitted(ctx context.Context, transactionID string) error {
	header, err := s.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	lines, err := s.GetLines(ctx, transactionID)
	if err != nil {
		return err
	}
	return verifyStored(header, lines)
}

// verifyStored applies the same checks as ValidateDraft to a persisted
// transaction, reporting any violation as corruption.
func verifyStored(header *Transaction, lines []TransactionLine) error {
	if err := ValidateDraft(&Draft{Header: *header, Lines: lines}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupted, header.ID, err)
	}
	return nil
}

// Delete removes the lines and then the header inside one transaction,
// locking the header first so it cannot race a concurrent replace.
func (s *Store) Delete(ctx context.Context, transactionID string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM transactions WHERE id = $1 FOR UPDATE NOWAIT`,
		transactionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return asConflict(err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM transaction_lines WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1`, transactionID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateHeader patches mutable header fields. Nil fields are left untouched.
func (s *Store) UpdateHeader(ctx context.Context, transactionID string, date *time.Time, memo *string, status *Status) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE transactions SET
			date = COALESCE($2, date),
			memo = COALESCE($3, memo),
			status = COALESCE($4, status),
			updated_at = now()
		WHERE id = $1`,
		transactionID, date, memo, status)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOrg returns headers for an org, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+headerColumns+` FROM transactions t
		 WHERE t.org_id = $1 ORDER BY t.date DESC, t.created_at DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.OrgID, &t.Date, &t.Memo, &t.TransactionType, &t.Status,
			&t.TotalAmount, &t.BankGLAccountID, &t.CheckNumber,
			&t.PayeeName, &t.PayeeType, &t.PayeeExternalID,
			&t.ExternalTransactionID, &t.ExternalSyncStatus, &t.ExternalSyncError,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
