package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsConflict(t *testing.T) {
	lock := &pgconn.PgError{Code: "55P03"}
	assert.ErrorIs(t, asConflict(lock), ErrConflict)

	serialization := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, asConflict(serialization), ErrConflict)

	unique := &pgconn.PgError{Code: "23505"}
	assert.NotErrorIs(t, asConflict(unique), ErrConflict)

	plain := errors.New("boom")
	assert.Equal(t, plain, asConflict(plain))
}

// fakeTx stands in for a pgx transaction. Only the methods the store calls
// are implemented; anything else panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	row        pgx.Row
	execSQL    []string
	execErrAt  int // fail the nth Exec, 1-based; 0 never fails
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	if t.execErrAt != 0 && len(t.execSQL) == t.execErrAt {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return t.row
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeDB hands out one transaction and refuses everything else, so a store
// method that reads outside its transaction fails loudly.
type fakeDB struct {
	tx *fakeTx
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) { return db.tx, nil }

func (db *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected pool exec")
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected pool query")
}

func (db *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

func storeDraft() *Draft {
	amt := decimal.NewFromInt(100)
	return &Draft{
		Header: Transaction{
			OrgID:           "org-1",
			Date:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			TransactionType: TypeBill,
			Status:          StatusPaid,
			TotalAmount:     amt,
		},
		Lines: []TransactionLine{
			{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
			{GLAccountID: "gl-ap", Amount: amt, PostingType: Credit},
		},
	}
}

func TestCommitWritesHeaderAndLinesInOneTransaction(t *testing.T) {
	tx := &fakeTx{row: fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "tx-1"
		return nil
	}}}
	s := &Store{Pool: &fakeDB{tx: tx}}

	id, err := s.Commit(context.Background(), storeDraft())
	require.NoError(t, err)
	assert.Equal(t, "tx-1", id)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.Len(t, tx.execSQL, 2) // one insert per line
}

// A failed line insert must roll the whole transaction back so no header
// row survives on its own.
func TestCommitRollsBackWhenLineInsertFails(t *testing.T) {
	tx := &fakeTx{
		row: fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "tx-1"
			return nil
		}},
		execErrAt: 2,
	}
	s := &Store{Pool: &fakeDB{tx: tx}}

	_, err := s.Commit(context.Background(), storeDraft())
	require.Error(t, err)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestReplaceLocksDeletesAndRewritesInOrder(t *testing.T) {
	tx := &fakeTx{row: fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*time.Time)) = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		return nil
	}}}
	s := &Store{Pool: &fakeDB{tx: tx}}

	amt := decimal.NewFromInt(40)
	lines := []TransactionLine{
		{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
		{GLAccountID: "gl-ap", Amount: amt, PostingType: Credit},
	}
	require.NoError(t, s.Replace(context.Background(), "tx-1", lines, false))

	require.Len(t, tx.execSQL, 4)
	assert.Contains(t, tx.execSQL[0], "DELETE FROM transaction_lines")
	assert.Contains(t, tx.execSQL[1], "INSERT INTO transaction_lines")
	assert.Contains(t, tx.execSQL[2], "INSERT INTO transaction_lines")
	assert.Contains(t, tx.execSQL[3], "UPDATE transactions SET total_amount")
	assert.True(t, tx.committed)
}

func TestReplaceHeldLockSurfacesConflict(t *testing.T) {
	tx := &fakeTx{row: fakeRow{scan: func(...any) error {
		return &pgconn.PgError{Code: "55P03"}
	}}}
	s := &Store{Pool: &fakeDB{tx: tx}}

	amt := decimal.NewFromInt(10)
	lines := []TransactionLine{
		{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
		{GLAccountID: "gl-ap", Amount: amt, PostingType: Credit},
	}
	err := s.Replace(context.Background(), "tx-1", lines, false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, tx.execSQL)
}

// A bill edited down to nothing keeps its header: the empty set passes,
// every old line is deleted and the total is recomputed to zero.
func TestReplaceAcceptsEmptyLineSet(t *testing.T) {
	tx := &fakeTx{row: fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*time.Time)) = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		return nil
	}}}
	s := &Store{Pool: &fakeDB{tx: tx}}

	require.NoError(t, s.Replace(context.Background(), "tx-1", nil, true))

	require.Len(t, tx.execSQL, 2)
	assert.Contains(t, tx.execSQL[0], "DELETE FROM transaction_lines")
	assert.Contains(t, tx.execSQL[1], "UPDATE transactions SET total_amount")
	assert.True(t, tx.committed)
}

func TestReplaceMissingTransaction(t *testing.T) {
	tx := &fakeTx{row: fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}
	s := &Store{Pool: &fakeDB{tx: tx}}

	err := s.Replace(context.Background(), "tx-404", nil, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

// verifyStored runs the full draft validator, so a stored transaction that
// lost its bank line is reported as corrupted, not just an imbalance.
func TestVerifyStoredChecksBankPresence(t *testing.T) {
	bank := "gl-bank"
	amt := decimal.NewFromInt(75)
	header := &Transaction{ID: "tx-1", TransactionType: TypeCheck, BankGLAccountID: &bank}

	balancedWithoutBank := []TransactionLine{
		{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
		{GLAccountID: "gl-other", Amount: amt, PostingType: Credit},
	}
	err := verifyStored(header, balancedWithoutBank)
	require.ErrorIs(t, err, ErrCorrupted)
	assert.Contains(t, err.Error(), "tx-1")

	withBank := []TransactionLine{
		{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
		{GLAccountID: bank, Amount: amt, PostingType: Credit},
	}
	assert.NoError(t, verifyStored(header, withBank))

	unbalanced := []TransactionLine{
		{GLAccountID: "gl-exp", Amount: amt, PostingType: Debit},
		{GLAccountID: bank, Amount: decimal.NewFromInt(80), PostingType: Credit},
	}
	assert.ErrorIs(t, verifyStored(header, unbalanced), ErrCorrupted)
}
