package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Movement is one escrow posting for a unit, viewed from the tenant's side:
// credits on deposit accounts hold money, debits release it.
type Movement struct {
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	GLAccountID   string          `db:"gl_account_id" json:"gl_account_id"`
	Date          time.Time       `db:"date" json:"date"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PostingType   string          `db:"posting_type" json:"posting_type"`
	Memo          *string         `db:"memo" json:"memo,omitempty"`
}

// Repo aggregates escrow activity straight from transaction_lines so the
// figures can never drift from the ledger itself.
type Repo struct {
	Pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

// SumByUnit returns the credit and debit totals for a unit across the given
// deposit accounts, up to asOf when set. Magnitudes are taken as absolute
// values so rows imported with signed amounts still aggregate correctly.
func (r *Repo) SumByUnit(ctx context.Context, unitID string, accountIDs []string, asOf *time.Time) (credits, debits decimal.Decimal, err error) {
	err = r.Pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN l.posting_type = 'Credit' THEN ABS(l.amount) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN l.posting_type = 'Debit' THEN ABS(l.amount) ELSE 0 END), 0)
		FROM transaction_lines l
		WHERE l.unit_id = $1 AND l.gl_account_id = ANY($2)
		  AND ($3::date IS NULL OR l.date <= $3)`,
		unitID, accountIDs, asOf,
	).Scan(&credits, &debits)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum escrow lines: %w", err)
	}
	return credits, debits, nil
}

// ListByUnit returns the unit's escrow postings, oldest first, optionally
// bounded to [from, to].
func (r *Repo) ListByUnit(ctx context.Context, unitID string, accountIDs []string, from, to *time.Time) ([]Movement, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT l.transaction_id, l.gl_account_id, l.date, ABS(l.amount), l.posting_type, l.memo
		FROM transaction_lines l
		WHERE l.unit_id = $1 AND l.gl_account_id = ANY($2)
		  AND ($3::date IS NULL OR l.date >= $3)
		  AND ($4::date IS NULL OR l.date <= $4)
		ORDER BY l.date, l.created_at`,
		unitID, accountIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("query escrow lines: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.TransactionID, &m.GLAccountID, &m.Date, &m.Amount, &m.PostingType, &m.Memo); err != nil {
			return nil, fmt.Errorf("scan escrow line: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
