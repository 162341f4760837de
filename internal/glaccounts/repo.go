package glaccounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("gl account not found")
	ErrNotBankAccount = errors.New("gl account is not a bank account")
	// ErrNoAccountsPayable / ErrNoUndepositedFunds indicate the org chart is
	// missing a required special-purpose account.
	ErrNoAccountsPayable  = errors.New("accounts payable gl account not configured")
	ErrNoUndepositedFunds = errors.New("undeposited funds gl account not configured")
)

const accountColumns = `ga.id, ga.org_id, ga.name, COALESCE(gc.category, ''), ga.is_bank_account, ga.external_gl_account_id, ga.created_at`

type Repo struct {
	Pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

func (r *Repo) scanOne(row pgx.Row) (*GlAccount, error) {
	var a GlAccount
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Category, &a.IsBankAccount, &a.ExternalGLAccountID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*GlAccount, error) {
	return r.scanOne(r.Pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM gl_accounts ga
LEFT JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.id = $1`, id))
}

// GetBank loads an account and requires it to be flagged as a bank account.
func (r *Repo) GetBank(ctx context.Context, id string) (*GlAccount, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsBankAccount {
		return nil, fmt.Errorf("%w: %s", ErrNotBankAccount, id)
	}
	return a, nil
}

// GetMany loads a set of accounts keyed by id. Missing ids are reported as
// ErrNotFound so callers never post against an unknown account.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]*GlAccount, error) {
	if len(ids) == 0 {
		return map[string]*GlAccount{}, nil
	}
	rows, err := r.Pool.Query(ctx, `
SELECT `+accountColumns+`
FROM gl_accounts ga
LEFT JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*GlAccount, len(ids))
	for rows.Next() {
		var a GlAccount
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Category, &a.IsBankAccount, &a.ExternalGLAccountID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return out, nil
}

// ResolveAccountsPayable finds the org's A/P account: a liability account
// named "Accounts Payable" (chart convention carried over from the provider
// import).
func (r *Repo) ResolveAccountsPayable(ctx context.Context, orgID string) (*GlAccount, error) {
	a, err := r.scanOne(r.Pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM gl_accounts ga
LEFT JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.org_id = $1
  AND gc.category = 'liability'
  AND lower(ga.name) = 'accounts payable'
ORDER BY ga.created_at
LIMIT 1`, orgID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoAccountsPayable
	}
	return a, err
}

// ResolveUndepositedFunds finds the org's Undeposited Funds clearing account.
func (r *Repo) ResolveUndepositedFunds(ctx context.Context, orgID string) (*GlAccount, error) {
	a, err := r.scanOne(r.Pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM gl_accounts ga
LEFT JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.org_id = $1
  AND lower(ga.name) = 'undeposited funds'
ORDER BY ga.created_at
LIMIT 1`, orgID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoUndepositedFunds
	}
	return a, err
}

// DepositAccountIDs returns all escrow (deposit-category) account ids for the
// org. An empty slice is a configuration gap, not an error; the escrow
// sub-ledger degrades instead of failing.
func (r *Repo) DepositAccountIDs(ctx context.Context, orgID string) ([]string, error) {
	rows, err := r.Pool.Query(ctx, `
SELECT ga.id
FROM gl_accounts ga
JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.org_id = $1 AND gc.category = 'deposit'`, orgID)
	if err != nil {
		return nil, err
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

func (r *Repo) List(ctx context.Context, orgID string) ([]GlAccount, error) {
	rows, err := r.Pool.Query(ctx, `
SELECT `+accountColumns+`
FROM gl_accounts ga
LEFT JOIN gl_account_categories gc ON gc.id = ga.category_id
WHERE ga.org_id = $1
ORDER BY ga.name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GlAccount
	for rows.Next() {
		var a GlAccount
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Category, &a.IsBankAccount, &a.ExternalGLAccountID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
