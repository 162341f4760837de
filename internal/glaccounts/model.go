package glaccounts

import "time"

// Category values mirror the gl_account_categories table. The "deposit"
// category marks escrow accounts holding tenant security deposits.
const (
	CategoryAsset     = "asset"
	CategoryBank      = "bank"
	CategoryIncome    = "income"
	CategoryExpense   = "expense"
	CategoryLiability = "liability"
	CategoryDeposit   = "deposit"
	CategoryEquity    = "equity"
)

// GlAccount is a chart-of-accounts entry. The ledger core consumes these
// read-only; chart setup happens elsewhere.
type GlAccount struct {
	ID                  string    `db:"id" json:"id"`
	OrgID               string    `db:"org_id" json:"org_id"`
	Name                string    `db:"name" json:"name"`
	Category            string    `db:"category" json:"category"`
	IsBankAccount       bool      `db:"is_bank_account" json:"is_bank_account"`
	ExternalGLAccountID *int64    `db:"external_gl_account_id" json:"external_gl_account_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// HasExternalMapping reports whether the account is linked to the external
// ledger provider.
func (a *GlAccount) HasExternalMapping() bool {
	return a != nil && a.ExternalGLAccountID != nil
}

// IsEscrow reports whether postings on this account belong to the escrow
// sub-ledger.
func (a *GlAccount) IsEscrow() bool {
	return a != nil && a.Category == CategoryDeposit
}
