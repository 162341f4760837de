package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeBill           TransactionType = "Bill"
	TypeCheck          TransactionType = "Check"
	TypeDeposit        TransactionType = "Deposit"
	TypeTransfer       TransactionType = "Transfer"
	TypeGeneralJournal TransactionType = "GeneralJournalEntry"
	TypeOther          TransactionType = "Other"
)

type Status string

const (
	StatusPaid      Status = "Paid"
	StatusCancelled Status = "Cancelled"
)

type PostingType string

const (
	Debit  PostingType = "Debit"
	Credit PostingType = "Credit"
)

// SyncStatus tracks reconciliation with the external ledger provider. It is
// persisted on the transaction header and only ever changes after the local
// commit has succeeded.
type SyncStatus string

const (
	SyncNone    SyncStatus = "none"
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// AccountEntityType says which accounting entity a posting is attributed to
// when pushed to the external provider.
const (
	EntityCompany = "Company"
	EntityRental  = "Rental"
)

// Transaction is the header row. TotalAmount always equals the debit-side sum
// of its lines.
type Transaction struct {
	ID                    string          `db:"id" json:"id"`
	OrgID                 string          `db:"org_id" json:"org_id"`
	Date                  time.Time       `db:"date" json:"date"`
	Memo                  *string         `db:"memo" json:"memo,omitempty"`
	TransactionType       TransactionType `db:"transaction_type" json:"transaction_type"`
	Status                Status          `db:"status" json:"status"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	BankGLAccountID       *string         `db:"bank_gl_account_id" json:"bank_gl_account_id,omitempty"`
	CheckNumber           *string         `db:"check_number" json:"check_number,omitempty"`
	PayeeName             *string         `db:"payee_name" json:"payee_name,omitempty"`
	PayeeType             *string         `db:"payee_type" json:"payee_type,omitempty"`
	PayeeExternalID       *int64          `db:"payee_external_id" json:"payee_external_id,omitempty"`
	ExternalTransactionID *int64          `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	ExternalSyncStatus    SyncStatus      `db:"external_sync_status" json:"external_sync_status"`
	ExternalSyncError     *string         `db:"external_sync_error" json:"external_sync_error,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// TransactionLine is one posting. Amount is always a positive magnitude; the
// direction lives in PostingType, never in the number.
type TransactionLine struct {
	ID                 string          `db:"id" json:"id"`
	TransactionID      string          `db:"transaction_id" json:"transaction_id"`
	GLAccountID        string          `db:"gl_account_id" json:"gl_account_id"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	PostingType        PostingType     `db:"posting_type" json:"posting_type"`
	Date               time.Time       `db:"date" json:"date"`
	Memo               *string         `db:"memo" json:"memo,omitempty"`
	PropertyID         *string         `db:"property_id" json:"property_id,omitempty"`
	UnitID             *string         `db:"unit_id" json:"unit_id,omitempty"`
	AccountEntityType  string          `db:"account_entity_type" json:"account_entity_type"`
	AccountEntityID    *int64          `db:"account_entity_id" json:"account_entity_id,omitempty"`
	ExternalPropertyID *int64          `db:"external_property_id" json:"external_property_id,omitempty"`
	ExternalUnitID     *int64          `db:"external_unit_id" json:"external_unit_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Draft is an uncommitted header plus its postings, as assembled by the
// allocation engine. Pushable marks operations that are meant to be sent to
// the external ledger provider after the local commit.
type Draft struct {
	Header   Transaction
	Lines    []TransactionLine
	Pushable bool
}

// DebitTotal sums the debit side of a line set.
func DebitTotal(lines []TransactionLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.PostingType == Debit {
			total = total.Add(l.Amount)
		}
	}
	return total
}

// CreditTotal sums the credit side of a line set.
func CreditTotal(lines []TransactionLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.PostingType == Credit {
			total = total.Add(l.Amount)
		}
	}
	return total
}
