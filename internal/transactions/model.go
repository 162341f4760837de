package transactions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bbabel1/property-manager-sub011/internal/allocation"
)

// allocationDTO is the wire form of one bill, check or deposit slice.
type allocationDTO struct {
	GLAccountID        string          `json:"gl_account_id"`
	Amount             decimal.Decimal `json:"amount"`
	Memo               *string         `json:"memo,omitempty"`
	PropertyID         *string         `json:"property_id,omitempty"`
	UnitID             *string         `json:"unit_id,omitempty"`
	ExternalPropertyID *int64          `json:"external_property_id,omitempty"`
	ExternalUnitID     *int64          `json:"external_unit_id,omitempty"`
	EntityType         string          `json:"entity_type,omitempty"`
	EntityID           *int64          `json:"entity_id,omitempty"`
}

func (a allocationDTO) toAllocation() allocation.Allocation {
	return allocation.Allocation{
		GLAccountID:        a.GLAccountID,
		Amount:             a.Amount,
		Memo:               a.Memo,
		PropertyID:         a.PropertyID,
		UnitID:             a.UnitID,
		ExternalPropertyID: a.ExternalPropertyID,
		ExternalUnitID:     a.ExternalUnitID,
		EntityType:         a.EntityType,
		EntityID:           a.EntityID,
	}
}

func toAllocations(dtos []allocationDTO) []allocation.Allocation {
	out := make([]allocation.Allocation, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toAllocation())
	}
	return out
}

type payeeDTO struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ExternalID *int64 `json:"external_id,omitempty"`
}

func (p payeeDTO) toPayee() allocation.Payee {
	return allocation.Payee{Name: p.Name, Type: p.Type, ExternalID: p.ExternalID}
}

type createBillRequest struct {
	OrgID           string          `json:"org_id"`
	Date            string          `json:"date"`
	Memo            *string         `json:"memo,omitempty"`
	CreditAccountID *string         `json:"credit_account_id,omitempty"`
	Vendor          payeeDTO        `json:"vendor"`
	Allocations     []allocationDTO `json:"allocations"`
}

// Bank-scoped requests take the bank GL account from the route, the way the
// provider scopes the same operations to a bank account.
type createCheckRequest struct {
	OrgID       string          `json:"org_id"`
	Date        string          `json:"date"`
	Memo        *string         `json:"memo,omitempty"`
	CheckNumber *string         `json:"check_number,omitempty"`
	Vendor      payeeDTO        `json:"vendor"`
	Allocations []allocationDTO `json:"allocations"`
}

type createDepositRequest struct {
	OrgID        string          `json:"org_id"`
	Date         string          `json:"date"`
	Memo         *string         `json:"memo,omitempty"`
	PaymentTotal decimal.Decimal `json:"payment_total"`
	Allocations  []allocationDTO `json:"allocations"`
}

type createWithdrawalRequest struct {
	OrgID       string          `json:"org_id"`
	Date        string          `json:"date"`
	Memo        *string         `json:"memo,omitempty"`
	GLAccountID string          `json:"gl_account_id"`
	Amount      decimal.Decimal `json:"amount"`
	PropertyID  *string         `json:"property_id,omitempty"`
	UnitID      *string         `json:"unit_id,omitempty"`
}

type createTransferRequest struct {
	OrgID             string          `json:"org_id"`
	Date              string          `json:"date"`
	Memo              *string         `json:"memo,omitempty"`
	TargetGLAccountID string          `json:"target_gl_account_id"`
	Amount            decimal.Decimal `json:"amount"`
}

type createOwnerDrawRequest struct {
	OrgID             string          `json:"org_id"`
	Date              string          `json:"date"`
	Memo              *string         `json:"memo,omitempty"`
	BankGLAccountID   string          `json:"bank_gl_account_id"`
	EquityGLAccountID string          `json:"equity_gl_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Owner             payeeDTO        `json:"owner"`
	PropertyID        *string         `json:"property_id,omitempty"`
}

type journalLineDTO struct {
	GLAccountID string          `json:"gl_account_id"`
	Amount      decimal.Decimal `json:"amount"`
	PostingType string          `json:"posting_type"`
	Memo        *string         `json:"memo,omitempty"`
	PropertyID  *string         `json:"property_id,omitempty"`
	UnitID      *string         `json:"unit_id,omitempty"`
	EntityType  string          `json:"entity_type,omitempty"`
	EntityID    *int64          `json:"entity_id,omitempty"`
}

type createJournalRequest struct {
	OrgID string           `json:"org_id"`
	Date  string           `json:"date"`
	Memo  *string          `json:"memo,omitempty"`
	Lines []journalLineDTO `json:"lines"`
}

type updateHeaderRequest struct {
	Date   *string `json:"date,omitempty"`
	Memo   *string `json:"memo,omitempty"`
	Status *string `json:"status,omitempty"`
}

type replaceLinesRequest struct {
	OrgID           string          `json:"org_id"`
	Memo            *string         `json:"memo,omitempty"`
	CreditAccountID *string         `json:"credit_account_id,omitempty"`
	Allocations     []allocationDTO `json:"allocations"`
}

type replaceJournalRequest struct {
	Lines []journalLineDTO `json:"lines"`
}

type createResponse struct {
	ID string `json:"id"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
