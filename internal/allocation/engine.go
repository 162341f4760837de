package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

var (
	ErrMissingCreditAccount = errors.New("allocation: no credit account available")
	ErrSameAccount          = errors.New("allocation: source and target bank accounts are the same")
	ErrNoAllocations        = errors.New("allocation: at least one non-zero allocation is required")
	// ErrMissingExternalMapping rejects owner draws whose accounts have no
	// provider id; they could never be pushed and the draw exists to be
	// mirrored on the owner's external statement.
	ErrMissingExternalMapping = errors.New("allocation: gl account has no external mapping")
)

// AccountResolver is the slice of the GL account repository the engine needs.
type AccountResolver interface {
	Get(ctx context.Context, id string) (*glaccounts.GlAccount, error)
	GetBank(ctx context.Context, id string) (*glaccounts.GlAccount, error)
	ResolveAccountsPayable(ctx context.Context, orgID string) (*glaccounts.GlAccount, error)
	ResolveUndepositedFunds(ctx context.Context, orgID string) (*glaccounts.GlAccount, error)
}

// Engine turns money-movement requests into balanced ledger drafts. It never
// writes anything; committing is the caller's job.
type Engine struct {
	Accounts AccountResolver
}

func NewEngine(accounts AccountResolver) *Engine {
	return &Engine{Accounts: accounts}
}

// Payee is denormalized onto the transaction header so the row stays readable
// after the vendor or owner record changes.
type Payee struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ExternalID *int64 `json:"external_id,omitempty"`
}

// Allocation is one slice of a bill, check or deposit attributed to a
// property and optionally a unit.
type Allocation struct {
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

func (a Allocation) toLine(pt ledger.PostingType) ledger.TransactionLine {
	entity := a.EntityType
	if entity == "" {
		entity = ledger.EntityRental
	}
	return ledger.TransactionLine{
		GLAccountID:        a.GLAccountID,
		Amount:             a.Amount,
		PostingType:        pt,
		Memo:               a.Memo,
		PropertyID:         a.PropertyID,
		UnitID:             a.UnitID,
		ExternalPropertyID: a.ExternalPropertyID,
		ExternalUnitID:     a.ExternalUnitID,
		AccountEntityType:  entity,
		AccountEntityID:    a.EntityID,
	}
}

func sumAllocations(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}

// nonZero drops zero-amount allocations so a bill edit that zeroes a slice
// out does not leave a dangling debit row.
func nonZero(allocs []Allocation) []Allocation {
	kept := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		if a.Amount.IsPositive() {
			kept = append(kept, a)
		}
	}
	return kept
}

type BillInput struct {
	OrgID string
	Date  time.Time
	Memo  *string
	// CreditGLAccountID overrides the org's Accounts Payable resolution when
	// the caller posts the payable to a specific account.
	CreditGLAccountID *string
	Vendor            Payee
	Allocations       []Allocation
}

// creditAccount resolves the account a bill's payable side posts to:
// an explicit id when given, otherwise the org's Accounts Payable.
func (e *Engine) creditAccount(ctx context.Context, orgID string, explicit *string) (*glaccounts.GlAccount, error) {
	if explicit != nil && *explicit != "" {
		return e.Accounts.Get(ctx, *explicit)
	}
	ap, err := e.Accounts.ResolveAccountsPayable(ctx, orgID)
	if err != nil {
		if errors.Is(err, glaccounts.ErrNoAccountsPayable) {
			return nil, fmt.Errorf("%w: %v", ErrMissingCreditAccount, err)
		}
		return nil, err
	}
	return ap, nil
}

// Bill debits each expense allocation and credits the payable account for
// the total. The credit carries the same property attribution as the debits
// so the payable shows up on the property's books.
func (e *Engine) Bill(ctx context.Context, in BillInput) (*ledger.Draft, error) {
	allocs := nonZero(in.Allocations)
	if len(allocs) == 0 {
		return nil, ErrNoAllocations
	}
	ap, err := e.creditAccount(ctx, in.OrgID, in.CreditGLAccountID)
	if err != nil {
		return nil, err
	}

	total := sumAllocations(allocs)
	lines := make([]ledger.TransactionLine, 0, len(allocs)+1)
	for _, a := range allocs {
		lines = append(lines, a.toLine(ledger.Debit))
	}
	credit := allocs[0]
	credit.GLAccountID = ap.ID
	credit.Amount = total
	credit.Memo = in.Memo
	lines = append(lines, credit.toLine(ledger.Credit))

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeBill,
			Status:          ledger.StatusPaid,
			TotalAmount:     total,
			PayeeName:       strPtr(in.Vendor.Name),
			PayeeType:       strPtr(in.Vendor.Type),
			PayeeExternalID: in.Vendor.ExternalID,
		},
		Lines:    lines,
		Pushable: true,
	}
	return d, ledger.ValidateDraft(d)
}

// BillReplacement builds the replacement line set for an existing bill. The
// caller hands the result to Store.Replace, which does the locking. The
// credit account is the explicit id when given, otherwise the caller passes
// the account from the bill's existing credit line, otherwise the org's
// Accounts Payable resolves. A zero debit total yields an empty line set:
// the bill keeps its header with no postings and a zero total.
func (e *Engine) BillReplacement(ctx context.Context, orgID string, memo *string, creditID *string, allocs []Allocation) ([]ledger.TransactionLine, error) {
	allocs = nonZero(allocs)
	if len(allocs) == 0 {
		return []ledger.TransactionLine{}, nil
	}
	ap, err := e.creditAccount(ctx, orgID, creditID)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.TransactionLine, 0, len(allocs)+1)
	for _, a := range allocs {
		lines = append(lines, a.toLine(ledger.Debit))
	}
	credit := allocs[0]
	credit.GLAccountID = ap.ID
	credit.Amount = sumAllocations(allocs)
	credit.Memo = memo
	lines = append(lines, credit.toLine(ledger.Credit))
	return lines, ledger.ValidateLines(lines)
}

type CheckInput struct {
	OrgID           string
	Date            time.Time
	Memo            *string
	CheckNumber     *string
	BankGLAccountID string
	Vendor          Payee
	Allocations     []Allocation
}

// Check debits each allocation and credits the bank account for the total.
func (e *Engine) Check(ctx context.Context, in CheckInput) (*ledger.Draft, error) {
	if len(in.Allocations) == 0 {
		return nil, ErrNoAllocations
	}
	bank, err := e.Accounts.GetBank(ctx, in.BankGLAccountID)
	if err != nil {
		return nil, err
	}

	total := sumAllocations(in.Allocations)
	lines := make([]ledger.TransactionLine, 0, len(in.Allocations)+1)
	for _, a := range in.Allocations {
		lines = append(lines, a.toLine(ledger.Debit))
	}
	credit := in.Allocations[0]
	credit.GLAccountID = bank.ID
	credit.Amount = total
	credit.Memo = in.Memo
	lines = append(lines, credit.toLine(ledger.Credit))

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeCheck,
			Status:          ledger.StatusPaid,
			TotalAmount:     total,
			BankGLAccountID: &bank.ID,
			CheckNumber:     in.CheckNumber,
			PayeeName:       strPtr(in.Vendor.Name),
			PayeeType:       strPtr(in.Vendor.Type),
			PayeeExternalID: in.Vendor.ExternalID,
		},
		Lines:    lines,
		Pushable: true,
	}
	return d, ledger.ValidateDraft(d)
}

// CheckReplacement builds the replacement line set for an existing check,
// crediting the given bank account for the new total.
func (e *Engine) CheckReplacement(ctx context.Context, bankGLAccountID string, memo *string, allocs []Allocation) ([]ledger.TransactionLine, error) {
	allocs = nonZero(allocs)
	if len(allocs) == 0 {
		return nil, ErrNoAllocations
	}
	bank, err := e.Accounts.GetBank(ctx, bankGLAccountID)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.TransactionLine, 0, len(allocs)+1)
	for _, a := range allocs {
		lines = append(lines, a.toLine(ledger.Debit))
	}
	credit := allocs[0]
	credit.GLAccountID = bank.ID
	credit.Amount = sumAllocations(allocs)
	credit.Memo = memo
	lines = append(lines, credit.toLine(ledger.Credit))
	return lines, ledger.ValidateLines(lines)
}

type DepositInput struct {
	OrgID           string
	Date            time.Time
	Memo            *string
	BankGLAccountID string
	// PaymentTotal is the sum of received payments being cleared out of
	// undeposited funds as part of this deposit. Zero means none.
	PaymentTotal decimal.Decimal
	Allocations  []Allocation
}

// Deposit debits the bank for the total, credits undeposited funds for the
// cleared payment total and credits each other-item allocation.
func (e *Engine) Deposit(ctx context.Context, in DepositInput) (*ledger.Draft, error) {
	allocs := nonZero(in.Allocations)
	total := sumAllocations(allocs).Add(in.PaymentTotal)
	if !total.IsPositive() {
		return nil, ErrNoAllocations
	}
	bank, err := e.Accounts.GetBank(ctx, in.BankGLAccountID)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.TransactionLine, 0, len(allocs)+2)
	debit := Allocation{GLAccountID: bank.ID, Amount: total, Memo: in.Memo, EntityType: ledger.EntityCompany}
	if len(allocs) > 0 {
		debit.PropertyID = allocs[0].PropertyID
		debit.ExternalPropertyID = allocs[0].ExternalPropertyID
		debit.EntityType = allocs[0].EntityType
		debit.EntityID = allocs[0].EntityID
	}
	lines = append(lines, debit.toLine(ledger.Debit))
	if in.PaymentTotal.IsPositive() {
		udf, err := e.Accounts.ResolveUndepositedFunds(ctx, in.OrgID)
		if err != nil {
			if errors.Is(err, glaccounts.ErrNoUndepositedFunds) {
				return nil, fmt.Errorf("%w: %v", ErrMissingCreditAccount, err)
			}
			return nil, err
		}
		cleared := Allocation{GLAccountID: udf.ID, Amount: in.PaymentTotal, Memo: in.Memo, EntityType: ledger.EntityCompany}
		lines = append(lines, cleared.toLine(ledger.Credit))
	}
	for _, a := range allocs {
		lines = append(lines, a.toLine(ledger.Credit))
	}

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeDeposit,
			Status:          ledger.StatusPaid,
			TotalAmount:     total,
			BankGLAccountID: &bank.ID,
		},
		Lines:    lines,
		Pushable: true,
	}
	return d, ledger.ValidateDraft(d)
}

type WithdrawalInput struct {
	OrgID           string
	Date            time.Time
	Memo            *string
	BankGLAccountID string
	GLAccountID     string
	Amount          decimal.Decimal
	PropertyID      *string
	UnitID          *string
}

// Withdrawal moves money out of a bank account against an offset account.
// It stays a local Other transaction and is not pushed to the provider.
func (e *Engine) Withdrawal(ctx context.Context, in WithdrawalInput) (*ledger.Draft, error) {
	bank, err := e.Accounts.GetBank(ctx, in.BankGLAccountID)
	if err != nil {
		return nil, err
	}
	if _, err := e.Accounts.Get(ctx, in.GLAccountID); err != nil {
		return nil, err
	}

	debit := Allocation{
		GLAccountID: in.GLAccountID, Amount: in.Amount, Memo: in.Memo,
		PropertyID: in.PropertyID, UnitID: in.UnitID,
	}
	credit := debit
	credit.GLAccountID = bank.ID

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeOther,
			Status:          ledger.StatusPaid,
			TotalAmount:     in.Amount,
			BankGLAccountID: &bank.ID,
		},
		Lines: []ledger.TransactionLine{
			debit.toLine(ledger.Debit),
			credit.toLine(ledger.Credit),
		},
	}
	return d, ledger.ValidateDraft(d)
}

type TransferInput struct {
	OrgID             string
	Date              time.Time
	Memo              *string
	SourceGLAccountID string
	TargetGLAccountID string
	Amount            decimal.Decimal
}

// Transfer debits the target bank and credits the source bank. Both sides
// must be distinct bank accounts.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*ledger.Draft, error) {
	if in.SourceGLAccountID == in.TargetGLAccountID {
		return nil, ErrSameAccount
	}
	source, err := e.Accounts.GetBank(ctx, in.SourceGLAccountID)
	if err != nil {
		return nil, err
	}
	target, err := e.Accounts.GetBank(ctx, in.TargetGLAccountID)
	if err != nil {
		return nil, err
	}

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeTransfer,
			Status:          ledger.StatusPaid,
			TotalAmount:     in.Amount,
			BankGLAccountID: &source.ID,
		},
		Lines: []ledger.TransactionLine{
			{GLAccountID: target.ID, Amount: in.Amount, PostingType: ledger.Debit, Memo: in.Memo, AccountEntityType: ledger.EntityCompany},
			{GLAccountID: source.ID, Amount: in.Amount, PostingType: ledger.Credit, Memo: in.Memo, AccountEntityType: ledger.EntityCompany},
		},
		Pushable: true,
	}
	return d, ledger.ValidateDraft(d)
}

type OwnerDrawInput struct {
	OrgID             string
	Date              time.Time
	Memo              *string
	BankGLAccountID   string
	EquityGLAccountID string
	Amount            decimal.Decimal
	Owner             Payee
	PropertyID        *string
}

// OwnerDraw records a distribution to a rental owner: debit the bank, credit
// the owner draw equity account attributed to the owner's property.
func (e *Engine) OwnerDraw(ctx context.Context, in OwnerDrawInput) (*ledger.Draft, error) {
	bank, err := e.Accounts.GetBank(ctx, in.BankGLAccountID)
	if err != nil {
		return nil, err
	}
	equity, err := e.Accounts.Get(ctx, in.EquityGLAccountID)
	if err != nil {
		return nil, err
	}
	if !bank.HasExternalMapping() || !equity.HasExternalMapping() {
		return nil, ErrMissingExternalMapping
	}

	credit := Allocation{
		GLAccountID: equity.ID, Amount: in.Amount, Memo: in.Memo,
		PropertyID: in.PropertyID,
	}
	debit := Allocation{GLAccountID: bank.ID, Amount: in.Amount, Memo: in.Memo, EntityType: ledger.EntityCompany}

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeOther,
			Status:          ledger.StatusPaid,
			TotalAmount:     in.Amount,
			BankGLAccountID: &bank.ID,
			PayeeName:       strPtr(in.Owner.Name),
			PayeeType:       strPtr(in.Owner.Type),
			PayeeExternalID: in.Owner.ExternalID,
		},
		Lines: []ledger.TransactionLine{
			debit.toLine(ledger.Debit),
			credit.toLine(ledger.Credit),
		},
		Pushable: true,
	}
	return d, ledger.ValidateDraft(d)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
