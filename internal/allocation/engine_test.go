package allocation

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

type fakeAccounts struct {
	accounts map[string]*glaccounts.GlAccount
	ap       *glaccounts.GlAccount
	udf      *glaccounts.GlAccount
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*glaccounts.GlAccount, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, glaccounts.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) GetBank(ctx context.Context, id string) (*glaccounts.GlAccount, error) {
	a, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsBankAccount {
		return nil, glaccounts.ErrNotBankAccount
	}
	return a, nil
}

func (f *fakeAccounts) ResolveAccountsPayable(_ context.Context, _ string) (*glaccounts.GlAccount, error) {
	if f.ap == nil {
		return nil, glaccounts.ErrNoAccountsPayable
	}
	return f.ap, nil
}

func (f *fakeAccounts) ResolveUndepositedFunds(_ context.Context, _ string) (*glaccounts.GlAccount, error) {
	if f.udf == nil {
		return nil, glaccounts.ErrNoUndepositedFunds
	}
	return f.udf, nil
}

func extID(n int64) *int64 { return &n }

func testAccounts() *fakeAccounts {
	mk := func(id, cat string, bank bool) *glaccounts.GlAccount {
		return &glaccounts.GlAccount{ID: id, Name: id, Category: cat, IsBankAccount: bank}
	}
	f := &fakeAccounts{accounts: map[string]*glaccounts.GlAccount{
		"gl-operating": mk("gl-operating", glaccounts.CategoryBank, true),
		"gl-trust":     mk("gl-trust", glaccounts.CategoryBank, true),
		"gl-repairs":   mk("gl-repairs", glaccounts.CategoryExpense, false),
		"gl-utilities": mk("gl-utilities", glaccounts.CategoryExpense, false),
		"gl-rent":      mk("gl-rent", glaccounts.CategoryIncome, false),
		"gl-draw":      mk("gl-draw", glaccounts.CategoryEquity, false),
	}}
	f.accounts["gl-operating"].ExternalGLAccountID = extID(9101)
	f.accounts["gl-trust"].ExternalGLAccountID = extID(9102)
	f.accounts["gl-draw"].ExternalGLAccountID = extID(9103)
	f.ap = mk("gl-ap", glaccounts.CategoryLiability, false)
	f.accounts["gl-ap"] = f.ap
	f.udf = mk("gl-udf", glaccounts.CategoryAsset, false)
	f.accounts["gl-udf"] = f.udf
	return f
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestBill(t *testing.T) {
	e := NewEngine(testAccounts())
	prop := "prop-1"
	unit := "unit-1a"

	d, err := e.Bill(context.Background(), BillInput{
		OrgID:  "org-1",
		Date:   testDate,
		Vendor: Payee{Name: "Acme Plumbing", Type: "Vendor"},
		Allocations: []Allocation{
			{GLAccountID: "gl-repairs", Amount: money("300.00"), PropertyID: &prop, UnitID: &unit},
			{GLAccountID: "gl-utilities", Amount: money("150.00"), PropertyID: &prop},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeBill, d.Header.TransactionType)
	assert.True(t, d.Header.TotalAmount.Equal(money("450.00")))
	assert.True(t, d.Pushable)
	require.Len(t, d.Lines, 3)

	credit := d.Lines[2]
	assert.Equal(t, "gl-ap", credit.GLAccountID)
	assert.Equal(t, ledger.Credit, credit.PostingType)
	assert.True(t, credit.Amount.Equal(money("450.00")))
	require.NotNil(t, credit.PropertyID)
	assert.Equal(t, prop, *credit.PropertyID)

	assert.True(t, ledger.Balanced(d.Lines))
}

func TestBillWithoutAccountsPayable(t *testing.T) {
	f := testAccounts()
	f.ap = nil
	e := NewEngine(f)

	_, err := e.Bill(context.Background(), BillInput{
		OrgID:       "org-1",
		Date:        testDate,
		Allocations: []Allocation{{GLAccountID: "gl-repairs", Amount: money("10.00")}},
	})
	assert.ErrorIs(t, err, ErrMissingCreditAccount)
}

func TestBillMixedProperties(t *testing.T) {
	e := NewEngine(testAccounts())
	p1, p2 := "prop-1", "prop-2"

	_, err := e.Bill(context.Background(), BillInput{
		OrgID: "org-1",
		Date:  testDate,
		Allocations: []Allocation{
			{GLAccountID: "gl-repairs", Amount: money("10.00"), PropertyID: &p1},
			{GLAccountID: "gl-utilities", Amount: money("20.00"), PropertyID: &p2},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrMixedProperties)
}

func TestCheck(t *testing.T) {
	e := NewEngine(testAccounts())
	prop := "prop-1"

	d, err := e.Check(context.Background(), CheckInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-operating",
		Vendor:          Payee{Name: "Acme Plumbing", Type: "Vendor"},
		Allocations: []Allocation{
			{GLAccountID: "gl-repairs", Amount: money("220.00"), PropertyID: &prop},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeCheck, d.Header.TransactionType)
	require.NotNil(t, d.Header.BankGLAccountID)
	assert.Equal(t, "gl-operating", *d.Header.BankGLAccountID)
	require.Len(t, d.Lines, 2)
	assert.Equal(t, ledger.Credit, d.Lines[1].PostingType)
	assert.Equal(t, "gl-operating", d.Lines[1].GLAccountID)
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestCheckRejectsNonBank(t *testing.T) {
	e := NewEngine(testAccounts())

	_, err := e.Check(context.Background(), CheckInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-repairs",
		Allocations:     []Allocation{{GLAccountID: "gl-utilities", Amount: money("5.00")}},
	})
	assert.ErrorIs(t, err, glaccounts.ErrNotBankAccount)
}

func TestDeposit(t *testing.T) {
	e := NewEngine(testAccounts())
	unit := "unit-1a"

	d, err := e.Deposit(context.Background(), DepositInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-trust",
		Allocations: []Allocation{
			{GLAccountID: "gl-rent", Amount: money("1800.00"), UnitID: &unit},
			{GLAccountID: "gl-rent", Amount: money("75.00"), UnitID: &unit},
		},
	})
	require.NoError(t, err)

	require.Len(t, d.Lines, 3)
	assert.Equal(t, ledger.Debit, d.Lines[0].PostingType)
	assert.Equal(t, "gl-trust", d.Lines[0].GLAccountID)
	assert.True(t, d.Lines[0].Amount.Equal(money("1875.00")))
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestDepositClearsUndepositedFunds(t *testing.T) {
	e := NewEngine(testAccounts())

	d, err := e.Deposit(context.Background(), DepositInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-trust",
		PaymentTotal:    money("1200.00"),
		Allocations: []Allocation{
			{GLAccountID: "gl-rent", Amount: money("50.00")},
		},
	})
	require.NoError(t, err)

	require.Len(t, d.Lines, 3)
	assert.True(t, d.Lines[0].Amount.Equal(money("1250.00")))
	assert.Equal(t, "gl-udf", d.Lines[1].GLAccountID)
	assert.Equal(t, ledger.Credit, d.Lines[1].PostingType)
	assert.True(t, d.Lines[1].Amount.Equal(money("1200.00")))
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestDepositRejectsZeroTotal(t *testing.T) {
	e := NewEngine(testAccounts())

	_, err := e.Deposit(context.Background(), DepositInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-trust",
		Allocations:     []Allocation{{GLAccountID: "gl-rent", Amount: money("0.00")}},
	})
	assert.ErrorIs(t, err, ErrNoAllocations)
}

func TestBillReplacementWithZeroTotalHasNoLines(t *testing.T) {
	e := NewEngine(testAccounts())

	lines, err := e.BillReplacement(context.Background(), "org-1", nil, nil, []Allocation{
		{GLAccountID: "gl-repairs", Amount: money("0.00")},
	})
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = e.BillReplacement(context.Background(), "org-1", nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestBillReplacementKeepsExplicitCreditAccount(t *testing.T) {
	f := testAccounts()
	e := NewEngine(f)
	other := "gl-trust-payable"
	f.accounts[other] = &glaccounts.GlAccount{ID: other, Name: other, Category: glaccounts.CategoryLiability}

	lines, err := e.BillReplacement(context.Background(), "org-1", nil, &other, []Allocation{
		{GLAccountID: "gl-repairs", Amount: money("75.00")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, other, lines[1].GLAccountID)
	assert.Equal(t, ledger.Credit, lines[1].PostingType)
}

func TestBillWithExplicitCreditAccount(t *testing.T) {
	f := testAccounts()
	f.ap = nil // must not fall back to AP resolution
	e := NewEngine(f)
	other := "gl-owner-payable"
	f.accounts[other] = &glaccounts.GlAccount{ID: other, Name: other, Category: glaccounts.CategoryLiability}

	d, err := e.Bill(context.Background(), BillInput{
		OrgID:             "org-1",
		Date:              testDate,
		CreditGLAccountID: &other,
		Allocations:       []Allocation{{GLAccountID: "gl-repairs", Amount: money("30.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, other, d.Lines[len(d.Lines)-1].GLAccountID)
}

func TestBillDropsZeroAllocations(t *testing.T) {
	e := NewEngine(testAccounts())

	d, err := e.Bill(context.Background(), BillInput{
		OrgID: "org-1",
		Date:  testDate,
		Allocations: []Allocation{
			{GLAccountID: "gl-repairs", Amount: money("40.00")},
			{GLAccountID: "gl-utilities", Amount: money("0.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.Lines, 2)
	assert.True(t, d.Header.TotalAmount.Equal(money("40.00")))
}

func TestWithdrawal(t *testing.T) {
	e := NewEngine(testAccounts())

	d, err := e.Withdrawal(context.Background(), WithdrawalInput{
		OrgID:           "org-1",
		Date:            testDate,
		BankGLAccountID: "gl-operating",
		GLAccountID:     "gl-repairs",
		Amount:          money("99.50"),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeOther, d.Header.TransactionType)
	assert.False(t, d.Pushable)
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestTransfer(t *testing.T) {
	e := NewEngine(testAccounts())

	d, err := e.Transfer(context.Background(), TransferInput{
		OrgID:             "org-1",
		Date:              testDate,
		SourceGLAccountID: "gl-operating",
		TargetGLAccountID: "gl-trust",
		Amount:            money("5000.00"),
	})
	require.NoError(t, err)

	require.Len(t, d.Lines, 2)
	assert.Equal(t, "gl-trust", d.Lines[0].GLAccountID)
	assert.Equal(t, ledger.Debit, d.Lines[0].PostingType)
	assert.Equal(t, "gl-operating", d.Lines[1].GLAccountID)
	assert.Equal(t, ledger.Credit, d.Lines[1].PostingType)
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestTransferSameAccount(t *testing.T) {
	e := NewEngine(testAccounts())

	_, err := e.Transfer(context.Background(), TransferInput{
		OrgID:             "org-1",
		Date:              testDate,
		SourceGLAccountID: "gl-operating",
		TargetGLAccountID: "gl-operating",
		Amount:            money("1.00"),
	})
	assert.ErrorIs(t, err, ErrSameAccount)
}

func TestOwnerDraw(t *testing.T) {
	e := NewEngine(testAccounts())
	prop := "prop-1"
	ownerID := int64(4410)

	d, err := e.OwnerDraw(context.Background(), OwnerDrawInput{
		OrgID:             "org-1",
		Date:              testDate,
		BankGLAccountID:   "gl-operating",
		EquityGLAccountID: "gl-draw",
		Amount:            money("2500.00"),
		Owner:             Payee{Name: "B. Ortega", Type: "RentalOwner", ExternalID: &ownerID},
		PropertyID:        &prop,
	})
	require.NoError(t, err)

	require.Len(t, d.Lines, 2)
	assert.Equal(t, "gl-operating", d.Lines[0].GLAccountID)
	assert.Equal(t, ledger.Debit, d.Lines[0].PostingType)
	assert.Equal(t, "gl-draw", d.Lines[1].GLAccountID)
	assert.Equal(t, ledger.Credit, d.Lines[1].PostingType)
	assert.True(t, d.Pushable)
	assert.True(t, ledger.Balanced(d.Lines))
}

func TestOwnerDrawRequiresExternalMapping(t *testing.T) {
	f := testAccounts()
	f.accounts["gl-draw"].ExternalGLAccountID = nil
	e := NewEngine(f)

	_, err := e.OwnerDraw(context.Background(), OwnerDrawInput{
		OrgID:             "org-1",
		Date:              testDate,
		BankGLAccountID:   "gl-operating",
		EquityGLAccountID: "gl-draw",
		Amount:            money("100.00"),
		Owner:             Payee{Name: "B. Ortega", Type: "RentalOwner"},
	})
	assert.ErrorIs(t, err, ErrMissingExternalMapping)
}

// Every draft the engine emits must balance, whatever the allocation mix.
func TestBillAlwaysBalances(t *testing.T) {
	e := NewEngine(testAccounts())
	rng := rand.New(rand.NewSource(42))
	prop := "prop-1"
	accounts := []string{"gl-repairs", "gl-utilities"}

	for i := 0; i < 50; i++ {
		n := 1 + rng.Intn(6)
		allocs := make([]Allocation, 0, n)
		for j := 0; j < n; j++ {
			cents := int64(1 + rng.Intn(500000))
			allocs = append(allocs, Allocation{
				GLAccountID: accounts[rng.Intn(len(accounts))],
				Amount:      decimal.New(cents, -2),
				PropertyID:  &prop,
			})
		}
		d, err := e.Bill(context.Background(), BillInput{
			OrgID: "org-1", Date: testDate, Allocations: allocs,
		})
		require.NoError(t, err)
		require.True(t, ledger.Balanced(d.Lines), "iteration %d", i)
	}
}
