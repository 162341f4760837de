package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func line(gl string, a string, pt PostingType) TransactionLine {
	return TransactionLine{GLAccountID: gl, Amount: amt(a), PostingType: pt, AccountEntityType: EntityRental}
}

func TestBalanced(t *testing.T) {
	assert.True(t, Balanced([]TransactionLine{
		line("exp", "100.00", Debit),
		line("ap", "100.00", Credit),
	}))

	// one cent off is still inside tolerance
	assert.True(t, Balanced([]TransactionLine{
		line("exp", "100.01", Debit),
		line("ap", "100.00", Credit),
	}))

	assert.False(t, Balanced([]TransactionLine{
		line("exp", "100.02", Debit),
		line("ap", "100.00", Credit),
	}))
}

func TestValidateLines(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, ValidateLines(nil), ErrNoLines)
	})

	t.Run("zero amount", func(t *testing.T) {
		err := ValidateLines([]TransactionLine{line("exp", "0", Debit)})
		assert.ErrorIs(t, err, ErrInvalidPosting)
	})

	t.Run("negative amount", func(t *testing.T) {
		err := ValidateLines([]TransactionLine{line("exp", "-5.00", Credit)})
		assert.ErrorIs(t, err, ErrInvalidPosting)
	})

	t.Run("missing gl account", func(t *testing.T) {
		err := ValidateLines([]TransactionLine{line("", "5.00", Debit)})
		assert.ErrorIs(t, err, ErrInvalidPosting)
	})

	t.Run("bad posting type", func(t *testing.T) {
		l := line("exp", "5.00", "Sideways")
		assert.ErrorIs(t, ValidateLines([]TransactionLine{l}), ErrInvalidPosting)
	})

	t.Run("debit lines on two properties", func(t *testing.T) {
		p1, p2 := "prop-1", "prop-2"
		a := line("exp1", "50.00", Debit)
		a.PropertyID = &p1
		b := line("exp2", "50.00", Debit)
		b.PropertyID = &p2
		c := line("ap", "100.00", Credit)
		assert.ErrorIs(t, ValidateLines([]TransactionLine{a, b, c}), ErrMixedProperties)
	})

	t.Run("credit side may differ", func(t *testing.T) {
		p1, p2 := "prop-1", "prop-2"
		a := line("bank", "100.00", Debit)
		a.PropertyID = &p1
		b := line("inc", "100.00", Credit)
		b.PropertyID = &p2
		assert.NoError(t, ValidateLines([]TransactionLine{a, b}))
	})
}

func TestValidateDraft(t *testing.T) {
	bank := "gl-bank"

	balanced := func() *Draft {
		return &Draft{
			Header: Transaction{TransactionType: TypeBill, Status: StatusPaid},
			Lines: []TransactionLine{
				line("gl-exp", "250.00", Debit),
				line("gl-ap", "250.00", Credit),
			},
		}
	}

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, ValidateDraft(balanced()))
	})

	t.Run("unbalanced", func(t *testing.T) {
		d := balanced()
		d.Lines[0].Amount = amt("250.50")
		assert.ErrorIs(t, ValidateDraft(d), ErrUnbalanced)
	})

	t.Run("check needs a bank account", func(t *testing.T) {
		d := &Draft{
			Header: Transaction{TransactionType: TypeCheck, Status: StatusPaid},
			Lines: []TransactionLine{
				line("gl-exp", "80.00", Debit),
				line(bank, "80.00", Credit),
			},
		}
		assert.ErrorIs(t, ValidateDraft(d), ErrMissingBankLine)

		d.Header.BankGLAccountID = &bank
		assert.NoError(t, ValidateDraft(d))
	})

	t.Run("declared bank account must appear in the lines", func(t *testing.T) {
		other := "gl-other-bank"
		d := &Draft{
			Header: Transaction{TransactionType: TypeDeposit, Status: StatusPaid, BankGLAccountID: &other},
			Lines: []TransactionLine{
				line(bank, "80.00", Debit),
				line("gl-inc", "80.00", Credit),
			},
		}
		assert.ErrorIs(t, ValidateDraft(d), ErrMissingBankLine)
	})

	t.Run("bill does not require a bank line", func(t *testing.T) {
		assert.NoError(t, ValidateDraft(balanced()))
	})
}

func TestDebitAndCreditTotals(t *testing.T) {
	lines := []TransactionLine{
		line("a", "10.00", Debit),
		line("b", "2.50", Debit),
		line("c", "12.50", Credit),
	}
	assert.True(t, DebitTotal(lines).Equal(amt("12.50")))
	assert.True(t, CreditTotal(lines).Equal(amt("12.50")))
}
