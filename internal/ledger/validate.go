package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance absorbs cent-level rounding when amounts arrive from
// currency math done elsewhere. Anything beyond it is a real imbalance.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// Balanced reports whether the absolute difference between the debit and
// credit totals of lines is within BalanceTolerance.
func Balanced(lines []TransactionLine) bool {
	diff := DebitTotal(lines).Sub(CreditTotal(lines))
	return diff.Abs().LessThanOrEqual(BalanceTolerance)
}

// ValidateLines checks every posting independently of the header: positive
// magnitude, a GL account, a recognised posting type, and at most one
// property on the debit side.
func ValidateLines(lines []TransactionLine) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	var debitProperty string
	for i, l := range lines {
		if l.GLAccountID == "" {
			return fmt.Errorf("%w: line %d has no gl account", ErrInvalidPosting, i)
		}
		if l.PostingType != Debit && l.PostingType != Credit {
			return fmt.Errorf("%w: line %d posting type %q", ErrInvalidPosting, i, l.PostingType)
		}
		if !l.Amount.IsPositive() {
			return fmt.Errorf("%w: line %d amount %s", ErrInvalidPosting, i, l.Amount)
		}
		if l.PostingType == Debit && l.PropertyID != nil {
			if debitProperty == "" {
				debitProperty = *l.PropertyID
			} else if debitProperty != *l.PropertyID {
				return ErrMixedProperties
			}
		}
	}
	return nil
}

// ValidateDraft runs the full pre-commit check: line validity, the balance
// invariant, and bank presence for transaction types that must touch a bank
// account.
func ValidateDraft(d *Draft) error {
	if err := ValidateLines(d.Lines); err != nil {
		return err
	}
	if !Balanced(d.Lines) {
		return fmt.Errorf("%w: debits %s credits %s", ErrUnbalanced,
			DebitTotal(d.Lines), CreditTotal(d.Lines))
	}
	if requiresBankLine(d.Header.TransactionType) && d.Header.BankGLAccountID == nil {
		return fmt.Errorf("%w: %s has no bank account", ErrMissingBankLine, d.Header.TransactionType)
	}
	if d.Header.BankGLAccountID != nil {
		found := false
		for _, l := range d.Lines {
			if l.GLAccountID == *d.Header.BankGLAccountID {
				found = true
				break
			}
		}
		if !found {
			return ErrMissingBankLine
		}
	}
	return nil
}

func requiresBankLine(t TransactionType) bool {
	switch t {
	case TypeCheck, TypeDeposit, TypeTransfer:
		return true
	}
	return false
}
