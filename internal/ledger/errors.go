package ledger

import "errors"

var (
	ErrNotFound        = errors.New("ledger: transaction not found")
	ErrNoLines         = errors.New("ledger: transaction has no lines")
	ErrUnbalanced      = errors.New("ledger: debits and credits do not balance")
	ErrInvalidPosting  = errors.New("ledger: invalid posting")
	ErrMissingBankLine = errors.New("ledger: no line posts to the declared bank account")
	ErrMixedProperties = errors.New("ledger: debit lines span more than one property")
	ErrConflict        = errors.New("ledger: transaction is being modified concurrently")
	ErrCorrupted       = errors.New("ledger: committed transaction failed verification")
)
