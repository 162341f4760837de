package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

var (
	// ErrNoDepositAccounts means the org has no deposit-category GL accounts,
	// so escrow movements cannot be recorded at all.
	ErrNoDepositAccounts = errors.New("escrow: no deposit gl accounts configured")
	// ErrOverRefund means a refund would drive the unit's held balance below
	// zero. The committed transaction has already been removed again.
	ErrOverRefund = errors.New("escrow: refund exceeds held balance")
)

type MovementKind string

const (
	KindHold   MovementKind = "hold"
	KindRefund MovementKind = "refund"
)

// Balance is the escrow position of one unit. When HasValidConfiguration is
// false the org has no deposit accounts and every figure is zero, which is a
// setup gap rather than an error.
type Balance struct {
	UnitID                string          `json:"unit_id"`
	Deposits              decimal.Decimal `json:"deposits"`
	Withdrawals           decimal.Decimal `json:"withdrawals"`
	Balance               decimal.Decimal `json:"balance"`
	HasValidConfiguration bool            `json:"has_valid_configuration"`
}

// DepositAccountSource yields the org's deposit-category GL accounts.
type DepositAccountSource interface {
	DepositAccountIDs(ctx context.Context, orgID string) ([]string, error)
}

// TransactionStore is the slice of the ledger store the service uses.
type TransactionStore interface {
	Commit(ctx context.Context, d *ledger.Draft) (string, error)
	VerifyCommitted(ctx context.Context, transactionID string) error
	Delete(ctx context.Context, transactionID string) error
}

// LineSource aggregates and lists escrow postings. A nil time bound means
// unbounded on that side.
type LineSource interface {
	SumByUnit(ctx context.Context, unitID string, accountIDs []string, asOf *time.Time) (credits, debits decimal.Decimal, err error)
	ListByUnit(ctx context.Context, unitID string, accountIDs []string, from, to *time.Time) ([]Movement, error)
}

// Service computes escrow positions and records deposit movements as regular
// balanced transactions on the main ledger.
type Service struct {
	Accounts DepositAccountSource
	Ledger   TransactionStore
	Lines    LineSource
	Log      *zap.Logger
}

func NewService(accounts DepositAccountSource, store TransactionStore, lines LineSource, log *zap.Logger) *Service {
	return &Service{Accounts: accounts, Ledger: store, Lines: lines, Log: log}
}

// UnitBalance is deposits minus withdrawals across the org's deposit
// accounts, scoped to one unit. Units never see each other's postings. A
// non-nil asOf excludes postings dated after it.
func (s *Service) UnitBalance(ctx context.Context, orgID, unitID string, asOf *time.Time) (*Balance, error) {
	accountIDs, err := s.Accounts.DepositAccountIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	b := &Balance{
		UnitID:      unitID,
		Deposits:    decimal.Zero,
		Withdrawals: decimal.Zero,
		Balance:     decimal.Zero,
	}
	if len(accountIDs) == 0 {
		return b, nil
	}
	b.HasValidConfiguration = true

	credits, debits, err := s.Lines.SumByUnit(ctx, unitID, accountIDs, asOf)
	if err != nil {
		return nil, err
	}
	b.Deposits = credits
	b.Withdrawals = debits
	b.Balance = credits.Sub(debits)
	return b, nil
}

// UnitMovements lists the unit's escrow history, oldest first, optionally
// bounded to a date range. An org without deposit accounts has no history,
// which degrades to an empty list the same way UnitBalance degrades.
func (s *Service) UnitMovements(ctx context.Context, orgID, unitID string, from, to *time.Time) ([]Movement, error) {
	accountIDs, err := s.Accounts.DepositAccountIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return []Movement{}, nil
	}
	return s.Lines.ListByUnit(ctx, unitID, accountIDs, from, to)
}

type MovementInput struct {
	OrgID              string
	UnitID             string
	PropertyID         *string
	Date               time.Time
	Memo               *string
	Kind               MovementKind
	Amount             decimal.Decimal
	BankGLAccountID    string
	DepositGLAccountID string
}

// RecordMovement commits a hold or refund and then re-reads the unit's
// position. A refund that leaves the unit negative is undone by deleting the
// transaction that was just committed, so the books end the call unchanged.
func (s *Service) RecordMovement(ctx context.Context, in MovementInput) (string, error) {
	accountIDs, err := s.Accounts.DepositAccountIDs(ctx, in.OrgID)
	if err != nil {
		return "", err
	}
	if len(accountIDs) == 0 {
		return "", ErrNoDepositAccounts
	}
	valid := false
	for _, id := range accountIDs {
		if id == in.DepositGLAccountID {
			valid = true
			break
		}
	}
	if !valid {
		return "", fmt.Errorf("%w: %s is not a deposit account", ErrNoDepositAccounts, in.DepositGLAccountID)
	}

	bankLine := ledger.TransactionLine{
		GLAccountID:       in.BankGLAccountID,
		Amount:            in.Amount,
		PostingType:       ledger.Debit,
		Memo:              in.Memo,
		AccountEntityType: ledger.EntityCompany,
	}
	depositLine := ledger.TransactionLine{
		GLAccountID:       in.DepositGLAccountID,
		Amount:            in.Amount,
		PostingType:       ledger.Credit,
		Memo:              in.Memo,
		PropertyID:        in.PropertyID,
		UnitID:            &in.UnitID,
		AccountEntityType: ledger.EntityRental,
	}
	if in.Kind == KindRefund {
		bankLine.PostingType = ledger.Credit
		depositLine.PostingType = ledger.Debit
	}

	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           in.OrgID,
			Date:            in.Date,
			Memo:            in.Memo,
			TransactionType: ledger.TypeOther,
			Status:          ledger.StatusPaid,
			TotalAmount:     in.Amount,
			BankGLAccountID: &in.BankGLAccountID,
		},
		Lines: []ledger.TransactionLine{bankLine, depositLine},
	}

	txID, err := s.Ledger.Commit(ctx, d)
	if err != nil {
		return "", err
	}
	if err := s.Ledger.VerifyCommitted(ctx, txID); err != nil {
		if delErr := s.Ledger.Delete(ctx, txID); delErr != nil {
			s.Log.Error("escrow compensation failed",
				zap.String("transaction_id", txID), zap.Error(delErr))
		}
		return "", err
	}

	if in.Kind == KindRefund {
		credits, debits, err := s.Lines.SumByUnit(ctx, in.UnitID, accountIDs, nil)
		if err != nil {
			return "", err
		}
		if credits.Sub(debits).IsNegative() {
			if delErr := s.Ledger.Delete(ctx, txID); delErr != nil {
				s.Log.Error("escrow compensation failed",
					zap.String("transaction_id", txID), zap.Error(delErr))
				return "", fmt.Errorf("%w: compensation failed: %v", ErrOverRefund, delErr)
			}
			return "", ErrOverRefund
		}
	}
	return txID, nil
}
