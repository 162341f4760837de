package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bbabel1/property-manager-sub011/internal/buildium"
	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

var (
	ErrBadTransition = errors.New("reconcile: illegal sync status transition")
	// ErrMissingExternalMapping means a GL account, payee or bank on the
	// transaction has no provider id yet. The push is not attempted and the
	// transaction stays pending.
	ErrMissingExternalMapping = errors.New("reconcile: missing external mapping")
	ErrNotPushable            = errors.New("reconcile: transaction is not meant to be pushed")
)

// CanTransition is the sync state machine: none and failed feed pending,
// pending resolves to synced or failed. Synced is terminal.
func CanTransition(from, to ledger.SyncStatus) bool {
	switch to {
	case ledger.SyncPending:
		return from == ledger.SyncNone || from == ledger.SyncFailed || from == ledger.SyncPending
	case ledger.SyncSynced, ledger.SyncFailed:
		return from == ledger.SyncPending
	}
	return false
}

type LedgerSource interface {
	Get(ctx context.Context, id string) (*ledger.Transaction, error)
	GetLines(ctx context.Context, transactionID string) ([]ledger.TransactionLine, error)
}

type AccountSource interface {
	GetMany(ctx context.Context, ids []string) (map[string]*glaccounts.GlAccount, error)
}

type SyncStore interface {
	MarkPending(ctx context.Context, transactionID string) error
	MarkSynced(ctx context.Context, transactionID string, externalID int64) error
	MarkFailed(ctx context.Context, transactionID, message string) error
	ListUnsynced(ctx context.Context, orgID string, limit int) ([]string, error)
}

type Provider interface {
	CreateBill(ctx context.Context, p buildium.BillPayload) (*buildium.Created, error)
	CreateCheck(ctx context.Context, bankAccountID int64, p buildium.CheckPayload) (*buildium.Created, error)
	CreateDeposit(ctx context.Context, bankAccountID int64, p buildium.DepositPayload) (*buildium.Created, error)
	CreateWithdrawal(ctx context.Context, bankAccountID int64, p buildium.WithdrawalPayload) (*buildium.Created, error)
	CreateTransfer(ctx context.Context, bankAccountID int64, p buildium.TransferPayload) (*buildium.Created, error)
}

// Reconciler pushes committed transactions to the external provider. It only
// ever touches sync columns; the transaction and its lines are immutable here.
type Reconciler struct {
	Ledger   LedgerSource
	Accounts AccountSource
	Sync     SyncStore
	Provider Provider
	Log      *zap.Logger
}

func NewReconciler(l LedgerSource, a AccountSource, s SyncStore, p Provider, log *zap.Logger) *Reconciler {
	return &Reconciler{Ledger: l, Accounts: a, Sync: s, Provider: p, Log: log}
}

const dateFormat = "2006-01-02"

// Push sends one pending transaction to the provider. Already synced
// transactions are a no-op. Mapping gaps return ErrMissingExternalMapping
// without calling the provider, and the transaction stays pending; a provider
// failure marks the transaction failed and leaves the books untouched.
func (r *Reconciler) Push(ctx context.Context, transactionID string) error {
	header, err := r.Ledger.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	switch header.ExternalSyncStatus {
	case ledger.SyncSynced:
		return nil
	case ledger.SyncPending:
	default:
		return fmt.Errorf("%w: status %s", ErrNotPushable, header.ExternalSyncStatus)
	}

	lines, err := r.Ledger.GetLines(ctx, transactionID)
	if err != nil {
		return err
	}
	accounts, err := r.resolveAccounts(ctx, header, lines)
	if err != nil {
		return err
	}

	created, err := r.send(ctx, header, lines, accounts)
	if err != nil {
		if markErr := r.Sync.MarkFailed(ctx, transactionID, err.Error()); markErr != nil {
			r.Log.Error("mark failed", zap.String("transaction_id", transactionID), zap.Error(markErr))
		}
		return fmt.Errorf("push %s: %w", transactionID, err)
	}

	if err := r.Sync.MarkSynced(ctx, transactionID, created.ID); err != nil {
		return err
	}
	r.Log.Info("transaction synced",
		zap.String("transaction_id", transactionID),
		zap.Int64("external_id", created.ID))
	return nil
}

// Resync re-queues a transaction and pushes it immediately. Local-only
// transactions are rejected before any status change.
func (r *Reconciler) Resync(ctx context.Context, transactionID string) error {
	header, err := r.Ledger.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if header.ExternalSyncStatus == ledger.SyncSynced {
		return nil
	}
	if !pushableType(header) {
		return fmt.Errorf("%w: type %s", ErrNotPushable, header.TransactionType)
	}
	if err := r.Sync.MarkPending(ctx, transactionID); err != nil {
		return err
	}
	return r.Push(ctx, transactionID)
}

// pushableType mirrors the allocation engine's choice of what reaches the
// provider: bills, checks, deposits, transfers and owner draws.
func pushableType(header *ledger.Transaction) bool {
	switch header.TransactionType {
	case ledger.TypeBill, ledger.TypeCheck, ledger.TypeDeposit, ledger.TypeTransfer:
		return true
	case ledger.TypeOther:
		return header.PayeeExternalID != nil && header.BankGLAccountID != nil
	}
	return false
}

// Retry sweeps an org's unsynced transactions. Individual failures are
// logged, not fatal, so one bad transaction cannot wedge the queue.
func (r *Reconciler) Retry(ctx context.Context, orgID string, limit int) error {
	ids, err := r.Sync.ListUnsynced(ctx, orgID, limit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.Resync(ctx, id); err != nil {
			r.Log.Warn("retry push failed", zap.String("transaction_id", id), zap.Error(err))
		}
	}
	return nil
}

// resolveAccounts loads every GL account on the transaction and checks the
// push preconditions: account mappings, the bank mapping for bank-scoped
// operations, and the payee mapping where the provider requires one.
func (r *Reconciler) resolveAccounts(ctx context.Context, header *ledger.Transaction, lines []ledger.TransactionLine) (map[string]*glaccounts.GlAccount, error) {
	ids := make([]string, 0, len(lines)+1)
	seen := map[string]bool{}
	for _, l := range lines {
		if !seen[l.GLAccountID] {
			seen[l.GLAccountID] = true
			ids = append(ids, l.GLAccountID)
		}
	}
	if header.BankGLAccountID != nil && !seen[*header.BankGLAccountID] {
		ids = append(ids, *header.BankGLAccountID)
	}

	accounts, err := r.Accounts.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, a := range accounts {
		if !a.HasExternalMapping() {
			return nil, fmt.Errorf("%w: gl account %s", ErrMissingExternalMapping, id)
		}
	}
	if needsPayee(header) && header.PayeeExternalID == nil {
		return nil, fmt.Errorf("%w: payee %s", ErrMissingExternalMapping, deref(header.PayeeName))
	}
	return accounts, nil
}

func needsPayee(header *ledger.Transaction) bool {
	switch header.TransactionType {
	case ledger.TypeBill, ledger.TypeCheck:
		return true
	case ledger.TypeOther:
		// an owner draw is dispatched against the payee's bank account
		return header.BankGLAccountID != nil
	}
	return false
}

func (r *Reconciler) send(ctx context.Context, header *ledger.Transaction, lines []ledger.TransactionLine, accounts map[string]*glaccounts.GlAccount) (*buildium.Created, error) {
	date := header.Date.Format(dateFormat)

	switch header.TransactionType {
	case ledger.TypeBill:
		return r.Provider.CreateBill(ctx, buildium.BillPayload{
			Date:     date,
			VendorID: *header.PayeeExternalID,
			Memo:     header.Memo,
			Lines:    providerLines(lines, accounts, ledger.Debit),
		})

	case ledger.TypeCheck:
		bank := *accounts[*header.BankGLAccountID].ExternalGLAccountID
		return r.Provider.CreateCheck(ctx, bank, buildium.CheckPayload{
			Date:        date,
			PayeeID:     *header.PayeeExternalID,
			CheckNumber: header.CheckNumber,
			Memo:        header.Memo,
			Lines:       providerLines(lines, accounts, ledger.Debit),
		})

	case ledger.TypeDeposit:
		bank := *accounts[*header.BankGLAccountID].ExternalGLAccountID
		return r.Provider.CreateDeposit(ctx, bank, buildium.DepositPayload{
			Date:  date,
			Memo:  header.Memo,
			Lines: providerLines(lines, accounts, ledger.Credit),
		})

	case ledger.TypeTransfer:
		source := *accounts[*header.BankGLAccountID].ExternalGLAccountID
		var target int64
		for _, l := range lines {
			if l.PostingType == ledger.Debit {
				target = *accounts[l.GLAccountID].ExternalGLAccountID
			}
		}
		return r.Provider.CreateTransfer(ctx, source, buildium.TransferPayload{
			Date:                date,
			Amount:              header.TotalAmount.InexactFloat64(),
			TargetBankAccountID: target,
			Memo:                header.Memo,
		})

	case ledger.TypeOther:
		// the only pushable Other transaction is an owner draw
		if header.PayeeExternalID == nil || header.BankGLAccountID == nil {
			return nil, fmt.Errorf("%w: type %s", ErrNotPushable, header.TransactionType)
		}
		bank := *accounts[*header.BankGLAccountID].ExternalGLAccountID
		return r.Provider.CreateWithdrawal(ctx, bank, buildium.WithdrawalPayload{
			Date:   date,
			Amount: header.TotalAmount.InexactFloat64(),
			Memo:   header.Memo,
		})
	}
	return nil, fmt.Errorf("%w: type %s", ErrNotPushable, header.TransactionType)
}

// providerLines maps one posting side to provider line payloads. The other
// side is implied by the provider endpoint.
func providerLines(lines []ledger.TransactionLine, accounts map[string]*glaccounts.GlAccount, side ledger.PostingType) []buildium.Line {
	out := make([]buildium.Line, 0, len(lines))
	for _, l := range lines {
		if l.PostingType != side {
			continue
		}
		entity := buildium.AccountingEntity{AccountingEntityType: l.AccountEntityType}
		if l.ExternalPropertyID != nil {
			entity.ID = *l.ExternalPropertyID
		} else if l.AccountEntityID != nil {
			entity.ID = *l.AccountEntityID
		}
		entity.UnitID = l.ExternalUnitID
		out = append(out, buildium.Line{
			GLAccountID:      *accounts[l.GLAccountID].ExternalGLAccountID,
			Amount:           l.Amount.InexactFloat64(),
			Memo:             l.Memo,
			AccountingEntity: entity,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
