package account

import (
	"context"
	"fmt"

	"github.com/terraskye/cqrs"
)

// QueryName is the processor and storage name for the account projection.
const QueryName = "account_query"

// LedgerEntry is one line in the projected account history.
type LedgerEntry struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// BankAccountQuery is the read-side view of an account, folded from the
// event log one envelope at a time.
type BankAccountQuery struct {
	AccountID string        `json:"account_id"`
	Balance   float64       `json:"balance"`
	Ledger    []LedgerEntry `json:"ledger"`
}

// Update implements cqrs.Projection.
func (q *BankAccountQuery) Update(envelope *cqrs.Envelope) {
	switch event := envelope.Event.(type) {
	case *AccountOpened:
		q.AccountID = event.AccountID
	case *CustomerDepositedMoney:
		q.Balance = event.Balance
		q.Ledger = append(q.Ledger, LedgerEntry{Description: "deposit", Amount: event.Amount})
	case *CustomerWithdrewMoney:
		q.Balance = event.Balance
		q.Ledger = append(q.Ledger, LedgerEntry{Description: "withdrawal", Amount: event.Amount})
	}
}

// AccountQuery asks for the projected view of a single account.
type AccountQuery struct {
	AccountID string
}

// ID implements cqrs.Query.
func (q AccountQuery) ID() []byte {
	return []byte(q.AccountID)
}

// NewAccountQueryHandler serves AccountQuery from the projection repository.
func NewAccountQueryHandler(repository *cqrs.QueryRepository[BankAccountQuery, *BankAccountQuery]) cqrs.QueryHandler[AccountQuery, *BankAccountQuery] {
	return cqrs.NewQueryHandlerFunc(func(ctx context.Context, query AccountQuery) (*BankAccountQuery, error) {
		view, err := repository.Load(ctx, query.AccountID)
		if err != nil {
			return nil, fmt.Errorf("load account view %q: %w", query.AccountID, err)
		}
		return view, nil
	})
}
