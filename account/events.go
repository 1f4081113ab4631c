package account

import "github.com/terraskye/cqrs"

func init() {
	cqrs.RegisterEvent(func() cqrs.Event { return &AccountOpened{} })
	cqrs.RegisterEvent(func() cqrs.Event { return &CustomerDepositedMoney{} })
	cqrs.RegisterEvent(func() cqrs.Event { return &CustomerWithdrewMoney{} })
}

// AccountOpened records that an account came into existence.
type AccountOpened struct {
	AccountID string `json:"account_id"`
}

func (*AccountOpened) EventType() string { return "AccountOpened" }

func (e *AccountOpened) Apply(account *BankAccount) {}

// CustomerDepositedMoney carries the deposited amount and the balance after
// the deposit, so replays and projections never recompute it.
type CustomerDepositedMoney struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

func (*CustomerDepositedMoney) EventType() string { return "CustomerDepositedMoney" }

func (e *CustomerDepositedMoney) Apply(account *BankAccount) {
	account.Balance = e.Balance
}

// CustomerWithdrewMoney carries the withdrawn amount and the balance after
// the withdrawal.
type CustomerWithdrewMoney struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

func (*CustomerWithdrewMoney) EventType() string { return "CustomerWithdrewMoney" }

func (e *CustomerWithdrewMoney) Apply(account *BankAccount) {
	account.Balance = e.Balance
}
