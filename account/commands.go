package account

import "github.com/terraskye/cqrs"

func init() {
	cqrs.RegisterCommand("openAccount", func() any { return &OpenAccount{} })
	cqrs.RegisterCommand("depositMoney", func() any { return &DepositMoney{} })
	cqrs.RegisterCommand("withdrawMoney", func() any { return &WithdrawMoney{} })
}

// OpenAccount opens a new account.
type OpenAccount struct {
	AccountID string `json:"account_id"`
}

// Handle implements cqrs.Command.
func (c OpenAccount) Handle(account BankAccount) ([]cqrs.DomainEvent[BankAccount], error) {
	return []cqrs.DomainEvent[BankAccount]{
		&AccountOpened{AccountID: c.AccountID},
	}, nil
}

// DepositMoney adds funds to the account.
type DepositMoney struct {
	Amount float64 `json:"amount"`
}

// Handle implements cqrs.Command.
func (c DepositMoney) Handle(account BankAccount) ([]cqrs.DomainEvent[BankAccount], error) {
	balance := account.Balance + c.Amount
	return []cqrs.DomainEvent[BankAccount]{
		&CustomerDepositedMoney{Amount: c.Amount, Balance: balance},
	}, nil
}

// WithdrawMoney removes funds from the account. The withdrawal is rejected
// when it would overdraw the balance.
type WithdrawMoney struct {
	Amount float64 `json:"amount"`
}

// Handle implements cqrs.Command.
func (c WithdrawMoney) Handle(account BankAccount) ([]cqrs.DomainEvent[BankAccount], error) {
	balance := account.Balance - c.Amount
	if balance < 0 {
		return nil, cqrs.Reject("funds not available")
	}
	return []cqrs.DomainEvent[BankAccount]{
		&CustomerWithdrewMoney{Amount: c.Amount, Balance: balance},
	}, nil
}
