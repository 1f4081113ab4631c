package account_test

import (
	"testing"

	"github.com/terraskye/cqrs"
	"github.com/terraskye/cqrs/account"
	"github.com/terraskye/cqrs/cqrstest"
)

func TestOpenAccount(t *testing.T) {
	cqrstest.GivenNoPreviousEvents[account.BankAccount]().
		When(account.OpenAccount{AccountID: "acc-1"}).
		ThenExpectEvents(t, &account.AccountOpened{AccountID: "acc-1"})
}

func TestDepositMoney_FreshAccount(t *testing.T) {
	cqrstest.GivenNoPreviousEvents[account.BankAccount]().
		When(account.DepositMoney{Amount: 200}).
		ThenExpectEvents(t, &account.CustomerDepositedMoney{Amount: 200, Balance: 200})
}

func TestDepositMoney_WithExistingBalance(t *testing.T) {
	cqrstest.Given[account.BankAccount](
		&account.CustomerDepositedMoney{Amount: 200, Balance: 200},
	).
		When(account.DepositMoney{Amount: 200}).
		ThenExpectEvents(t, &account.CustomerDepositedMoney{Amount: 200, Balance: 400})
}

func TestWithdrawMoney_SufficientFunds(t *testing.T) {
	cqrstest.Given[account.BankAccount](
		&account.CustomerDepositedMoney{Amount: 200, Balance: 200},
		&account.CustomerDepositedMoney{Amount: 200, Balance: 400},
	).
		When(account.WithdrawMoney{Amount: 300}).
		ThenExpectEvents(t, &account.CustomerWithdrewMoney{Amount: 300, Balance: 100})
}

func TestWithdrawMoney_InsufficientFunds(t *testing.T) {
	cqrstest.GivenNoPreviousEvents[account.BankAccount]().
		When(account.WithdrawMoney{Amount: 300}).
		ThenExpectError(t, "funds not available")
}

func TestWithdrawMoney_ExactBalanceSucceeds(t *testing.T) {
	cqrstest.Given[account.BankAccount](
		&account.CustomerDepositedMoney{Amount: 200, Balance: 200},
	).
		When(account.WithdrawMoney{Amount: 200}).
		ThenExpectEvents(t, &account.CustomerWithdrewMoney{Amount: 200, Balance: 0})
}

func TestBankAccount_ReplayIsDeterministic(t *testing.T) {
	events := []cqrs.DomainEvent[account.BankAccount]{
		&account.AccountOpened{AccountID: "acc-1"},
		&account.CustomerDepositedMoney{Amount: 200, Balance: 200},
		&account.CustomerWithdrewMoney{Amount: 50, Balance: 150},
	}

	var first, second account.BankAccount
	for _, e := range events {
		e.Apply(&first)
	}
	for _, e := range events {
		e.Apply(&second)
	}

	if first != second {
		t.Fatalf("replay diverged: %+v vs %+v", first, second)
	}
	if first.Balance != 150 {
		t.Fatalf("expected balance 150, got %v", first.Balance)
	}
}
