// Package account is the bank account write model and its read-side
// projections: a small but complete domain exercising every cqrs building
// block.
package account

// BankAccount is the aggregate state, rebuilt by replaying events. The zero
// value represents an account that has no history yet.
type BankAccount struct {
	Balance float64 `json:"balance"`
}

// AggregateType implements cqrs.Aggregate.
func (BankAccount) AggregateType() string {
	return "account"
}
