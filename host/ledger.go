// Package host provides in-process reference collaborators for the breaker:
// a custody ledger, an admin list and a pause switch. Deployments embedding
// the controller in a real ledger supply their own implementations.
package host

import (
	"context"
	"sort"
	"sync"

	"github.com/holiman/uint256"
)

// Ledger per-asset balances. Transfers debit the custodian account.
type Ledger struct {
	mu        sync.Mutex
	custodian string
	balances  map[string]map[string]*uint256.Int // asset -> holder -> balance
	failWith  error
}

// NewLedger creates an empty ledger
func NewLedger(custodian string) *Ledger {
	return &Ledger{
		custodian: custodian,
		balances:  make(map[string]map[string]*uint256.Int),
	}
}

// Custodian account transfers are debited from
func (l *Ledger) Custodian() string {
	return l.custodian
}

// Deposit credits holder
func (l *Ledger) Deposit(asset, holder string, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, holder, amount)
	return nil
}

// FailTransfers makes every following Transfer return err; nil restores normal behaviour
func (l *Ledger) FailTransfers(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failWith = err
}

// Transfer moves amount from the custodian to recipient
func (l *Ledger) Transfer(_ context.Context, asset, recipient string, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failWith != nil {
		return l.failWith
	}
	bal := l.balance(asset, l.custodian)
	if bal.Lt(amount) {
		return ErrInsufficientBalance.
			WithData("asset", asset).
			WithData("balance", bal.Dec()).
			WithData("amount", amount.Dec())
	}
	l.balances[asset][l.custodian] = new(uint256.Int).Sub(bal, amount)
	l.credit(asset, recipient, amount)
	return nil
}

// BalanceOf balance of holder, zero when unknown
func (l *Ledger) BalanceOf(_ context.Context, asset, holder string) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(asset, holder)), nil
}

// Holders lists holders of asset with a non-zero balance
func (l *Ledger) Holders(asset string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	for h, b := range l.balances[asset] {
		if !b.IsZero() {
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) balance(asset, holder string) *uint256.Int {
	if b, ok := l.balances[asset][holder]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Ledger) credit(asset, holder string, amount *uint256.Int) {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]*uint256.Int)
	}
	l.balances[asset][holder] = new(uint256.Int).Add(l.balance(asset, holder), amount)
}
