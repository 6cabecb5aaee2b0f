package models

import (
	"fmt"
	"strings"
	"time"
)

// AccountKind distinguishes account categories
type AccountKind string

const (
	AccountKindUser      AccountKind = "user"
	AccountKindTreasury  AccountKind = "treasury"
	AccountKindSink      AccountKind = "sink"
	AccountKindLiability AccountKind = "liability"
	AccountKindEscrow    AccountKind = "escrow"
)

// ParseAccountKind converts a configured kind name into an AccountKind
func ParseAccountKind(s string) (AccountKind, error) {
	kind := AccountKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case AccountKindUser, AccountKindTreasury, AccountKindSink, AccountKindLiability, AccountKindEscrow:
		return kind, nil
	}
	return "", fmt.Errorf("unknown account kind %q", s)
}

// Account represents a ledger account and its current balance.
// Balance is held in minor currency units.
type Account struct {
	ID          int64       `json:"accountId" db:"id"`
	OwnerUserID *int64      `json:"userId,omitempty" db:"owner_user_id"`
	Kind        AccountKind `json:"kind" db:"kind"`
	Balance     int64       `json:"balance" db:"balance"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

// BalancePolicy records which account kinds may hold a negative balance.
// Every kind not listed is balance-enforced.
type BalancePolicy struct {
	negativeAllowed map[AccountKind]bool
}

// NewBalancePolicy returns a policy permitting negative balances for the given kinds only
func NewBalancePolicy(kinds ...AccountKind) BalancePolicy {
	allowed := make(map[AccountKind]bool, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = true
	}
	return BalancePolicy{negativeAllowed: allowed}
}

// DefaultBalancePolicy lets the treasury and liability accounts go negative
func DefaultBalancePolicy() BalancePolicy {
	return NewBalancePolicy(AccountKindTreasury, AccountKindLiability)
}

// AllowsNegative reports whether accounts of the kind may go below zero
func (p BalancePolicy) AllowsNegative(kind AccountKind) bool {
	return p.negativeAllowed[kind]
}

// Permits reports whether an account of the kind may hold the balance
func (p BalancePolicy) Permits(kind AccountKind, balance int64) bool {
	return balance >= 0 || p.AllowsNegative(kind)
}

// NegativeKinds lists the kinds exempt from the non-negative rule, for auditing
func (p BalancePolicy) NegativeKinds() []AccountKind {
	kinds := make([]AccountKind, 0, len(p.negativeAllowed))
	for _, kind := range []AccountKind{AccountKindUser, AccountKindTreasury, AccountKindSink, AccountKindLiability, AccountKindEscrow} {
		if p.negativeAllowed[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
