package models

import "fmt"

// ParticipantKind tags how a participant identifies its account
type ParticipantKind string

const (
	ParticipantUser    ParticipantKind = "user"
	ParticipantSystem  ParticipantKind = "system"
	ParticipantAccount ParticipantKind = "account"
)

// Participant names an account indirectly. Exactly one identifier is set,
// selected by Kind: UserID for "user", Name for "system", AccountID for "account".
type Participant struct {
	Kind      ParticipantKind `json:"kind"`
	UserID    *int64          `json:"userId,omitempty"`
	Name      string          `json:"name,omitempty"`
	AccountID *int64          `json:"accountId,omitempty"`
	Amount    int64           `json:"amount"`
}

// Validate checks that the identifier required by the kind is present
// and no other identifier is set.
func (p Participant) Validate() error {
	switch p.Kind {
	case ParticipantUser:
		if p.UserID == nil || p.Name != "" || p.AccountID != nil {
			return fmt.Errorf("user participant requires only userId")
		}
	case ParticipantSystem:
		if p.Name == "" || p.UserID != nil || p.AccountID != nil {
			return fmt.Errorf("system participant requires only name")
		}
	case ParticipantAccount:
		if p.AccountID == nil || p.UserID != nil || p.Name != "" {
			return fmt.Errorf("account participant requires only accountId")
		}
	default:
		return fmt.Errorf("unknown participant kind %q", p.Kind)
	}
	return nil
}

// ParticipantResult is a participant echoed back with its post-transaction balance
type ParticipantResult struct {
	Participant
	BalanceAfter int64 `json:"balanceAfter"`
}
