package services

import (
	"context"
	"fmt"

	"github.com/blertbank/backend/internal/models"
)

// ResolvedParticipants holds the entries produced from a participant list.
// Entries[i] was resolved from Participants[i].
type ResolvedParticipants struct {
	Participants []models.Participant
	Entries      []models.Entry
}

// ResolveParticipants maps each participant to its account. The first
// participant without an account fails the whole resolution with
// ACCOUNT_NOT_FOUND.
func ResolveParticipants(ctx context.Context, directory AccountDirectory, participants []models.Participant) (*ResolvedParticipants, error) {
	resolved := &ResolvedParticipants{
		Participants: participants,
		Entries:      make([]models.Entry, 0, len(participants)),
	}

	for i, participant := range participants {
		if err := participant.Validate(); err != nil {
			return nil, fmt.Errorf("%w: invalid participant at index %d: %v", ErrMalformedRequest, i, err)
		}

		accountID, err := resolveParticipant(ctx, directory, participant)
		if err != nil {
			return nil, err
		}
		resolved.Entries = append(resolved.Entries, models.Entry{AccountID: accountID, Amount: participant.Amount})
	}

	return resolved, nil
}

func resolveParticipant(ctx context.Context, directory AccountDirectory, participant models.Participant) (int64, error) {
	switch participant.Kind {
	case models.ParticipantAccount:
		account, err := directory.ByAccountID(ctx, *participant.AccountID)
		if err != nil {
			return 0, err
		}
		if account == nil {
			return 0, accountNotFound(*participant.AccountID)
		}
		return account.ID, nil

	case models.ParticipantUser:
		account, err := directory.ByUserID(ctx, *participant.UserID)
		if err != nil {
			return 0, err
		}
		if account == nil {
			return 0, &TransactionError{
				Kind:    KindAccountNotFound,
				Message: fmt.Sprintf("User %d does not have an account", *participant.UserID),
			}
		}
		return account.ID, nil

	case models.ParticipantSystem:
		account, err := directory.BySystemName(ctx, participant.Name)
		if err != nil {
			return 0, err
		}
		if account == nil {
			return 0, &TransactionError{
				Kind:    KindAccountNotFound,
				Message: fmt.Sprintf("System account '%s' not found", participant.Name),
			}
		}
		return account.ID, nil
	}

	return 0, fmt.Errorf("%w: unknown participant kind %q", ErrMalformedRequest, participant.Kind)
}

// ParticipantResults pairs the posted entries with the participants they came
// from. Entries whose account no longer matches (a replay of a transaction
// posted with different participants) are reported as account participants.
func (r *ResolvedParticipants) ParticipantResults(result *models.PostResult) []models.ParticipantResult {
	out := make([]models.ParticipantResult, 0, len(result.Entries))
	for i, entry := range result.Entries {
		var participant models.Participant
		if i < len(r.Entries) && r.Entries[i].AccountID == entry.AccountID {
			participant = r.Participants[i]
		} else {
			accountID := entry.AccountID
			participant = models.Participant{Kind: models.ParticipantAccount, AccountID: &accountID}
		}
		participant.Amount = entry.Delta
		out = append(out, models.ParticipantResult{Participant: participant, BalanceAfter: entry.BalanceAfter})
	}
	return out
}
