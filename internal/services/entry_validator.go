package services

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/blertbank/backend/internal/models"
)

// ValidateEntries checks a proposed entry set before anything is persisted.
// Account IDs must be positive, amounts non-zero, and the amounts must sum
// to exactly zero. The sum is exact, so intermediate totals may exceed int64.
func ValidateEntries(entries []models.Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: at least one entry is required", ErrMalformedRequest)
	}

	for i, entry := range entries {
		if entry.AccountID <= 0 {
			return fmt.Errorf("%w: entry %d has invalid account ID %d", ErrMalformedRequest, i, entry.AccountID)
		}
	}

	sum := new(big.Int)
	for _, entry := range entries {
		if entry.Amount == 0 {
			return invalidAmount(entry.AccountID, "Zero-amount entries are not allowed")
		}
		sum.Add(sum, big.NewInt(entry.Amount))
	}

	if sum.Sign() != 0 {
		return unbalanced(sum)
	}
	return nil
}

// NetDeltas sums the amounts per account and returns the affected account
// IDs in ascending order, the order in which their rows must be locked.
func NetDeltas(entries []models.Entry) (map[int64]int64, []int64, error) {
	deltas := make(map[int64]int64, len(entries))
	for _, entry := range entries {
		next, ok := addInt64(deltas[entry.AccountID], entry.Amount)
		if !ok {
			return nil, nil, invalidAmount(entry.AccountID, fmt.Sprintf("Net change for account %d overflows", entry.AccountID))
		}
		deltas[entry.AccountID] = next
	}

	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return deltas, ids, nil
}

func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
