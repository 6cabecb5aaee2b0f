package services

import (
	"errors"
	"math"
	"testing"

	"github.com/blertbank/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		name      string
		entries   []models.Entry
		kind      ErrorKind
		malformed bool
	}{
		{
			name:    "balanced pair",
			entries: []models.Entry{{AccountID: 1, Amount: -100}, {AccountID: 2, Amount: 100}},
		},
		{
			name: "balanced multi-leg",
			entries: []models.Entry{
				{AccountID: 1, Amount: -300},
				{AccountID: 2, Amount: 100},
				{AccountID: 3, Amount: 200},
			},
		},
		{
			name:    "unbalanced",
			entries: []models.Entry{{AccountID: 1, Amount: -100}, {AccountID: 2, Amount: 90}},
			kind:    KindUnbalancedTransaction,
		},
		{
			name:    "single entry",
			entries: []models.Entry{{AccountID: 1, Amount: 100}},
			kind:    KindUnbalancedTransaction,
		},
		{
			name:    "zero amount",
			entries: []models.Entry{{AccountID: 1, Amount: 0}, {AccountID: 2, Amount: 0}},
			kind:    KindInvalidAmount,
		},
		{
			name:    "sum beyond int64",
			entries: []models.Entry{{AccountID: 1, Amount: math.MaxInt64}, {AccountID: 2, Amount: 1}},
			kind:    KindUnbalancedTransaction,
		},
		{
			name: "balanced with large intermediate totals",
			entries: []models.Entry{
				{AccountID: 1, Amount: math.MaxInt64},
				{AccountID: 2, Amount: 1},
				{AccountID: 3, Amount: -1},
				{AccountID: 4, Amount: -math.MaxInt64},
			},
		},
		{
			name:      "empty",
			malformed: true,
		},
		{
			name:      "non-positive account",
			entries:   []models.Entry{{AccountID: 0, Amount: -1}, {AccountID: 2, Amount: 1}},
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntries(tt.entries)

			switch {
			case tt.malformed:
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedRequest))
				var txErr *TransactionError
				assert.False(t, errors.As(err, &txErr))
			case tt.kind != "":
				assert.True(t, IsTransactionError(err, tt.kind), "got %v", err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEntries_ZeroBeforeUnbalanced(t *testing.T) {
	err := ValidateEntries([]models.Entry{{AccountID: 1, Amount: 0}, {AccountID: 2, Amount: 5}})
	assert.True(t, IsTransactionError(err, KindInvalidAmount))
}

func TestValidateEntries_UnbalancedMessage(t *testing.T) {
	err := ValidateEntries([]models.Entry{{AccountID: 1, Amount: math.MaxInt64}, {AccountID: 2, Amount: math.MaxInt64}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum 18446744073709551614")
}

func TestNetDeltas_Overflow(t *testing.T) {
	_, _, err := NetDeltas([]models.Entry{
		{AccountID: 1, Amount: math.MaxInt64},
		{AccountID: 1, Amount: 1},
		{AccountID: 2, Amount: -1},
		{AccountID: 2, Amount: -math.MaxInt64},
	})
	assert.True(t, IsTransactionError(err, KindInvalidAmount))
}

func TestNetDeltas(t *testing.T) {
	deltas, ids, err := NetDeltas([]models.Entry{
		{AccountID: 9, Amount: 40},
		{AccountID: 3, Amount: -100},
		{AccountID: 9, Amount: 60},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 9}, ids)
	assert.Equal(t, map[int64]int64{3: -100, 9: 100}, deltas)
}

func TestAddInt64(t *testing.T) {
	sum, ok := addInt64(math.MaxInt64-1, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), sum)

	_, ok = addInt64(math.MaxInt64, 1)
	assert.False(t, ok)

	_, ok = addInt64(math.MinInt64, -1)
	assert.False(t, ok)
}
