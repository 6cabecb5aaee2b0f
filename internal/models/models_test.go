package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancePolicy(t *testing.T) {
	policy := DefaultBalancePolicy()

	assert.True(t, policy.Permits(AccountKindTreasury, -1_000))
	assert.True(t, policy.Permits(AccountKindLiability, -1))
	assert.True(t, policy.Permits(AccountKindUser, 0))
	assert.False(t, policy.Permits(AccountKindUser, -1))
	assert.False(t, policy.Permits(AccountKindSink, -1))
	assert.False(t, policy.Permits(AccountKindEscrow, -1))
	assert.Equal(t, []AccountKind{AccountKindTreasury, AccountKindLiability}, policy.NegativeKinds())

	strict := NewBalancePolicy()
	assert.False(t, strict.Permits(AccountKindTreasury, -1))
	assert.Empty(t, strict.NegativeKinds())
}

func TestParseAccountKind(t *testing.T) {
	kind, err := ParseAccountKind(" Treasury ")
	require.NoError(t, err)
	assert.Equal(t, AccountKindTreasury, kind)

	_, err = ParseAccountKind("vault")
	assert.Error(t, err)
}

func TestParticipant_Validate(t *testing.T) {
	id := int64(3)

	assert.NoError(t, Participant{Kind: ParticipantUser, UserID: &id}.Validate())
	assert.NoError(t, Participant{Kind: ParticipantSystem, Name: "treasury"}.Validate())
	assert.NoError(t, Participant{Kind: ParticipantAccount, AccountID: &id}.Validate())

	assert.Error(t, Participant{Kind: ParticipantUser}.Validate())
	assert.Error(t, Participant{Kind: ParticipantSystem, Name: "treasury", UserID: &id}.Validate())
	assert.Error(t, Participant{Kind: ParticipantAccount, Name: "treasury"}.Validate())
	assert.Error(t, Participant{Kind: "wallet", AccountID: &id}.Validate())
}

func TestMetadata(t *testing.T) {
	var empty Metadata
	value, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), value)

	var scanned Metadata
	require.NoError(t, scanned.Scan([]byte(`{"challengeId": 15}`)))
	assert.Equal(t, float64(15), scanned["challengeId"])

	require.NoError(t, scanned.Scan(`{"note": "x"}`))
	assert.Equal(t, "x", scanned["note"])

	assert.Error(t, scanned.Scan(42))
}
