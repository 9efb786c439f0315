package certificate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "certo/pkg/domain"
)

func TestCommitmentRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	vaccineHash := bytes.Repeat([]byte{0x42}, 32)
	commitment := Commit(id.Identity("alice"), vaccineHash, salt)
	require.Len(t, commitment, 32)

	assert.True(t, VerifyCommitment(commitment, id.Identity("alice"), vaccineHash, salt))
	assert.False(t, VerifyCommitment(commitment, id.Identity("bob"), vaccineHash, salt))
	assert.False(t, VerifyCommitment(commitment, id.Identity("alice"), bytes.Repeat([]byte{0x43}, 32), salt))
}

func TestCommitmentSaltSeparates(t *testing.T) {
	s1, err := NewSalt()
	require.NoError(t, err)
	s2, err := NewSalt()
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)

	vaccineHash := bytes.Repeat([]byte{0x42}, 32)
	assert.NotEqual(t,
		Commit("alice", vaccineHash, s1),
		Commit("alice", vaccineHash, s2),
		"same inputs under different salts must not collide")
}
