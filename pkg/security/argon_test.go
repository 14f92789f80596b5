package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters, the format and comparison are what's under test.
func testArgon() *ArgonHash {
	return &ArgonHash{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgonRoundTrip(t *testing.T) {
	a := testArgon()

	hash, err := a.GenerateFromPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(t, hash, "correct horse")

	ok, err := a.VerifyPasswd("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.VerifyPasswd("wrong horse battery", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgonSaltsDiffer(t *testing.T) {
	a := testArgon()

	h1, err := a.GenerateFromPassword("same-password")
	require.NoError(t, err)
	h2, err := a.GenerateFromPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgonVerifyUsesEmbeddedParams(t *testing.T) {
	old := testArgon()
	hash, err := old.GenerateFromPassword("password123")
	require.NoError(t, err)

	// Stronger defaults must not break existing hashes
	ok, err := NewArgon().VerifyPasswd("password123", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgonRejectsMalformed(t *testing.T) {
	a := testArgon()

	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	} {
		ok, err := a.VerifyPasswd("x", bad)
		assert.ErrorIs(t, err, ErrInvalidHash, bad)
		assert.False(t, ok)
	}
}
