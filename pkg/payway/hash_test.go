package payway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerIsDeterministic(t *testing.T) {
	signer, err := NewSigner("secret", "sha512")
	require.NoError(t, err)

	first := signer.Sign("a", "b", "c")
	second := signer.Sign("a", "b", "c")
	assert.Equal(t, first, second)
	assert.Len(t, first, 128)
}

func TestSignerAlgorithms(t *testing.T) {
	lengths := map[string]int{"sha512": 128, "sha256": 64, "sha3-512": 128, "": 128}
	for algo, want := range lengths {
		signer, err := NewSigner("secret", algo)
		require.NoError(t, err, algo)
		assert.Len(t, signer.Sign("x"), want, algo)
	}

	sha2, _ := NewSigner("secret", "sha512")
	sha3, _ := NewSigner("secret", "sha3-512")
	assert.NotEqual(t, sha2.Sign("x"), sha3.Sign("x"))

	_, err := NewSigner("secret", "md5")
	require.Error(t, err)
	_, err = NewSigner(" ", "sha512")
	require.Error(t, err)
}

func TestSignerVerify(t *testing.T) {
	signer, err := NewSigner("secret", "sha512")
	require.NoError(t, err)

	sig := signer.Sign("ORD-1-1", "", "00")
	assert.True(t, signer.Verify(sig, "ORD-1-1", "", "00"))
	assert.True(t, signer.Verify(" "+sig+" ", "ORD-1-1", "", "00"))
	assert.False(t, signer.Verify(sig, "ORD-1-1", "", "02"))
	assert.False(t, signer.Verify("", "ORD-1-1", "", "00"))

	other, _ := NewSigner("other", "sha512")
	assert.False(t, other.Verify(sig, "ORD-1-1", "", "00"))
}
