package payway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
)

var errSecretRequired = errors.New("payway secret key is required")

// Signer computes keyed hashes over concatenated field values.
type Signer struct {
	key     []byte
	newHash func() hash.Hash
}

func NewSigner(secret, algorithm string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errSecretRequired
	}
	newHash, err := hashFunc(algorithm)
	if err != nil {
		return nil, err
	}
	return &Signer{key: []byte(secret), newHash: newHash}, nil
}

func hashFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", config.HashSHA512:
		return sha512.New, nil
	case config.HashSHA256:
		return sha256.New, nil
	case config.HashSHA3512:
		return sha3.New512, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Sign returns the lowercase hex HMAC of the concatenated values.
func (s *Signer) Sign(values ...string) string {
	mac := hmac.New(s.newHash, s.key)
	for _, v := range values {
		mac.Write([]byte(v))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares provided against the expected signature in constant time.
func (s *Signer) Verify(provided string, values ...string) bool {
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return false
	}
	expected := s.Sign(values...)
	return hmac.Equal([]byte(expected), []byte(provided))
}
