// Package credential produces the short-lived pickup credentials a seller
// hands to a buyer: a 6-digit display code for manual entry and an opaque
// token for scan-based confirmation.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"
)

// TTL is the validity window of a pickup credential from generation.
const TTL = 30 * time.Minute

const (
	codeModulus = 1000000 // 6 decimal digits
	tokenBytes  = 16
)

// Credential is a freshly generated code/token pair. Code and Token are
// bound 1:1 and scoped to a single order.
type Credential struct {
	Code  string
	Token string
}

type Generator interface {
	Generate() (Credential, error)
}

type randomGenerator struct{}

// New returns a Generator backed by crypto/rand. The display code is a UX
// convenience; the token is the value that must not be guessable within TTL.
func New() Generator {
	return randomGenerator{}
}

func (randomGenerator) Generate() (Credential, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeModulus))
	if err != nil {
		return Credential{}, fmt.Errorf("pickup code generation error: %w", err)
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Credential{}, fmt.Errorf("pickup token generation error: %w", err)
	}

	return Credential{
		Code:  fmt.Sprintf("%06d", n.Int64()),
		Token: base64.RawURLEncoding.EncodeToString(buf),
	}, nil
}
