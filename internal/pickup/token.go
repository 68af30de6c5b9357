package pickup

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"

	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

const (
	// TokenLength is the fixed pickup code length.
	TokenLength = 6

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// lockerCount is the number of physical lockers at the pickup point.
	lockerCount = 48
)

// MintToken generates a random uppercase alphanumeric pickup code.
func MintToken() (string, error) {
	var b strings.Builder
	b.Grow(TokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < TokenLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting pickup token")
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// AssignLocker picks a locker for a new order.
func AssignLocker() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(lockerCount))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assigning locker")
	}
	return int(n.Int64()) + 1, nil
}

// ValidateTokenFormat rejects malformed codes before any lookup happens.
// Lowercase input is accepted; anything outside the token alphabet is not.
func ValidateTokenFormat(code string) error {
	if len(code) != TokenLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup code must be 6 characters")
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "pickup code must be letters and digits only")
		}
	}
	return nil
}

// tokensMatch compares codes case-insensitively in constant time.
func tokensMatch(provided, expected string) bool {
	a := strings.ToUpper(provided)
	b := strings.ToUpper(expected)
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
