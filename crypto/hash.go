package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// HashPrefix is the fixed prefix every canonical hash string in the system
// carries (spec.md §4.1).
const HashPrefix = "sha256:"

var hashPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// ZeroHash is the all-zero sentinel used as the genesis audit entry's
// previous_log_hash (spec.md §3).
var ZeroHash = HashPrefix + strings.Repeat("0", 64)

// HashString computes the canonical "sha256:<hex>" representation of b.
func HashString(b []byte) string {
	sum := sha256.Sum256(b)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// PairHash combines two canonical hash strings the way Merkle internal nodes
// do (spec.md §4.11): SHA256 of the ASCII concatenation of the two
// "sha256:"-prefixed strings.
func PairHash(left, right string) string {
	return HashString([]byte(left + right))
}

// ValidHash reports whether s is a well-formed canonical hash string.
func ValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// ParseHash validates s and returns it unchanged, or ErrCryptoFormat if it is
// not a well-formed canonical hash string.
func ParseHash(s string) (string, error) {
	if !ValidHash(s) {
		return "", fmt.Errorf("%w: not a canonical sha256 hash: %q", ErrCryptoFormat, s)
	}
	return s, nil
}
