package session

import (
	"crypto/rand"
	"math/big"
)

// idAlphabet omits characters that read ambiguously when spoken or written
// down (0/O, 1/l/I), so ids can be relayed over chat or voice.
const idAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789=+"

// DefaultIDLength keeps ids short enough to type; at this length collisions
// are expected at scale, so creation must retry on a duplicate insert.
const DefaultIDLength = 4

// GenerateID returns a session id of the given length drawn uniformly from
// the curated alphabet.
func GenerateID(length int) (string, error) {
	if length <= 0 {
		length = DefaultIDLength
	}
	b := make([]byte, length)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b), nil
}
