/*
Package randx generates identifiers: websocket connection ids, file keys,
and random nicknames for new accounts.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Base62Chars is the character set for short random suffixes.
const Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base62Len = big.NewInt(int64(len(Base62Chars)))

// ConnectionID returns an opaque server-assigned id for a websocket
// connection, unique per physical link.
func ConnectionID() string {
	return uuid.New().String()
}

// FileID returns a unique id used to build object storage keys.
func FileID() string {
	return uuid.New().String()
}

// base62Suffix returns n cryptographically random Base62 characters.
func base62Suffix(n int) (string, error) {
	result := make([]byte, n)

	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random suffix: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// UserNickname generates a default nickname for a newly registered account.
func UserNickname() (string, error) {
	suffix, err := base62Suffix(6)
	if err != nil {
		return "", err
	}
	return "User_" + suffix, nil
}
