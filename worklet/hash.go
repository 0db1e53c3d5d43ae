package worklet

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash the content hash of a worklet source
func Hash(source string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
