package eventbus

import (
	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

// fingerprint hashes the JSON encoding of a snapshot so polling can skip
// unchanged results.
func fingerprint(v any) ([]byte, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	sum := blake2b.Sum256(b)
	return sum[:], true
}
