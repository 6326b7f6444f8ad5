// Package digest computes content fingerprints of document byte buffers for
// the signing audit trail.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a supported 256-bit hash.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Hasher produces lowercase hex digests with a fixed algorithm.
type Hasher struct {
	algorithm Algorithm
	newHash   func() hash.Hash
}

// New returns a Hasher for the named algorithm. An empty name selects Default.
func New(name string) (*Hasher, error) {
	algorithm := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if algorithm == "" {
		algorithm = Default
	}

	var newHash func() hash.Hash
	switch algorithm {
	case SHA256:
		newHash = sha256.New
	case SHA3_256:
		newHash = sha3.New256
	case BLAKE2b256:
		newHash = func() hash.Hash {
			h, _ := blake2b.New256(nil) // only fails for oversized keys
			return h
		}
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", name)
	}

	return &Hasher{algorithm: algorithm, newHash: newHash}, nil
}

// MustNew is like New but panics on an unsupported algorithm.
func MustNew(name string) *Hasher {
	h, err := New(name)
	if err != nil {
		panic(err)
	}
	return h
}

// Algorithm returns the hasher's algorithm name.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Digest returns the hex-encoded digest of b.
func (h *Hasher) Digest(b []byte) string {
	hh := h.newHash()
	hh.Write(b)
	return hex.EncodeToString(hh.Sum(nil))
}
