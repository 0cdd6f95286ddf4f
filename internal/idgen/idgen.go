// Package idgen assigns short, URL-safe message ids to outbound CALLs.
package idgen

import (
	"math/big"

	"github.com/google/uuid"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// base62Len is the fixed width of a generated id: a 128-bit UUID encodes to
// at most 22 base62 digits, left-padded with '0' to that width so every id
// has the same length regardless of leading zero bytes.
const base62Len = 22

// Generator produces message ids from random UUIDs encoded as base62, giving
// a fixed-width, alphanumeric id that is safe to embed in an OCPP-J frame
// without escaping.
type Generator struct{}

// New returns an id Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a fresh, fixed-width base62-encoded id.
func (g *Generator) NewID() string {
	return Encode(uuid.New())
}

// Encode base62-encodes a UUID's 128 bits, left-padded to base62Len.
func Encode(id uuid.UUID) string {
	n := new(big.Int).SetBytes(id[:])
	base := big.NewInt(int64(len(alphabet)))
	zero := big.NewInt(0)
	mod := new(big.Int)

	buf := make([]byte, 0, base62Len)
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base, mod)
		buf = append(buf, alphabet[mod.Int64()])
	}
	for len(buf) < base62Len {
		buf = append(buf, alphabet[0])
	}
	reverse(buf)
	return string(buf)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
