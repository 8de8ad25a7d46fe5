// Package shortid encodes internal registry keys as compact URL-safe
// tokens. The mapping is a pure bijection: Encode permutes the key with a
// fixed odd multiplier (mod 2^64) and renders the result in a reduced
// lowercase alphabet, so sequential keys never produce sequential tokens
// and the raw key format never appears in URLs.
package shortid

import "errors"

// ErrInvalidID reports a token that was not produced by Encode.
var ErrInvalidID = errors.New("invalid sandbox identifier")

// alphabet omits 0/1/o/i/l to keep tokens unambiguous when read aloud.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const (
	base = uint64(len(alphabet))

	// multiplier is odd, so it is invertible mod 2^64. inverse satisfies
	// multiplier*inverse == 1 (mod 2^64).
	multiplier = 0x9e3779b97f4a7c15
	inverse    = 0xf1de83e19937733d

	// 13 base-31 digits cover the full uint64 range.
	maxTokenLen = 13
)

var digitValue = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range []byte(alphabet) {
		table[c] = int8(i)
	}
	return table
}()

// Encode maps a positive internal id to its public token. The zero and
// negative ranges are never allocated by the registry; Encode returns ""
// for them so a bug surfaces as an invalid token rather than a panic.
func Encode(id int64) string {
	if id <= 0 {
		return ""
	}

	v := uint64(id) * multiplier
	var buf [maxTokenLen]byte
	i := maxTokenLen
	for v > 0 {
		i--
		buf[i] = alphabet[v%base]
		v /= base
	}
	return string(buf[i:])
}

// Decode recovers the internal id from a public token. It accepts only
// canonical tokens: non-empty, known alphabet characters, no redundant
// leading zero digit, no uint64 overflow, and a decoded id in the
// positive int64 range. Anything else is ErrInvalidID.
func Decode(token string) (int64, error) {
	if token == "" || len(token) > maxTokenLen {
		return 0, ErrInvalidID
	}
	if len(token) > 1 && token[0] == alphabet[0] {
		return 0, ErrInvalidID
	}

	var v uint64
	for i := 0; i < len(token); i++ {
		d := digitValue[token[i]]
		if d < 0 {
			return 0, ErrInvalidID
		}
		next := v*base + uint64(d)
		if next/base != v {
			return 0, ErrInvalidID
		}
		v = next
	}

	id := v * inverse
	if id == 0 || id > uint64(1)<<63-1 {
		return 0, ErrInvalidID
	}
	return int64(id), nil
}
