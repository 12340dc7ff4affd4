// Package token allocates process-unique, monotonic identifiers for
// registered I/O sources.
package token

import "sync/atomic"

// Token is an opaque, process-unique, monotonically increasing id.
type Token uint64

var counter atomic.Uint64

// Next allocates the next Token. The zero Token is never issued, so a
// Token's zero value can be used as "unset".
func Next() Token {
	return Token(counter.Add(1))
}
