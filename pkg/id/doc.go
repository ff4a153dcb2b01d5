// Package id generates identifiers.
//
// Opaque strings: NewExternalID and NewToken return random base64url strings
// for channel external ids and bearer tokens. They carry no structure and
// are compared only for equality.
//
// Sortable IDs: ID is 16 bytes big-endian, [8 bytes ms_timestamp][8 bytes
// sequence], so byte-wise comparison preserves generation order. Generator
// keeps per-process monotonicity: a regressing clock is pinned to the last
// seen millisecond, and a sequence overflow waits for the next one.
//
//	g := id.NewGenerator()
//	subID := g.Next().String()
//	tok, err := id.NewToken()
package id
