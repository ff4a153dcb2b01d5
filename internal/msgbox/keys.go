package msgbox

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
//   - mb/c/{chan_be8}                      channel row (JSON)
//   - mb/cx/{external_id}                  external id -> chan_be8
//   - mb/ac/{account_be8}/{chan_be8}       account -> channel index
//   - mb/t/{token_be8}                     token row (JSON)
//   - mb/tx/{token_string}                 token string -> token_be8
//   - mb/ct/{chan_be8}/{token_be8}         channel -> token index
//   - mb/m/{chan_be8}/{seq_be8}            message record
//   - mb/mi/{message_be8}                  message id -> chan_be8|seq_be8
//   - mb/s/{token_be8}/{seq_be8}           status row for (token, message at seq)
//   - mb/ms/{message_be8}/{token_be8}      message -> status index
//   - mb/id/{kind}                         id allocator high-water mark

var (
	pfxChannel      = []byte("mb/c/")
	pfxExternal     = []byte("mb/cx/")
	pfxAccountChan  = []byte("mb/ac/")
	pfxToken        = []byte("mb/t/")
	pfxTokenString  = []byte("mb/tx/")
	pfxChannelToken = []byte("mb/ct/")
	pfxMessage      = []byte("mb/m/")
	pfxMessageID    = []byte("mb/mi/")
	pfxStatus       = []byte("mb/s/")
	pfxMessageStat  = []byte("mb/ms/")
	pfxIDAlloc      = []byte("mb/id/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func be8(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func withU64(prefix []byte, vs ...uint64) []byte {
	k := make([]byte, 0, len(prefix)+8*len(vs))
	k = append(k, prefix...)
	for _, v := range vs {
		k = appendBE8(k, v)
	}
	return k
}

func withString(prefix []byte, s string) []byte {
	k := make([]byte, 0, len(prefix)+len(s))
	k = append(k, prefix...)
	return append(k, s...)
}

func keyChannel(id uint64) []byte              { return withU64(pfxChannel, id) }
func keyExternal(externalID string) []byte     { return withString(pfxExternal, externalID) }
func keyAccountChannel(acct, id uint64) []byte { return withU64(pfxAccountChan, acct, id) }
func keyToken(id uint64) []byte                { return withU64(pfxToken, id) }
func keyTokenString(token string) []byte       { return withString(pfxTokenString, token) }
func keyChannelToken(ch, tok uint64) []byte    { return withU64(pfxChannelToken, ch, tok) }
func keyMessage(ch, seq uint64) []byte         { return withU64(pfxMessage, ch, seq) }
func keyMessageID(id uint64) []byte            { return withU64(pfxMessageID, id) }
func keyStatus(tok, seq uint64) []byte         { return withU64(pfxStatus, tok, seq) }
func keyMessageStatus(msg, tok uint64) []byte  { return withU64(pfxMessageStat, msg, tok) }
func keyIDAlloc(kind string) []byte            { return withString(pfxIDAlloc, kind) }

func prefixAccountChannels(acct uint64) []byte { return withU64(pfxAccountChan, acct) }
func prefixChannelTokens(ch uint64) []byte     { return withU64(pfxChannelToken, ch) }
func prefixChannelMessages(ch uint64) []byte   { return withU64(pfxMessage, ch) }
func prefixTokenStatus(tok uint64) []byte      { return withU64(pfxStatus, tok) }
func prefixMessageStatus(msg uint64) []byte    { return withU64(pfxMessageStat, msg) }

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix. The prefixes used here never end in 0xff.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// lastU64 decodes the trailing big-endian uint64 of a key.
func lastU64(key []byte) uint64 { return be8(key[len(key)-8:]) }
