package msgbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"
)

// Message record encoding: varint headerLen | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func decodeRecord(b []byte) (header, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || n+4 > len(b) || hlen > uint64(len(b)-n-4) {
		return nil, nil, false
	}
	header = b[n : n+int(hlen)]
	payload = b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return nil, nil, false
	}
	return header, payload, true
}

type messageHeader struct {
	ID          uint64 `json:"id"`
	FromToken   uint64 `json:"from"`
	ReceivedNs  int64  `json:"ts"`
	ContentType string `json:"ct"`
}

func encodeMessage(m Message) ([]byte, error) {
	h, err := json.Marshal(messageHeader{
		ID:          m.ID,
		FromToken:   m.FromToken,
		ReceivedNs:  m.ReceivedAt.UnixNano(),
		ContentType: m.ContentType,
	})
	if err != nil {
		return nil, err
	}
	return encodeRecord(h, m.Payload), nil
}

func decodeMessage(channelID, seq uint64, b []byte) (Message, error) {
	hb, payload, ok := decodeRecord(b)
	if !ok {
		return Message{}, fmt.Errorf("msgbox: corrupt message record channel=%d seq=%d", channelID, seq)
	}
	var h messageHeader
	if err := json.Unmarshal(hb, &h); err != nil {
		return Message{}, fmt.Errorf("msgbox: message header channel=%d seq=%d: %w", channelID, seq, err)
	}
	return Message{
		ID:          h.ID,
		FromToken:   h.FromToken,
		ChannelID:   channelID,
		Seq:         seq,
		ReceivedAt:  time.Unix(0, h.ReceivedNs).UTC(),
		ContentType: h.ContentType,
		Payload:     append([]byte(nil), payload...),
	}, nil
}

type channelRow struct {
	ID          uint64    `json:"id"`
	AccountID   int64     `json:"accountId"`
	ExternalID  string    `json:"externalId"`
	PublicRead  bool      `json:"publicRead"`
	PublicWrite bool      `json:"publicWrite"`
	Locked      bool      `json:"locked"`
	Sequenced   bool      `json:"sequenced"`
	Retention   Retention `json:"retention"`
}

func (r channelRow) channel() Channel {
	return Channel{
		ID:          r.ID,
		AccountID:   r.AccountID,
		ExternalID:  r.ExternalID,
		PublicRead:  r.PublicRead,
		PublicWrite: r.PublicWrite,
		Locked:      r.Locked,
		Sequenced:   r.Sequenced,
		Retention:   r.Retention,
	}
}

type tokenRow struct {
	ID          uint64 `json:"id"`
	AccountID   int64  `json:"accountId"`
	ChannelID   uint64 `json:"channelId"`
	Token       string `json:"token"`
	Description string `json:"description"`
	CanRead     bool   `json:"canRead"`
	CanWrite    bool   `json:"canWrite"`
	ValidFromNs int64  `json:"validFrom"`
	ValidToNs   *int64 `json:"validTo,omitempty"`
}

func (r tokenRow) token() Token {
	t := Token{
		ID:          r.ID,
		AccountID:   r.AccountID,
		ChannelID:   r.ChannelID,
		Token:       r.Token,
		Description: r.Description,
		CanRead:     r.CanRead,
		CanWrite:    r.CanWrite,
		ValidFrom:   time.Unix(0, r.ValidFromNs).UTC(),
	}
	if r.ValidToNs != nil {
		vt := time.Unix(0, *r.ValidToNs).UTC()
		t.ValidTo = &vt
	}
	return t
}

// liveAt mirrors Token.LiveAt on the stored row.
func (r tokenRow) liveAt(now time.Time) bool {
	return r.ValidToNs == nil || *r.ValidToNs >= now.UnixNano()
}

// Status row value: statusID_be8 | messageID_be8 | flags
const (
	flagRead    byte = 1 << 0
	flagDeleted byte = 1 << 1
	statusLen        = 17
)

type statusRow struct {
	ID        uint64
	MessageID uint64
	Flags     byte
}

func (s statusRow) read() bool    { return s.Flags&flagRead != 0 }
func (s statusRow) deleted() bool { return s.Flags&flagDeleted != 0 }

func encodeStatus(s statusRow) []byte {
	out := make([]byte, 0, statusLen)
	out = appendBE8(out, s.ID)
	out = appendBE8(out, s.MessageID)
	return append(out, s.Flags)
}

func decodeStatus(b []byte) (statusRow, error) {
	if len(b) != statusLen {
		return statusRow{}, fmt.Errorf("msgbox: corrupt status row (%d bytes)", len(b))
	}
	return statusRow{ID: be8(b[0:8]), MessageID: be8(b[8:16]), Flags: b[16]}, nil
}

func setFlag(flags, f byte, on bool) byte {
	if on {
		return flags | f
	}
	return flags &^ f
}
