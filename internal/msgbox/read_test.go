package msgbox

import (
	"context"
	"testing"
	"time"
)

func TestGetMessagesMaxSequenceAbsentVsPresent(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})

	page, ok, err := s.GetMessages(ctx, owner.ID, false)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if page.MaxSequence.Valid || len(page.Messages) != 0 {
		t.Fatalf("empty channel page = %+v", page)
	}

	msgID, _ := mustWrite(t, s, ch, owner, "one")
	mustWrite(t, s, ch, owner, "two")
	page, _, _ = s.GetMessages(ctx, owner.ID, false)
	if !page.MaxSequence.Valid || page.MaxSequence.Value != 2 || len(page.Messages) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Messages[0].Sequence != 1 || page.Messages[1].Sequence != 2 {
		t.Fatalf("messages out of order: %+v", page.Messages)
	}
	// the owner's own messages are read
	unread, _, _ := s.GetMessages(ctx, owner.ID, true)
	if len(unread.Messages) != 0 || unread.MaxSequence.Value != 2 {
		t.Fatalf("unread = %+v", unread)
	}

	if _, err := s.DeleteMessage(ctx, msgID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	page, _, _ = s.GetMessages(ctx, owner.ID, false)
	if len(page.Messages) != 1 || page.Messages[0].Sequence != 2 {
		t.Fatalf("deleted message still listed: %+v", page.Messages)
	}

	if _, ok, _ := s.GetMessages(ctx, 9999, false); ok {
		t.Fatalf("unknown token returned a page")
	}
}

func TestGetMessagesSequencedReadsOnly(t *testing.T) {
	s, _ := newTestStore(t, Options{SequencedReadsOnly: true})
	ctx := context.Background()
	plain, plainOwner := mustCreateChannel(t, s, 1, ChannelCreate{})
	mustWrite(t, s, plain, plainOwner, "x")
	if _, ok, err := s.GetMessages(ctx, plainOwner.ID, false); err != nil || ok {
		t.Fatalf("unsequenced read allowed: %v %v", ok, err)
	}

	seq, seqOwner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	mustWrite(t, s, seq, seqOwner, "y")
	if page, ok, err := s.GetMessages(ctx, seqOwner.ID, false); err != nil || !ok || len(page.Messages) != 1 {
		t.Fatalf("sequenced read: %+v %v %v", page, ok, err)
	}
}

func TestMarkMessages(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true})
	for i := 0; i < 4; i++ {
		mustWrite(t, s, ch, owner, "m")
	}

	tests := []struct {
		name       string
		seq        uint64
		older      bool
		read       bool
		wantN      int
		wantUnread []uint64
	}{
		{"single", 2, false, true, 1, []uint64{1, 3, 4}},
		{"older", 3, true, true, 3, []uint64{4}},
		{"unmark single", 1, false, false, 1, []uint64{1, 4}},
		{"missing seq", 9, false, true, 0, []uint64{1, 4}},
		{"all older", 9, true, true, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.MarkMessages(ctx, ch.ExternalID, reader.ID, tt.seq, tt.older, tt.read)
			if err != nil {
				t.Fatalf("mark: %v", err)
			}
			if n != tt.wantN {
				t.Fatalf("matched %d want %d", n, tt.wantN)
			}
			page, _, _ := s.GetMessages(ctx, reader.ID, true)
			var got []uint64
			for _, m := range page.Messages {
				got = append(got, m.Sequence)
			}
			if len(got) != len(tt.wantUnread) {
				t.Fatalf("unread = %v want %v", got, tt.wantUnread)
			}
			for i := range got {
				if got[i] != tt.wantUnread[i] {
					t.Fatalf("unread = %v want %v", got, tt.wantUnread)
				}
			}
		})
	}

	other, otherOwner := mustCreateChannel(t, s, 1, ChannelCreate{})
	mustWrite(t, s, other, otherOwner, "x")
	if n, _ := s.MarkMessages(ctx, ch.ExternalID, otherOwner.ID, 1, true, false); n != 0 {
		t.Fatalf("token from another channel matched %d rows", n)
	}
}

func TestDeleteMessageSoftDeletesAllRecipients(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true})
	msgID, _ := mustWrite(t, s, ch, owner, "bye")
	before := countPrefix(t, db, pfxStatus)

	ok, err := s.DeleteMessage(ctx, msgID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	rows, _ := s.MessageStatuses(ctx, msgID)
	for _, r := range rows {
		if !r.IsDeleted {
			t.Fatalf("row not deleted: %+v", r)
		}
	}
	if n := countPrefix(t, db, pfxStatus); n != before {
		t.Fatalf("status rows physically removed: %d -> %d", before, n)
	}
	if _, ok, _ := s.GetMessage(ctx, ch.ExternalID, reader.ID, 1); ok {
		t.Fatalf("deleted message still readable")
	}
	if _, ok, _ := s.GetMessageMetadata(ctx, ch.ExternalID, 1); ok {
		t.Fatalf("deleted message metadata still visible")
	}
	if ok, _ := s.DeleteMessage(ctx, 12345); ok {
		t.Fatalf("unknown message reported deleted")
	}
}

func TestMessageMetadataAndLookup(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	received := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgID, _, err := s.WriteMessage(ctx, NewMessage{
		ChannelID: ch.ID, FromToken: owner.ID, ContentType: "application/json",
		Payload: []byte(`{"a":1}`), ReceivedAt: received,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	md, ok, err := s.GetMessageMetadata(ctx, ch.ExternalID, 1)
	if err != nil || !ok {
		t.Fatalf("metadata: %v %v", ok, err)
	}
	if md.ID != msgID || md.FromToken != owner.ID || md.ChannelID != ch.ID || md.ContentType != "application/json" || !md.ReceivedAt.Equal(received) {
		t.Fatalf("metadata = %+v", md)
	}
	if _, ok, _ := s.GetMessageMetadata(ctx, ch.ExternalID, 2); ok {
		t.Fatalf("metadata for missing seq")
	}

	view, ok, err := s.GetMessage(ctx, ch.ExternalID, owner.ID, 1)
	if err != nil || !ok || string(view.Payload) != `{"a":1}` {
		t.Fatalf("get message: %+v %v %v", view, ok, err)
	}
	if ok, _ := s.SequenceExists(ctx, owner.ID, 1); !ok {
		t.Fatalf("sequence 1 should exist")
	}
	if ok, _ := s.SequenceExists(ctx, owner.ID, 2); ok {
		t.Fatalf("sequence 2 should not exist")
	}
}

func TestGetMaxSequenceIgnoresOwnMessages(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	peer, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true, CanWrite: true})

	mustWrite(t, s, ch, owner, "from owner")
	if _, err := s.MarkMessages(ctx, ch.ExternalID, peer.ID, 1, false, true); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mustWrite(t, s, ch, peer, "from peer")

	if got, err := s.GetMaxSequence(ctx, peer.Token, ch.ExternalID); err != nil || got != 1 {
		t.Fatalf("peer max = %d %v", got, err)
	}
	if got, _ := s.GetMaxSequence(ctx, owner.Token, ch.ExternalID); got != 2 {
		t.Fatalf("owner max = %d", got)
	}
	if got, _ := s.GetMaxSequence(ctx, "unknown", ch.ExternalID); got != 0 {
		t.Fatalf("unknown token max = %d", got)
	}

	plain, plainOwner := mustCreateChannel(t, s, 1, ChannelCreate{})
	mustWrite(t, s, plain, plainOwner, "x")
	if got, _ := s.GetMaxSequence(ctx, plainOwner.Token, plain.ExternalID); got != 0 {
		t.Fatalf("unsequenced max = %d", got)
	}
}

func TestPruneChannelSoftDeletesOldMessages(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Retention: Retention{MaxAgeDays: 1, AutoPrune: true}})
	mustCreateChannel(t, s, 1, ChannelCreate{Retention: Retention{MaxAgeDays: 1}})

	now := time.Now().UTC()
	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		if _, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: owner.ID, ReceivedAt: now.Add(-age)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	cands, err := s.PruneCandidates(ctx)
	if err != nil || len(cands) != 1 || cands[0].ID != ch.ID {
		t.Fatalf("candidates = %+v %v", cands, err)
	}
	n, err := s.PruneChannel(ctx, ch.ID, now.Add(-24*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("pruned %d %v", n, err)
	}
	page, _, _ := s.GetMessages(ctx, owner.ID, false)
	if len(page.Messages) != 1 || page.Messages[0].Sequence != 3 {
		t.Fatalf("remaining = %+v", page.Messages)
	}
	if n, _ := s.PruneChannel(ctx, ch.ID, now.Add(-24*time.Hour)); n != 0 {
		t.Fatalf("second prune deleted %d", n)
	}
}
