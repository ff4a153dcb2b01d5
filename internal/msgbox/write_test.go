package msgbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestConcurrentWritersGetContiguousSeqs(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})

	const writers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []uint64
		errs []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, view, err := s.WriteMessage(context.Background(), NewMessage{
				ChannelID: ch.ID, FromToken: owner.ID, ContentType: "text/plain", Payload: []byte("x"),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seqs = append(seqs, view.Sequence)
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("write errors: %v", errs)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("seqs = %v, want 1..%d", seqs, writers)
		}
	}
	got, ok, err := s.GetChannel(context.Background(), 1, ch.ExternalID)
	if err != nil || !ok {
		t.Fatalf("get channel: %v %v", ok, err)
	}
	if got.HeadMessageSequence != writers {
		t.Fatalf("head = %d want %d", got.HeadMessageSequence, writers)
	}
}

func TestConcurrentSequencedWritersOnlyOneWins(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
		peer, err := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "peer", CanRead: true, CanWrite: true})
		if err != nil {
			t.Fatalf("create token: %v", err)
		}

		// Both start with zero unread; whoever commits first leaves the other
		// with a backlog.
		var (
			wg      sync.WaitGroup
			results = make([]error, 2)
		)
		for i, from := range []Token{owner, peer} {
			wg.Add(1)
			go func(i int, from Token) {
				defer wg.Done()
				_, _, results[i] = s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: from.ID, Payload: []byte("x")})
			}(i, from)
		}
		wg.Wait()

		ok, rejected := 0, 0
		for _, err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSequencingFailure):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || rejected != 1 {
			t.Fatalf("round %d: ok=%d rejected=%d", round, ok, rejected)
		}
	}
}

func TestSequencedSelfWritesDoNotBlockSender(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	peer, err := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "peer", CanRead: true, CanWrite: true})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if _, view := mustWrite(t, s, ch, owner, "self"); view.Sequence != uint64(i) {
			t.Fatalf("seq = %d want %d", view.Sequence, i)
		}
	}
	if _, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: peer.ID}); !errors.Is(err, ErrSequencingFailure) {
		t.Fatalf("peer with backlog: want sequencing failure, got %v", err)
	}
	if n, err := s.MarkMessages(ctx, ch.ExternalID, peer.ID, 3, true, true); err != nil || n != 3 {
		t.Fatalf("mark older: n=%d err=%v", n, err)
	}
	if _, view := mustWrite(t, s, ch, peer, "reply"); view.Sequence != 4 {
		t.Fatalf("reply seq = %d", view.Sequence)
	}
}

func TestWriteToLockedChannelChangesNothing(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	mustWrite(t, s, ch, owner, "before")

	locked := true
	if _, ok, err := s.AmendChannel(ctx, ch.ExternalID, ChannelAmend{Locked: &locked}); err != nil || !ok {
		t.Fatalf("amend: %v %v", ok, err)
	}
	msgsBefore := countPrefix(t, db, pfxMessage)
	statusBefore := countPrefix(t, db, pfxStatus)

	_, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: owner.ID, Payload: []byte("after")})
	if !errors.Is(err, ErrChannelLocked) {
		t.Fatalf("want ErrChannelLocked, got %v", err)
	}
	if n := countPrefix(t, db, pfxMessage); n != msgsBefore {
		t.Fatalf("message rows changed: %d -> %d", msgsBefore, n)
	}
	if n := countPrefix(t, db, pfxStatus); n != statusBefore {
		t.Fatalf("status rows changed: %d -> %d", statusBefore, n)
	}

	unlocked := false
	if _, _, err := s.AmendChannel(ctx, ch.ExternalID, ChannelAmend{Locked: &unlocked}); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, view := mustWrite(t, s, ch, owner, "after"); view.Sequence != 2 {
		t.Fatalf("seq after unlock = %d", view.Sequence)
	}
}

func TestSequencedChannelRequiresReadBeforeWrite(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	peer, err := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "peer", CanRead: true, CanWrite: true})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, view := mustWrite(t, s, ch, owner, "first"); view.Sequence != 1 {
		t.Fatalf("first seq = %d", view.Sequence)
	}
	_, _, err = s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: peer.ID, Payload: []byte("second")})
	if !errors.Is(err, ErrSequencingFailure) {
		t.Fatalf("want ErrSequencingFailure, got %v", err)
	}

	n, err := s.MarkMessages(ctx, ch.ExternalID, peer.ID, 1, false, true)
	if err != nil || n != 1 {
		t.Fatalf("mark: n=%d err=%v", n, err)
	}
	if _, view := mustWrite(t, s, ch, peer, "second"); view.Sequence != 2 {
		t.Fatalf("second seq = %d want 2", view.Sequence)
	}
}

func TestSequencingIgnoresDeletedBacklog(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: true})
	peer, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true, CanWrite: true})

	msgID, _ := mustWrite(t, s, ch, owner, "first")
	if ok, err := s.DeleteMessage(ctx, msgID); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, view := mustWrite(t, s, ch, peer, "second"); view.Sequence != 2 {
		t.Fatalf("deleted messages must not free their seq; got %d", view.Sequence)
	}
}

func TestFanOutMatchesLiveTokens(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "reader", CanRead: true})
	gone, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "gone", CanRead: true})
	if err := s.RevokeToken(ctx, gone.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	msgID, _ := mustWrite(t, s, ch, owner, "hello")
	late, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "late", CanRead: true})

	rows, err := s.MessageStatuses(ctx, msgID)
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 status rows, got %d: %+v", len(rows), rows)
	}
	byToken := map[uint64]MessageStatus{}
	for _, r := range rows {
		byToken[r.TokenID] = r
	}
	if st, ok := byToken[owner.ID]; !ok || !st.IsRead || st.IsDeleted {
		t.Fatalf("owner row: %+v", st)
	}
	if st, ok := byToken[reader.ID]; !ok || st.IsRead || st.IsDeleted {
		t.Fatalf("reader row: %+v", st)
	}
	if _, ok := byToken[gone.ID]; ok {
		t.Fatalf("expired token got a status row")
	}
	if _, ok := byToken[late.ID]; ok {
		t.Fatalf("token created after the write got a status row")
	}
}

func TestWriteRejectsUnknownChannelAndForeignToken(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	_, other := mustCreateChannel(t, s, 1, ChannelCreate{})

	if _, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID + 1000, FromToken: owner.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing channel: %v", err)
	}
	if _, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: other.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign token: %v", err)
	}
	if err := s.RevokeToken(ctx, owner.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, _, err := s.WriteMessage(ctx, NewMessage{ChannelID: ch.ID, FromToken: owner.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token: %v", err)
	}
}

func TestWorkedExample(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, t0 := mustCreateChannel(t, s, 1, ChannelCreate{Sequenced: false})

	helloID, hello := mustWrite(t, s, ch, t0, "hello")
	if hello.Sequence != 1 {
		t.Fatalf("hello seq = %d", hello.Sequence)
	}
	rows, _ := s.MessageStatuses(ctx, helloID)
	if len(rows) != 1 || rows[0].TokenID != t0.ID || !rows[0].IsRead {
		t.Fatalf("hello rows: %+v", rows)
	}

	t1, err := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "reader", CanRead: true})
	if err != nil {
		t.Fatalf("create T1: %v", err)
	}
	worldID, world := mustWrite(t, s, ch, t0, "world")
	if world.Sequence != 2 {
		t.Fatalf("world seq = %d", world.Sequence)
	}
	rows, _ = s.MessageStatuses(ctx, worldID)
	if len(rows) != 2 {
		t.Fatalf("world rows: %+v", rows)
	}
	for _, r := range rows {
		if (r.TokenID == t0.ID) != r.IsRead {
			t.Fatalf("row read flags wrong: %+v", r)
		}
	}

	page, ok, err := s.GetMessages(ctx, t1.ID, true)
	if err != nil || !ok {
		t.Fatalf("get messages: %v %v", ok, err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Sequence != 2 || string(page.Messages[0].Payload) != "world" {
		t.Fatalf("unread for T1: %+v", page.Messages)
	}
	if !page.MaxSequence.Valid || page.MaxSequence.Value != 2 {
		t.Fatalf("max sequence = %+v", page.MaxSequence)
	}
}
