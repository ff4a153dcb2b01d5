package msgbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCreateChannelIssuesOwnerToken(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 42, ChannelCreate{PublicRead: true, Sequenced: true,
		Retention: Retention{MinAgeDays: 1, MaxAgeDays: 7, AutoPrune: true}})

	if ch.ExternalID == "" || ch.AccountID != 42 || !ch.PublicRead || ch.PublicWrite || !ch.Sequenced {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if owner.Description != "Owner" || !owner.CanRead || !owner.CanWrite || owner.ValidTo != nil {
		t.Fatalf("unexpected owner token: %+v", owner)
	}
	resolved, ok, err := s.ResolveToken(ctx, owner.Token)
	if err != nil || !ok || resolved.ID != owner.ID || resolved.ChannelID != ch.ID {
		t.Fatalf("resolve owner: %+v %v %v", resolved, ok, err)
	}

	got, ok, err := s.GetChannel(ctx, 42, ch.ExternalID)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if got.Retention != ch.Retention || got.HeadMessageSequence != 0 || len(got.Tokens) != 1 {
		t.Fatalf("round trip: %+v", got)
	}
	if _, ok, _ := s.GetChannel(ctx, 7, ch.ExternalID); ok {
		t.Fatalf("channel visible to another account")
	}
}

func TestCreateChannelRejectsInvalidRetention(t *testing.T) {
	s, db := newTestStore(t, Options{})
	_, err := s.CreateChannel(context.Background(), 1, ChannelCreate{Retention: Retention{MinAgeDays: 10, MaxAgeDays: 2}})
	if !errors.Is(err, ErrInvalidRetention) {
		t.Fatalf("want ErrInvalidRetention, got %v", err)
	}
	if n := countPrefix(t, db, pfxChannel); n != 0 {
		t.Fatalf("channel persisted despite error")
	}
}

func TestCreateChannelRetriesExternalIDCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	s, _ := newTestStore(t, Options{NewExternalID: func() (string, error) {
		if len(ids) == 0 {
			return "", fmt.Errorf("exhausted")
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}})
	a, _ := mustCreateChannel(t, s, 1, ChannelCreate{})
	b, _ := mustCreateChannel(t, s, 1, ChannelCreate{})
	if a.ExternalID != "dup" || b.ExternalID != "fresh" {
		t.Fatalf("external ids = %q, %q", a.ExternalID, b.ExternalID)
	}
}

func TestCreateChannelIsAtomic(t *testing.T) {
	s, db := newTestStore(t, Options{NewExternalID: func() (string, error) { return "", fmt.Errorf("entropy unavailable") }})
	if _, err := s.CreateChannel(context.Background(), 1, ChannelCreate{}); err == nil {
		t.Fatalf("expected error")
	}
	if n := countPrefix(t, db, pfxChannel) + countPrefix(t, db, pfxToken); n != 0 {
		t.Fatalf("partial create left %d rows", n)
	}
}

func TestListChannelsScopedToAccount(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	a1, _ := mustCreateChannel(t, s, 1, ChannelCreate{})
	a2, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	mustCreateChannel(t, s, 2, ChannelCreate{})
	mustWrite(t, s, a2, owner, "m")

	list, err := s.ListChannels(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ExternalID != a1.ExternalID || list[1].ExternalID != a2.ExternalID {
		t.Fatalf("list = %+v", list)
	}
	if list[1].HeadMessageSequence != 1 {
		t.Fatalf("head seq = %d", list[1].HeadMessageSequence)
	}
}

func TestAmendChannelPartialUpdate(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, _ := mustCreateChannel(t, s, 1, ChannelCreate{PublicRead: true})

	yes := true
	got, ok, err := s.AmendChannel(ctx, ch.ExternalID, ChannelAmend{PublicWrite: &yes})
	if err != nil || !ok {
		t.Fatalf("amend: %v %v", ok, err)
	}
	if !got.PublicRead || !got.PublicWrite || got.Locked {
		t.Fatalf("amended = %+v", got)
	}
	if _, ok, err := s.AmendChannel(ctx, "missing", ChannelAmend{Locked: &yes}); err != nil || ok {
		t.Fatalf("amend missing: %v %v", ok, err)
	}
}

func TestDeleteChannelCascades(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true})
	mustWrite(t, s, ch, owner, "one")
	mustWrite(t, s, ch, owner, "two")

	keep, keepOwner := mustCreateChannel(t, s, 1, ChannelCreate{})
	mustWrite(t, s, keep, keepOwner, "survivor")

	ok, err := s.DeleteChannel(ctx, ch.ExternalID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, ok, _ := s.GetChannel(ctx, 1, ch.ExternalID); ok {
		t.Fatalf("channel still visible")
	}
	if _, ok, _ := s.ResolveToken(ctx, reader.Token); ok {
		t.Fatalf("token survived cascade")
	}
	if _, ok, _ := s.GetMessages(ctx, owner.ID, false); ok {
		t.Fatalf("messages survived cascade")
	}

	// only the surviving channel's rows remain
	expect := map[string]int{
		string(pfxChannel):      1,
		string(pfxExternal):     1,
		string(pfxAccountChan):  1,
		string(pfxToken):        1,
		string(pfxTokenString):  1,
		string(pfxChannelToken): 1,
		string(pfxMessage):      1,
		string(pfxMessageID):    1,
		string(pfxStatus):       1,
		string(pfxMessageStat):  1,
	}
	for prefix, want := range expect {
		if got := countPrefix(t, db, []byte(prefix)); got != want {
			t.Errorf("%s: %d rows, want %d", prefix, got, want)
		}
	}

	if ok, err := s.DeleteChannel(ctx, ch.ExternalID); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}
