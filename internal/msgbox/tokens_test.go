package msgbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExpiredTokenStopsResolvingButKeepsHistory(t *testing.T) {
	mc := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newTestStore(t, Options{Now: mc.now})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, err := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "reader", CanRead: true})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	firstID, _ := mustWrite(t, s, ch, owner, "before")

	if err := s.RevokeToken(ctx, reader.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, err := s.ResolveToken(ctx, reader.Token); err != nil || ok {
		t.Fatalf("revoked token still resolves: %v %v", ok, err)
	}
	if _, ok, _ := s.GetTokenByID(ctx, reader.ID); ok {
		t.Fatalf("revoked token still returned by id")
	}

	secondID, _ := mustWrite(t, s, ch, owner, "after")
	rows, _ := s.MessageStatuses(ctx, secondID)
	if len(rows) != 1 || rows[0].TokenID != owner.ID {
		t.Fatalf("revoked token included in fan-out: %+v", rows)
	}

	rows, _ = s.MessageStatuses(ctx, firstID)
	found := false
	for _, r := range rows {
		if r.TokenID == reader.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("historical status row of revoked token is gone")
	}
	if ok, err := s.SequenceExists(ctx, reader.ID, 1); err != nil || !ok {
		t.Fatalf("sequence exists for revoked token: %v %v", ok, err)
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	mc := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newTestStore(t, Options{Now: mc.now})
	ctx := context.Background()
	ch, _ := mustCreateChannel(t, s, 1, ChannelCreate{})
	tok, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{CanRead: true})

	if err := s.RevokeToken(ctx, tok.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	validTo := func() *time.Time {
		got, ok, err := s.GetChannel(ctx, 1, ch.ExternalID)
		if err != nil || !ok {
			t.Fatalf("get channel: %v %v", ok, err)
		}
		for _, tk := range got.Tokens {
			if tk.ID == tok.ID {
				return tk.ValidTo
			}
		}
		return nil
	}
	a := validTo()
	mc.advance(time.Hour)
	if err := s.RevokeToken(ctx, tok.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	b := validTo()
	if a == nil || b == nil || !a.Equal(*b) {
		t.Fatalf("valid_to moved on second revoke: %v -> %v", a, b)
	}
	if err := s.RevokeToken(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestAuthorizeChecksChannelMembership(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	a, ownerA := mustCreateChannel(t, s, 1, ChannelCreate{})
	_, ownerB := mustCreateChannel(t, s, 1, ChannelCreate{})

	if ok, err := s.Authorize(ctx, a.ExternalID, ownerA.ID); err != nil || !ok {
		t.Fatalf("own channel: %v %v", ok, err)
	}
	if ok, _ := s.Authorize(ctx, a.ExternalID, ownerB.ID); ok {
		t.Fatalf("foreign token authorized")
	}
	if ok, _ := s.Authorize(ctx, "nope", ownerA.ID); ok {
		t.Fatalf("unknown channel authorized")
	}
}

func TestListTokensFiltersLiveAndString(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	ch, owner := mustCreateChannel(t, s, 1, ChannelCreate{})
	reader, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "reader", CanRead: true})
	gone, _ := s.CreateToken(ctx, ch.ID, 1, TokenCreate{Description: "gone"})
	_ = s.RevokeToken(ctx, gone.ID)

	all, err := s.ListTokens(ctx, ch.ExternalID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != owner.ID || all[1].ID != reader.ID {
		t.Fatalf("live tokens = %+v", all)
	}
	one, _ := s.ListTokens(ctx, ch.ExternalID, reader.Token)
	if len(one) != 1 || one[0].ID != reader.ID {
		t.Fatalf("filtered = %+v", one)
	}
	none, _ := s.ListTokens(ctx, ch.ExternalID, gone.Token)
	if len(none) != 0 {
		t.Fatalf("expired token listed: %+v", none)
	}
}

func TestCreateTokenOnMissingChannel(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	if _, err := s.CreateToken(context.Background(), 404, 1, TokenCreate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
