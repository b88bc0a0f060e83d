package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

func newDriver(t *testing.T) store.Stores {
	t.Helper()
	d, err := NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	return d
}

func token(c byte) string {
	return strings.Repeat(string(c), 64)
}

func seedPair(t *testing.T, d store.Stores) (*store.Guest, *store.Event) {
	t.Helper()
	ctx := context.Background()

	guest := &store.Guest{Name: "Ada"}
	if err := d.CreateGuest(ctx, guest); err != nil {
		t.Fatalf("CreateGuest failed: %v", err)
	}
	event := &store.Event{Name: "Launch", Date: "2026-06-15"}
	if err := d.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	return guest, event
}

func TestInvitationUniqueness(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	guest, event := seedPair(t, d)

	other := &store.Guest{Name: "Ben"}
	if err := d.CreateGuest(ctx, other); err != nil {
		t.Fatalf("CreateGuest failed: %v", err)
	}

	first := &store.Invitation{GuestID: guest.ID, EventID: event.ID, Token: token('a'), ExpiresAt: time.Now().Add(time.Hour)}
	if err := d.CreateInvitation(ctx, first); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}

	t.Run("pair", func(t *testing.T) {
		dup := &store.Invitation{GuestID: guest.ID, EventID: event.ID, Token: token('b'), ExpiresAt: time.Now().Add(time.Hour)}
		if err := d.CreateInvitation(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
			t.Fatalf("error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("token", func(t *testing.T) {
		clash := &store.Invitation{GuestID: other.ID, EventID: event.ID, Token: token('a'), ExpiresAt: time.Now().Add(time.Hour)}
		if err := d.CreateInvitation(ctx, clash); !errors.Is(err, store.ErrAlreadyExists) {
			t.Fatalf("error = %v, want ErrAlreadyExists", err)
		}
	})
}

func TestUpdateInvitationReindexesToken(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	guest, event := seedPair(t, d)

	inv := &store.Invitation{GuestID: guest.ID, EventID: event.ID, Token: token('a'), ExpiresAt: time.Now().Add(time.Hour)}
	if err := d.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}

	inv.Token = token('b')
	if err := d.UpdateInvitation(ctx, inv); err != nil {
		t.Fatalf("UpdateInvitation failed: %v", err)
	}

	if _, err := d.GetInvitationByToken(ctx, token('a')); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old token still resolves: %v", err)
	}
	got, err := d.GetInvitationByToken(ctx, token('b'))
	if err != nil {
		t.Fatalf("new token does not resolve: %v", err)
	}
	if got.ID != inv.ID {
		t.Errorf("id = %d, want %d", got.ID, inv.ID)
	}
}

func TestUpdateInvitationRejectsTakenToken(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	guest, event := seedPair(t, d)

	other := &store.Guest{Name: "Ben"}
	if err := d.CreateGuest(ctx, other); err != nil {
		t.Fatalf("CreateGuest failed: %v", err)
	}

	first := &store.Invitation{GuestID: guest.ID, EventID: event.ID, Token: token('a'), ExpiresAt: time.Now().Add(time.Hour)}
	second := &store.Invitation{GuestID: other.ID, EventID: event.ID, Token: token('b'), ExpiresAt: time.Now().Add(time.Hour)}
	for _, inv := range []*store.Invitation{first, second} {
		if err := d.CreateInvitation(ctx, inv); err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}
	}

	second.Token = token('a')
	if err := d.UpdateInvitation(ctx, second); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("error = %v, want ErrAlreadyExists", err)
	}
}

func TestExpireInvitations(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	guest, event := seedPair(t, d)

	other := &store.Guest{Name: "Ben"}
	if err := d.CreateGuest(ctx, other); err != nil {
		t.Fatalf("CreateGuest failed: %v", err)
	}

	now := time.Now()
	stale := &store.Invitation{GuestID: guest.ID, EventID: event.ID, Token: token('a'), Status: store.InvitationStatusSent, ExpiresAt: now.Add(-time.Minute)}
	fresh := &store.Invitation{GuestID: other.ID, EventID: event.ID, Token: token('b'), Status: store.InvitationStatusPending, ExpiresAt: now.Add(time.Hour)}
	for _, inv := range []*store.Invitation{stale, fresh} {
		if err := d.CreateInvitation(ctx, inv); err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}
	}

	count, err := d.ExpireInvitations(ctx, now)
	if err != nil {
		t.Fatalf("ExpireInvitations failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired %d rows, want 1", count)
	}

	got, err := d.GetInvitation(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if got.Status != store.InvitationStatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}

func TestRSVPUniquenessAndLookup(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	guest, event := seedPair(t, d)

	first := &store.RSVP{GuestID: guest.ID, EventID: event.ID, Status: store.RSVPStatusAccepted, ResponseDate: time.Now()}
	if err := d.CreateRSVP(ctx, first); err != nil {
		t.Fatalf("CreateRSVP failed: %v", err)
	}

	dup := &store.RSVP{GuestID: guest.ID, EventID: event.ID, Status: store.RSVPStatusDeclined, ResponseDate: time.Now()}
	if err := d.CreateRSVP(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("error = %v, want ErrAlreadyExists", err)
	}

	got, err := d.GetRSVPByPair(ctx, guest.ID, event.ID)
	if err != nil {
		t.Fatalf("GetRSVPByPair failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("id = %d, want %d", got.ID, first.ID)
	}
}

func TestCopySemantics(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	event := &store.Event{Name: "Launch", Date: "2026-06-15"}
	if err := d.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	got, err := d.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	got.Name = "Mutated"

	// Mutating a returned copy must not leak into the store.
	again, err := d.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if again.Name != "Launch" {
		t.Errorf("name = %q, want Launch", again.Name)
	}
}

func TestListEventsOrdering(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	for _, e := range []store.Event{
		{Name: "Later", Date: "2026-09-01"},
		{Name: "Sooner", Date: "2026-06-15"},
	} {
		event := e
		if err := d.CreateEvent(ctx, &event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	list, err := d.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Sooner" {
		t.Fatalf("list order = %v", []string{list[0].Name, list[1].Name})
	}
}
