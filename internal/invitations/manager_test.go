package invitations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/platform/cache/memory"
	"github.com/eventinvite/eventinvite-go/internal/store"
	storemem "github.com/eventinvite/eventinvite-go/internal/store/memory"
	"github.com/eventinvite/eventinvite-go/internal/validate"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []uint
	err  error
}

func (d *fakeDispatcher) Send(_ context.Context, inv *store.Invitation, _ *store.Guest, _ *store.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, inv.ID)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fixture struct {
	mgr        *Manager
	stores     store.Stores
	dispatcher *fakeDispatcher
	now        time.Time
	guest      *store.Guest
	event      *store.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores, err := storemem.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })

	f := &fixture{
		stores:     stores,
		dispatcher: &fakeDispatcher{},
		now:        time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.mgr = New(stores, f.dispatcher, c, 30, nil, WithClock(func() time.Time { return f.now }))

	ctx := context.Background()
	f.guest = &store.Guest{Name: "Ada", Email: "ada@example.com"}
	if err := stores.CreateGuest(ctx, f.guest); err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}
	f.event = &store.Event{Name: "Launch", Date: "2026-06-15", Time: "18:00"}
	if err := stores.CreateEvent(ctx, f.event); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !validate.ValidToken(inv.Token) {
		t.Errorf("token %q is not 64 hex chars", inv.Token)
	}
	if inv.Status != store.InvitationStatusPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.IsSent || inv.IsOpened {
		t.Error("new invitation must not be sent or opened")
	}
	want := f.now.Add(30 * 24 * time.Hour)
	if !inv.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", inv.ExpiresAt, want)
	}
}

func TestCreateDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Create error = %v, want ErrDuplicate", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		guestID uint
		eventID uint
		wantErr error
	}{
		{"zero guest id", 0, f.event.ID, &validate.Error{}},
		{"zero event id", f.guest.ID, 0, &validate.Error{}},
		{"missing guest", 999, f.event.ID, store.ErrNotFound},
		{"missing event", f.guest.ID, 999, store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.Create(ctx, tt.guestID, tt.eventID)
			if err == nil {
				t.Fatal("expected error")
			}
			var verr *validate.Error
			if errors.As(tt.wantErr, &verr) {
				if !errors.As(err, &verr) {
					t.Fatalf("error = %v, want validation error", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBulk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &store.Guest{Name: "Ben"}
	if err := f.stores.CreateGuest(ctx, second); err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}

	// An existing invitation counts toward Created.
	if _, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := f.mgr.CreateBulk(ctx, f.event.ID, []uint{f.guest.ID, second.ID, 999})
	if err != nil {
		t.Fatalf("CreateBulk failed: %v", err)
	}

	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "guest 999") {
		t.Errorf("Errors = %v, want one entry for guest 999", result.Errors)
	}
}

func TestCreateBulkMissingEvent(t *testing.T) {
	f := newFixture(t)

	if _, err := f.mgr.CreateBulk(context.Background(), 999, []uint{f.guest.ID}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := f.stores.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if !got.IsSent || got.SentAt == nil {
		t.Error("invitation not marked sent")
	}
	if got.Status != store.InvitationStatusSent {
		t.Errorf("status = %q, want sent", got.Status)
	}

	// Second send is a no-op, no second dispatch.
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	if f.dispatcher.count() != 1 {
		t.Errorf("dispatch count = %d, want 1", f.dispatcher.count())
	}
}

func TestSendDispatchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	f.dispatcher.err = errors.New("smtp down")
	if err := f.mgr.Send(ctx, inv.ID); !errors.Is(err, ErrDispatch) {
		t.Fatalf("Send error = %v, want ErrDispatch", err)
	}

	// A failed dispatch leaves the invitation unsent.
	got, err := f.stores.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if got.IsSent || got.Status != store.InvitationStatusPending {
		t.Errorf("invitation = sent=%v status=%q, want unsent pending", got.IsSent, got.Status)
	}

	// Retry succeeds once the transport recovers.
	f.dispatcher.err = nil
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("retry Send failed: %v", err)
	}
}

func TestSendNoEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noEmail := &store.Guest{Name: "Cleo"}
	if err := f.stores.CreateGuest(ctx, noEmail); err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}
	inv, err := f.mgr.Create(ctx, noEmail.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err = f.mgr.Send(ctx, inv.ID)
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Fatalf("Send error = %v, want validation error", err)
	}
	if f.dispatcher.count() != 0 {
		t.Error("dispatcher must not be called for a guest without email")
	}
}

func TestMarkOpened(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	opened, err := f.mgr.MarkOpened(ctx, inv.Token)
	if err != nil {
		t.Fatalf("MarkOpened failed: %v", err)
	}
	if !opened.IsOpened || opened.OpenedAt == nil {
		t.Error("invitation not marked opened")
	}
	if opened.Status != store.InvitationStatusViewed {
		t.Errorf("status = %q, want viewed", opened.Status)
	}
	firstOpenedAt := *opened.OpenedAt

	// Repeat opens keep the original timestamp.
	again, err := f.mgr.MarkOpened(ctx, inv.Token)
	if err != nil {
		t.Fatalf("second MarkOpened failed: %v", err)
	}
	if !again.OpenedAt.Equal(firstOpenedAt) {
		t.Errorf("opened_at changed on repeat open: %v != %v", again.OpenedAt, firstOpenedAt)
	}
}

func TestMarkOpenedBadToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"too short", strings.Repeat("a", 63)},
		{"too long", strings.Repeat("a", 65)},
		{"uppercase", strings.Repeat("A", 64)},
		{"non-hex", strings.Repeat("z", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.MarkOpened(ctx, tt.token)
			var verr *validate.Error
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want validation error", err)
			}
		})
	}

	// Well-formed but unknown token is a lookup miss, not a validation error.
	_, err := f.mgr.MarkOpened(ctx, strings.Repeat("ab", 32))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestMarkOpenedExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Past the invitation expiry window.
	f.now = f.now.Add(31 * 24 * time.Hour)
	if _, err := f.mgr.MarkOpened(ctx, inv.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("error = %v, want ErrExpired", err)
	}
}

func TestMarkOpenedEventDatePassed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Day after the event, still inside the invitation expiry window.
	f.now = time.Date(2026, 6, 16, 9, 0, 0, 0, time.UTC)
	if _, err := f.mgr.MarkOpened(ctx, inv.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("error = %v, want ErrExpired", err)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	oldToken := inv.Token
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := f.mgr.MarkOpened(ctx, oldToken); err != nil {
		t.Fatalf("MarkOpened failed: %v", err)
	}

	f.now = f.now.Add(48 * time.Hour)
	reset, err := f.mgr.Reset(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if reset.Token == oldToken {
		t.Error("reset must issue a new token")
	}
	if !validate.ValidToken(reset.Token) {
		t.Errorf("new token %q is not 64 hex chars", reset.Token)
	}
	if reset.Status != store.InvitationStatusPending || reset.IsSent || reset.IsOpened {
		t.Errorf("reset invitation = %+v, want pristine pending state", reset)
	}
	if reset.SentAt != nil || reset.OpenedAt != nil {
		t.Error("reset must clear sent_at and opened_at")
	}
	want := f.now.Add(30 * 24 * time.Hour)
	if !reset.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want restarted window %v", reset.ExpiresAt, want)
	}

	// The old token no longer resolves.
	if _, err := f.mgr.MarkOpened(ctx, oldToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old token error = %v, want ErrNotFound", err)
	}
}

func TestResendDispatchFailureKeepsReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	oldToken := inv.Token

	f.dispatcher.err = errors.New("smtp down")
	if err := f.mgr.Resend(ctx, inv.ID); !errors.Is(err, ErrDispatch) {
		t.Fatalf("Resend error = %v, want ErrDispatch", err)
	}

	// The reset committed: new token, pending, unsent.
	got, err := f.stores.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if got.Token == oldToken {
		t.Error("resend must rotate the token even when dispatch fails")
	}
	if got.IsSent || got.Status != store.InvitationStatusPending {
		t.Errorf("invitation = sent=%v status=%q, want unsent pending", got.IsSent, got.Status)
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := &store.Guest{Name: "Ben"}
	if err := f.stores.CreateGuest(ctx, fresh); err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}

	stale, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Second invitation created later stays inside its window.
	f.now = f.now.Add(20 * 24 * time.Hour)
	if _, err := f.mgr.Create(ctx, fresh.ID, f.event.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	f.now = f.now.Add(15 * 24 * time.Hour)
	count, err := f.mgr.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("swept %d invitations, want 1", count)
	}

	got, err := f.stores.GetInvitation(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if got.Status != store.InvitationStatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}

	// A second sweep finds nothing new.
	count, err = f.mgr.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep changed %d rows, want 0", count)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.mgr.Send(ctx, inv.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	stats, err := f.mgr.Stats(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Sent != 1 || stats.Opened != 0 {
		t.Errorf("stats = %+v, want total=1 sent=1 opened=0", stats)
	}

	// The open invalidates the cached aggregate.
	if _, err := f.mgr.MarkOpened(ctx, inv.Token); err != nil {
		t.Fatalf("MarkOpened failed: %v", err)
	}
	stats, err = f.mgr.Stats(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Opened != 1 || stats.ByStatus[store.InvitationStatusViewed] != 1 {
		t.Errorf("stats = %+v, want opened=1 viewed=1", stats)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.mgr.Create(ctx, f.guest.ID, f.event.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Prime the cached aggregate so the delete has something to invalidate.
	stats, err := f.mgr.Stats(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("stats total = %d, want 1", stats.Total)
	}

	if err := f.mgr.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.mgr.Get(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := f.stores.GetInvitationByToken(ctx, inv.Token); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("token lookup after delete = %v, want ErrNotFound", err)
	}

	stats, err = f.mgr.Stats(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("stats total = %d, want 0 after delete", stats.Total)
	}

	if err := f.mgr.Delete(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}
