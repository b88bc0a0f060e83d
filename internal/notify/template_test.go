package notify

import (
	"strings"
	"testing"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

func TestRender(t *testing.T) {
	guest := &store.Guest{Name: "Ada", PlusOneAllowed: true}
	event := &store.Event{
		Name:           "Launch",
		Date:           "2026-06-15",
		Time:           "18:00",
		Venue:          "Hall A",
		Address:        "1 Main St",
		InvitationText: "Join us!",
		ContactInfo:    "events@example.com",
	}

	tmpl := "{guest_name} | {event_name} | {event_date} {event_time} | {venue}, {address} | {invitation_text} | {invitation_url} | {contact_info} |{plus_one_note}"
	got := Render(tmpl, guest, event, "https://inv.example.com/invite/abc")

	want := "Ada | Launch | 2026-06-15 18:00 | Hall A, 1 Main St | Join us! | https://inv.example.com/invite/abc | events@example.com | You are welcome to bring a plus-one."
	if got != want {
		t.Errorf("Render:\n got %q\nwant %q", got, want)
	}
}

func TestRenderNoPlusOne(t *testing.T) {
	guest := &store.Guest{Name: "Ben"}
	event := &store.Event{Name: "Launch"}

	got := Render("Hi {guest_name}.{plus_one_note}", guest, event, "")
	if got != "Hi Ben." {
		t.Errorf("got %q", got)
	}
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	got := Render("{guest_name} {unknown_thing}", &store.Guest{Name: "Ada"}, &store.Event{}, "")
	if !strings.Contains(got, "{unknown_thing}") {
		t.Errorf("unknown placeholder rewritten: %q", got)
	}
}

func TestInvitationURL(t *testing.T) {
	tests := []struct {
		origin string
		token  string
		want   string
	}{
		{"https://inv.example.com", "abc", "https://inv.example.com/invite/abc"},
		{"https://inv.example.com/", "abc", "https://inv.example.com/invite/abc"},
	}
	for _, tt := range tests {
		if got := InvitationURL(tt.origin, tt.token); got != tt.want {
			t.Errorf("InvitationURL(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
