package notify

import (
	"strings"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

// Render substitutes invitation placeholders into a template by literal
// string replacement. Unknown placeholders are left untouched.
//
// Supported: {guest_name}, {event_name}, {event_date}, {event_time}, {venue},
// {address}, {invitation_text}, {invitation_url}, {contact_info},
// {plus_one_note}.
func Render(tmpl string, guest *store.Guest, event *store.Event, invitationURL string) string {
	plusOneNote := ""
	if guest.PlusOneAllowed {
		plusOneNote = " You are welcome to bring a plus-one."
	}

	r := strings.NewReplacer(
		"{guest_name}", guest.Name,
		"{event_name}", event.Name,
		"{event_date}", event.Date,
		"{event_time}", event.Time,
		"{venue}", event.Venue,
		"{address}", event.Address,
		"{invitation_text}", event.InvitationText,
		"{invitation_url}", invitationURL,
		"{contact_info}", event.ContactInfo,
		"{plus_one_note}", plusOneNote,
	)
	return r.Replace(tmpl)
}

// InvitationURL builds the guest-facing link for a token.
func InvitationURL(publicOrigin, token string) string {
	return strings.TrimRight(publicOrigin, "/") + "/invite/" + token
}
