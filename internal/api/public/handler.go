// Package public implements the unauthenticated guest-facing surface:
// invitation viewing, QR code delivery and RSVP submission, all keyed by the
// invitation token.
package public

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventinvite/eventinvite-go/internal/api"
	"github.com/eventinvite/eventinvite-go/internal/events"
	"github.com/eventinvite/eventinvite-go/internal/invitations"
	"github.com/eventinvite/eventinvite-go/internal/notify"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/qr"
	"github.com/eventinvite/eventinvite-go/internal/rsvp"
	"github.com/eventinvite/eventinvite-go/internal/store"
)

// Handler serves the public invitation and RSVP endpoints.
type Handler struct {
	events       *events.Manager
	invitations  *invitations.Manager
	rsvps        *rsvp.Manager
	qr           *qr.Generator
	publicOrigin string
	logger       *slog.Logger
}

// NewHandler creates the public handler.
func NewHandler(ev *events.Manager, inv *invitations.Manager, rs *rsvp.Manager, qrGen *qr.Generator, publicOrigin string, logger *slog.Logger) *Handler {
	return &Handler{
		events:       ev,
		invitations:  inv,
		rsvps:        rs,
		qr:           qrGen,
		publicOrigin: publicOrigin,
		logger:       logutil.NoopIfNil(logger),
	}
}

// Routes mounts the public endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/invite/{token}", h.viewInvitation)
	r.Get("/invite/{token}/qr.png", h.invitationQR)
	r.Post("/rsvp/{token}", h.submitRSVP)
}

// invitationView is the guest-facing invitation payload. Internal ids and the
// token itself are not echoed back.
type invitationView struct {
	GuestName      string           `json:"guest_name"`
	PlusOneAllowed bool             `json:"plus_one_allowed"`
	EventName      string           `json:"event_name"`
	EventDate      string           `json:"event_date"`
	EventTime      string           `json:"event_time,omitempty"`
	Venue          string           `json:"venue,omitempty"`
	Address        string           `json:"address,omitempty"`
	InvitationText string           `json:"invitation_text,omitempty"`
	ContactInfo    string           `json:"contact_info,omitempty"`
	RSVP           *rsvpView        `json:"rsvp,omitempty"`
}

type rsvpView struct {
	Status           store.RSVPStatus `json:"status"`
	PlusOneAttending bool             `json:"plus_one_attending"`
	PlusOneName      string           `json:"plus_one_name,omitempty"`
	Dietary          string           `json:"dietary,omitempty"`
}

// viewInvitation marks the invitation opened and returns its guest-facing
// payload, including any RSVP already on file.
func (h *Handler) viewInvitation(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	inv, err := h.invitations.MarkOpened(r.Context(), token)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	view, err := h.buildView(r, inv)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) buildView(r *http.Request, inv *store.Invitation) (*invitationView, error) {
	guest, err := h.events.GetGuest(r.Context(), inv.GuestID)
	if err != nil {
		return nil, err
	}
	event, err := h.events.GetEvent(r.Context(), inv.EventID)
	if err != nil {
		return nil, err
	}

	view := &invitationView{
		GuestName:      guest.Name,
		PlusOneAllowed: guest.PlusOneAllowed,
		EventName:      event.Name,
		EventDate:      event.Date,
		EventTime:      event.Time,
		Venue:          event.Venue,
		Address:        event.Address,
		InvitationText: event.InvitationText,
		ContactInfo:    event.ContactInfo,
	}

	if existing, err := h.rsvps.GetByPair(r.Context(), inv.GuestID, inv.EventID); err == nil {
		view.RSVP = &rsvpView{
			Status:           existing.Status,
			PlusOneAttending: existing.PlusOneAttending,
			PlusOneName:      existing.PlusOneName,
			Dietary:          existing.Dietary,
		}
	}
	return view, nil
}

// invitationQR returns a PNG QR code pointing at the invitation URL. Viewing
// the QR does not count as opening the invitation.
func (h *Handler) invitationQR(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	inv, err := h.invitations.Resolve(r.Context(), token)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	png, err := h.qr.Encode(r.Context(), notify.InvitationURL(h.publicOrigin, inv.Token))
	if err != nil {
		h.logger.Error("qr generation failed", "invitation_id", inv.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ReasonInternalError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// submitRSVP records the RSVP for the invitation behind the token.
func (h *Handler) submitRSVP(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var sub rsvp.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidJSON, "invalid JSON body")
		return
	}

	saved, err := h.rsvps.SubmitByToken(r.Context(), token, sub)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, rsvpView{
		Status:           saved.Status,
		PlusOneAttending: saved.PlusOneAttending,
		PlusOneName:      saved.PlusOneName,
		Dietary:          saved.Dietary,
	})
}
