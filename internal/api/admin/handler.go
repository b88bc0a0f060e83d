// Package admin implements the authenticated management API: event and guest
// CRUD, invitation lifecycle actions and per-event statistics.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eventinvite/eventinvite-go/internal/api"
	"github.com/eventinvite/eventinvite-go/internal/events"
	"github.com/eventinvite/eventinvite-go/internal/invitations"
	"github.com/eventinvite/eventinvite-go/internal/platform/appctx"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/rsvp"
	"github.com/eventinvite/eventinvite-go/internal/store"
)

// Handler serves the admin API.
type Handler struct {
	events      *events.Manager
	invitations *invitations.Manager
	rsvps       *rsvp.Manager
	logger      *slog.Logger
}

// NewHandler creates the admin handler.
func NewHandler(ev *events.Manager, inv *invitations.Manager, rs *rsvp.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		events:      ev,
		invitations: inv,
		rsvps:       rs,
		logger:      logutil.NoopIfNil(logger),
	}
}

// Routes mounts the admin API on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.listEvents)
		r.Post("/", h.createEvent)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getEvent)
			r.Put("/", h.updateEvent)
			r.Delete("/", h.deleteEvent)
			r.Get("/invitations", h.listEventInvitations)
			r.Post("/invitations", h.bulkCreateInvitations)
			r.Get("/rsvps", h.listEventRSVPs)
			r.Get("/stats", h.eventStats)
		})
	})

	r.Route("/guests", func(r chi.Router) {
		r.Get("/", h.listGuests)
		r.Post("/", h.createGuest)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getGuest)
			r.Put("/", h.updateGuest)
			r.Delete("/", h.deleteGuest)
			r.Get("/invitations", h.listGuestInvitations)
		})
	})

	r.Route("/invitations", func(r chi.Router) {
		r.Post("/", h.createInvitation)
		r.Post("/sweep", h.sweepInvitations)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getInvitation)
			r.Delete("/", h.deleteInvitation)
			r.Post("/send", h.sendInvitation)
			r.Post("/resend", h.resendInvitation)
			r.Post("/reset", h.resetInvitation)
		})
	})
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ReasonInvalidJSON, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.ListEvents(r.Context())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var event store.Event
	if !decodeBody(w, r, &event) {
		return
	}
	event.ID = 0
	if err := h.events.CreateEvent(r.Context(), &event); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	event, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	var event store.Event
	if !decodeBody(w, r, &event) {
		return
	}
	event.ID = id
	if err := h.events.UpdateEvent(r.Context(), &event); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if err := h.events.DeleteEvent(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGuests(w http.ResponseWriter, r *http.Request) {
	filter := store.GuestFilter{Category: r.URL.Query().Get("category")}
	list, err := h.events.ListGuests(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) createGuest(w http.ResponseWriter, r *http.Request) {
	var guest store.Guest
	if !decodeBody(w, r, &guest) {
		return
	}
	guest.ID = 0
	if err := h.events.CreateGuest(r.Context(), &guest); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, guest)
}

func (h *Handler) getGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	guest, err := h.events.GetGuest(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, guest)
}

func (h *Handler) updateGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	var guest store.Guest
	if !decodeBody(w, r, &guest) {
		return
	}
	guest.ID = id
	if err := h.events.UpdateGuest(r.Context(), &guest); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, guest)
}

func (h *Handler) deleteGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if err := h.events.DeleteGuest(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGuestInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	list, err := h.invitations.ListByGuest(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

// createInvitationRequest is the single-create body.
type createInvitationRequest struct {
	GuestID uint `json:"guest_id"`
	EventID uint `json:"event_id"`
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inv, err := h.invitations.Create(r.Context(), req.GuestID, req.EventID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, inv)
}

// bulkCreateRequest is the bulk-create body. An empty guest_ids list with
// all_guests set targets every stored guest.
type bulkCreateRequest struct {
	GuestIDs  []uint `json:"guest_ids"`
	AllGuests bool   `json:"all_guests"`
	Category  string `json:"category"`
}

func (h *Handler) bulkCreateInvitations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	var req bulkCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	guestIDs := req.GuestIDs
	if req.AllGuests {
		guests, err := h.events.ListGuests(r.Context(), store.GuestFilter{Category: req.Category})
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
		guestIDs = make([]uint, 0, len(guests))
		for _, g := range guests {
			guestIDs = append(guestIDs, g.ID)
		}
	}

	result, err := h.invitations.CreateBulk(r.Context(), eventID, guestIDs)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) getInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	inv, err := h.invitations.Get(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) listEventInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	list, err := h.invitations.ListByEvent(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) deleteInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if err := h.invitations.Delete(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if err := h.invitations.Send(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) resendInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if err := h.invitations.Resend(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) resetInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	inv, err := h.invitations.Reset(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) sweepInvitations(w http.ResponseWriter, r *http.Request) {
	count, err := h.invitations.SweepExpired(r.Context())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	appctx.GetLogger(r.Context()).Info("manual expiry sweep", "expired", count)
	api.WriteJSON(w, http.StatusOK, map[string]int64{"expired": count})
}

func (h *Handler) listEventRSVPs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	list, err := h.rsvps.ListByEvent(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

// eventStatsResponse combines invitation and RSVP aggregates for one event.
type eventStatsResponse struct {
	Invitations *store.InvitationStats     `json:"invitations"`
	RSVPs       map[store.RSVPStatus]int64 `json:"rsvps"`
}

func (h *Handler) eventStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.ReasonValidation, "id must be a positive integer")
		return
	}
	if _, err := h.events.GetEvent(r.Context(), id); err != nil {
		api.WriteDomainError(w, err)
		return
	}

	invStats, err := h.invitations.Stats(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	rsvpStats, err := h.rsvps.Stats(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, eventStatsResponse{Invitations: invStats, RSVPs: rsvpStats})
}
