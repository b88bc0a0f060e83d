// Package events provides event and guest management. Deleting an event or a
// guest cascades to its invitations and RSVPs here, since the storage layer
// carries no foreign-key constraints.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/store"
	"github.com/eventinvite/eventinvite-go/internal/validate"
)

// Manager handles event and guest CRUD.
type Manager struct {
	stores store.Stores
	cache  cache.Cache
	logger *slog.Logger
}

// New creates an event/guest manager. cache may be nil.
func New(stores store.Stores, c cache.Cache, logger *slog.Logger) *Manager {
	return &Manager{
		stores: stores,
		cache:  c,
		logger: logutil.NoopIfNil(logger),
	}
}

// validateEvent checks required event fields.
func validateEvent(event *store.Event) error {
	var v validate.Result
	v.Require(event.Name != "", "name", "is required")
	v.Require(event.Date != "", "date", "is required")
	if event.Date != "" {
		v.Require(validDate(event.Date), "date", "must be YYYY-MM-DD")
	}
	if event.Time != "" {
		v.Require(validTime(event.Time), "time", "must be HH:MM")
	}
	return v.Err()
}

// CreateEvent stores a new event.
func (m *Manager) CreateEvent(ctx context.Context, event *store.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if err := m.stores.CreateEvent(ctx, event); err != nil {
		return err
	}
	m.logger.Info("event created", "event_id", event.ID, "name", event.Name)
	return nil
}

// GetEvent returns an event by id.
func (m *Manager) GetEvent(ctx context.Context, id uint) (*store.Event, error) {
	return m.stores.GetEvent(ctx, id)
}

// UpdateEvent overwrites an existing event.
func (m *Manager) UpdateEvent(ctx context.Context, event *store.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if _, err := m.stores.GetEvent(ctx, event.ID); err != nil {
		return err
	}
	if err := m.stores.UpdateEvent(ctx, event); err != nil {
		return err
	}
	m.invalidateStats(ctx, event.ID)
	m.logger.Info("event updated", "event_id", event.ID)
	return nil
}

// DeleteEvent removes an event and cascades its invitations and RSVPs.
func (m *Manager) DeleteEvent(ctx context.Context, id uint) error {
	if err := m.stores.DeleteEvent(ctx, id); err != nil {
		return err
	}
	if err := m.stores.DeleteInvitationsByEvent(ctx, id); err != nil {
		return fmt.Errorf("cascade invitations for event %d: %w", id, err)
	}
	if err := m.stores.DeleteRSVPsByEvent(ctx, id); err != nil {
		return fmt.Errorf("cascade rsvps for event %d: %w", id, err)
	}
	m.invalidateStats(ctx, id)
	m.logger.Info("event deleted", "event_id", id)
	return nil
}

// ListEvents returns all events ordered by date.
func (m *Manager) ListEvents(ctx context.Context) ([]*store.Event, error) {
	return m.stores.ListEvents(ctx)
}

// validateGuest checks required guest fields.
func validateGuest(guest *store.Guest) error {
	var v validate.Result
	v.Require(guest.Name != "", "name", "is required")
	if guest.Email != "" {
		v.Require(validEmail(guest.Email), "email", "is not a valid address")
	}
	return v.Err()
}

// CreateGuest stores a new guest.
func (m *Manager) CreateGuest(ctx context.Context, guest *store.Guest) error {
	if err := validateGuest(guest); err != nil {
		return err
	}
	if err := m.stores.CreateGuest(ctx, guest); err != nil {
		return err
	}
	m.logger.Info("guest created", "guest_id", guest.ID)
	return nil
}

// GetGuest returns a guest by id.
func (m *Manager) GetGuest(ctx context.Context, id uint) (*store.Guest, error) {
	return m.stores.GetGuest(ctx, id)
}

// UpdateGuest overwrites an existing guest.
func (m *Manager) UpdateGuest(ctx context.Context, guest *store.Guest) error {
	if err := validateGuest(guest); err != nil {
		return err
	}
	if _, err := m.stores.GetGuest(ctx, guest.ID); err != nil {
		return err
	}
	if err := m.stores.UpdateGuest(ctx, guest); err != nil {
		return err
	}
	m.logger.Info("guest updated", "guest_id", guest.ID)
	return nil
}

// DeleteGuest removes a guest and cascades their invitations and RSVPs.
func (m *Manager) DeleteGuest(ctx context.Context, id uint) error {
	invs, err := m.stores.ListInvitationsByGuest(ctx, id)
	if err != nil {
		return err
	}

	if err := m.stores.DeleteGuest(ctx, id); err != nil {
		return err
	}
	if err := m.stores.DeleteInvitationsByGuest(ctx, id); err != nil {
		return fmt.Errorf("cascade invitations for guest %d: %w", id, err)
	}
	if err := m.stores.DeleteRSVPsByGuest(ctx, id); err != nil {
		return fmt.Errorf("cascade rsvps for guest %d: %w", id, err)
	}

	for _, inv := range invs {
		m.invalidateStats(ctx, inv.EventID)
	}
	m.logger.Info("guest deleted", "guest_id", id)
	return nil
}

// ListGuests returns guests matching the filter.
func (m *Manager) ListGuests(ctx context.Context, filter store.GuestFilter) ([]*store.Guest, error) {
	return m.stores.ListGuests(ctx, filter)
}

func (m *Manager) invalidateStats(ctx context.Context, eventID uint) {
	if m.cache == nil {
		return
	}
	prefix := fmt.Sprintf("stats:event:%d:", eventID)
	if err := m.cache.DeletePrefix(ctx, prefix); err != nil {
		m.logger.Warn("failed to invalidate stats cache", "event_id", eventID, "error", err)
	}
}
