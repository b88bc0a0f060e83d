// Package rsvp implements RSVP collection with upsert semantics: one row per
// guest/event pair, updated in place on repeat submissions.
package rsvp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/store"
	"github.com/eventinvite/eventinvite-go/internal/validate"
)

// Submission carries the fields of one RSVP form post.
type Submission struct {
	Status           store.RSVPStatus `json:"status"`
	PlusOneAttending bool             `json:"plus_one_attending"`
	PlusOneName      string           `json:"plus_one_name"`
	Dietary          string           `json:"dietary"`
}

// TokenResolver resolves a token to a usable invitation.
// Satisfied by the invitations manager.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*store.Invitation, error)
}

// Manager handles RSVP persistence.
type Manager struct {
	stores   store.Stores
	resolver TokenResolver
	cache    cache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an RSVP manager. resolver may be nil when token-based
// submission is not used; cache may be nil to disable stats caching.
func New(stores store.Stores, resolver TokenResolver, c cache.Cache, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		stores:   stores,
		resolver: resolver,
		cache:    c,
		logger:   logutil.NoopIfNil(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save upserts the RSVP for a guest/event pair. An existing row is updated in
// place, preserving its id; response_date is stamped on every write. This is
// the only write path for RSVPs.
func (m *Manager) Save(ctx context.Context, guestID, eventID uint, sub Submission) (*store.RSVP, error) {
	var v validate.Result
	v.Require(guestID > 0, "guest_id", "must be a positive integer")
	v.Require(eventID > 0, "event_id", "must be a positive integer")
	v.Require(sub.Status == store.RSVPStatusAccepted || sub.Status == store.RSVPStatusDeclined,
		"status", "must be accepted or declined")
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := m.stores.GetGuest(ctx, guestID); err != nil {
		return nil, fmt.Errorf("guest %d: %w", guestID, err)
	}
	if _, err := m.stores.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %d: %w", eventID, err)
	}

	existing, err := m.stores.GetRSVPByPair(ctx, guestID, eventID)
	switch {
	case err == nil:
		return m.update(ctx, existing, sub)

	case errors.Is(err, store.ErrNotFound):
		r := &store.RSVP{
			GuestID:          guestID,
			EventID:          eventID,
			Status:           sub.Status,
			PlusOneAttending: sub.PlusOneAttending,
			PlusOneName:      sub.PlusOneName,
			Dietary:          sub.Dietary,
			ResponseDate:     m.now(),
		}
		if createErr := m.stores.CreateRSVP(ctx, r); createErr != nil {
			// A concurrent submission won the insert; the unique index on the
			// pair signals it and we fall back to the update path.
			if errors.Is(createErr, store.ErrAlreadyExists) {
				existing, getErr := m.stores.GetRSVPByPair(ctx, guestID, eventID)
				if getErr != nil {
					return nil, getErr
				}
				return m.update(ctx, existing, sub)
			}
			return nil, createErr
		}
		m.invalidateStats(ctx, eventID)
		m.logger.Info("rsvp recorded", "rsvp_id", r.ID, "event_id", eventID, "status", r.Status)
		return r, nil

	default:
		return nil, err
	}
}

func (m *Manager) update(ctx context.Context, r *store.RSVP, sub Submission) (*store.RSVP, error) {
	r.Status = sub.Status
	r.PlusOneAttending = sub.PlusOneAttending
	r.PlusOneName = sub.PlusOneName
	r.Dietary = sub.Dietary
	r.ResponseDate = m.now()

	if err := m.stores.UpdateRSVP(ctx, r); err != nil {
		return nil, err
	}
	m.invalidateStats(ctx, r.EventID)
	m.logger.Info("rsvp updated", "rsvp_id", r.ID, "event_id", r.EventID, "status", r.Status)
	return r, nil
}

// SubmitByToken resolves an invitation token and saves the RSVP for its
// guest/event pair. The invitation must be within its validity window.
func (m *Manager) SubmitByToken(ctx context.Context, token string, sub Submission) (*store.RSVP, error) {
	inv, err := m.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.Save(ctx, inv.GuestID, inv.EventID, sub)
}

// GetByPair returns the RSVP for a guest/event pair.
func (m *Manager) GetByPair(ctx context.Context, guestID, eventID uint) (*store.RSVP, error) {
	return m.stores.GetRSVPByPair(ctx, guestID, eventID)
}

// ListByEvent returns an event's RSVPs.
func (m *Manager) ListByEvent(ctx context.Context, eventID uint) ([]*store.RSVP, error) {
	return m.stores.ListRSVPsByEvent(ctx, eventID)
}

// statsKey mirrors the invitation stats key layout so one prefix invalidates
// both.
func statsKey(eventID uint) string {
	return fmt.Sprintf("stats:event:%d:rsvps", eventID)
}

// Stats returns per-status RSVP counts for an event, cached until the next
// mutation touching the event.
func (m *Manager) Stats(ctx context.Context, eventID uint) (map[store.RSVPStatus]int64, error) {
	if m.cache != nil {
		if data, err := m.cache.Get(ctx, statsKey(eventID)); err == nil {
			var stats map[store.RSVPStatus]int64
			if err := json.Unmarshal(data, &stats); err == nil {
				return stats, nil
			}
		}
	}

	stats, err := m.stores.RSVPStats(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := m.cache.Set(ctx, statsKey(eventID), data, cache.TTLStats); err != nil {
				m.logger.Warn("failed to cache stats", "event_id", eventID, "error", err)
			}
		}
	}
	return stats, nil
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
