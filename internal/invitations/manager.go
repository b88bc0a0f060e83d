// Package invitations implements the invitation lifecycle: creation with
// collision-checked tokens, idempotent send and open transitions, resets and
// the periodic expiry sweep.
package invitations

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

var (
	// ErrDuplicate is returned by Create when the guest already has an
	// invitation for the event.
	ErrDuplicate = errors.New("invitation already exists for this guest and event")

	// ErrExpired is returned when a token resolves but the invitation or its
	// event is past the validity window.
	ErrExpired = errors.New("invitation expired")

	// ErrDispatch wraps mail transport failures. Never retried here.
	ErrDispatch = errors.New("notification dispatch failed")
)

// Dispatcher delivers the invitation notification for a guest/event pair.
type Dispatcher interface {
	Send(ctx context.Context, inv *store.Invitation, guest *store.Guest, event *store.Event) error
}

// Manager orchestrates the invitation lifecycle.
type Manager struct {
	stores     store.Stores
	tokens     *TokenGenerator
	dispatcher Dispatcher
	cache      cache.Cache
	logger     *slog.Logger
	expiry     time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a lifecycle manager. expiryDays is added to the creation time
// of every invitation; cache may be nil to disable stats caching.
func New(stores store.Stores, dispatcher Dispatcher, c cache.Cache, expiryDays int, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		stores:     stores,
		tokens:     NewTokenGenerator(stores),
		dispatcher: dispatcher,
		cache:      c,
		logger:     logutil.NoopIfNil(logger),
		expiry:     time.Duration(expiryDays) * 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a pending invitation for the guest/event pair.
// Returns ErrDuplicate when one already exists. Guest and event must exist.
func (m *Manager) Create(ctx context.Context, guestID, eventID uint) (*store.Invitation, error) {
	var v validate.Result
	v.Require(guestID > 0, "guest_id", "must be a positive integer")
	v.Require(eventID > 0, "event_id", "must be a positive integer")
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := m.stores.GetGuest(ctx, guestID); err != nil {
		return nil, fmt.Errorf("guest %d: %w", guestID, err)
	}
	if _, err := m.stores.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %d: %w", eventID, err)
	}

	// Pre-check is an optimization; the unique index catches races below.
	if _, err := m.stores.GetInvitationByPair(ctx, guestID, eventID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	token, err := m.tokens.Generate(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	inv := &store.Invitation{
		GuestID:   guestID,
		EventID:   eventID,
		Token:     token,
		Status:    store.InvitationStatusPending,
		ExpiresAt: now.Add(m.expiry),
	}

	if err := m.stores.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	m.invalidateStats(ctx, eventID)
	m.logger.Info("invitation created", "invitation_id", inv.ID, "guest_id", guestID, "event_id", eventID)
	return inv, nil
}

// BulkResult summarizes a CreateBulk run.
type BulkResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// CreateBulk creates invitations for every guest id, best-effort.
// A guest who already has an invitation counts toward Created; any other
// failure is recorded and the batch continues.
func (m *Manager) CreateBulk(ctx context.Context, eventID uint, guestIDs []uint) (*BulkResult, error) {
	if _, err := m.stores.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %d: %w", eventID, err)
	}

	result := &BulkResult{Errors: []string{}}
	for _, guestID := range guestIDs {
		_, err := m.Create(ctx, guestID, eventID)
		switch {
		case err == nil, errors.Is(err, ErrDuplicate):
			result.Created++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("guest %d: %v", guestID, err))
		}
	}
	return result, nil
}

// Send dispatches the notification for an invitation and marks it sent.
// Idempotent: an already-sent invitation returns success without a second
// dispatch. The dispatch happens before the state change, so a transport
// failure leaves the invitation unsent.
func (m *Manager) Send(ctx context.Context, id uint) error {
	inv, err := m.stores.GetInvitation(ctx, id)
	if err != nil {
		return err
	}

	if inv.IsSent {
		m.logger.Debug("invitation already sent", "invitation_id", id)
		return nil
	}

	guest, err := m.stores.GetGuest(ctx, inv.GuestID)
	if err != nil {
		return fmt.Errorf("guest %d: %w", inv.GuestID, err)
	}
	if guest.Email == "" {
		var v validate.Result
		v.Fail("email", "guest has no email address")
		return v.Err()
	}
	event, err := m.stores.GetEvent(ctx, inv.EventID)
	if err != nil {
		return fmt.Errorf("event %d: %w", inv.EventID, err)
	}

	if err := m.dispatcher.Send(ctx, inv, guest, event); err != nil {
		m.logger.Error("notification dispatch failed", "invitation_id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	now := m.now()
	inv.IsSent = true
	inv.SentAt = &now
	if inv.Status == store.InvitationStatusPending {
		inv.Status = store.InvitationStatusSent
	}
	if err := m.stores.UpdateInvitation(ctx, inv); err != nil {
		return err
	}

	m.invalidateStats(ctx, inv.EventID)
	m.logger.Info("invitation sent", "invitation_id", id, "event_id", inv.EventID)
	return nil
}

// Reset regenerates the token and returns the invitation to its initial
// pending state, from any current state. The expiry window restarts so a
// reissued link is usable for the full configured period.
func (m *Manager) Reset(ctx context.Context, id uint) (*store.Invitation, error) {
	inv, err := m.stores.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}

	token, err := m.tokens.Generate(ctx)
	if err != nil {
		return nil, err
	}

	inv.Token = token
	inv.Status = store.InvitationStatusPending
	inv.IsSent = false
	inv.IsOpened = false
	inv.SentAt = nil
	inv.OpenedAt = nil
	inv.ExpiresAt = m.now().Add(m.expiry)

	if err := m.stores.UpdateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	m.invalidateStats(ctx, inv.EventID)
	m.logger.Info("invitation reset", "invitation_id", id)
	return inv, nil
}

// Resend composes Reset then Send. The reset commits independently: if the
// send fails the invitation keeps its fresh token in pending state and the
// caller may retry Send.
func (m *Manager) Resend(ctx context.Context, id uint) error {
	if _, err := m.Reset(ctx, id); err != nil {
		return err
	}
	return m.Send(ctx, id)
}

// MarkOpened records that the invitation behind the token was viewed.
// Idempotent: opened_at is set once. Returns ErrExpired when the invitation
// or its event is past the validity window.
func (m *Manager) MarkOpened(ctx context.Context, token string) (*store.Invitation, error) {
	var v validate.Result
	v.Require(validate.ValidToken(token), "token", "must be 64 hex characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	inv, err := m.stores.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := m.checkUsable(ctx, inv); err != nil {
		return nil, err
	}

	if inv.IsOpened {
		return inv, nil
	}

	now := m.now()
	inv.IsOpened = true
	inv.OpenedAt = &now
	inv.Status = store.InvitationStatusViewed
	if err := m.stores.UpdateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	m.invalidateStats(ctx, inv.EventID)
	m.logger.Info("invitation opened", "invitation_id", inv.ID, "event_id", inv.EventID)
	return inv, nil
}

// Resolve returns the usable invitation behind a token without changing its
// state. Used by the RSVP path and the QR endpoint.
func (m *Manager) Resolve(ctx context.Context, token string) (*store.Invitation, error) {
	var v validate.Result
	v.Require(validate.ValidToken(token), "token", "must be 64 hex characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	inv, err := m.stores.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.checkUsable(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// checkUsable enforces the validity window: not expired by status or
// expires_at, and the event date has not passed.
func (m *Manager) checkUsable(ctx context.Context, inv *store.Invitation) error {
	now := m.now()
	if inv.Expired(now) {
		return ErrExpired
	}
	event, err := m.stores.GetEvent(ctx, inv.EventID)
	if err != nil {
		return fmt.Errorf("event %d: %w", inv.EventID, err)
	}
	if event.DatePassed(now) {
		return ErrExpired
	}
	return nil
}

// SweepExpired bulk-expires every invitation whose expires_at has passed.
// Returns the number of rows changed.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	count, err := m.stores.ExpireInvitations(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if m.cache != nil {
			if err := m.cache.DeletePrefix(ctx, "stats:event:"); err != nil {
				m.logger.Warn("failed to invalidate stats cache", "error", err)
			}
		}
		m.logger.Info("expired invitations swept", "count", count)
	}
	return count, nil
}

// Delete removes a single invitation and its cached aggregates. The guest's
// RSVP, if any, is kept; a later re-invite picks it back up by pair.
func (m *Manager) Delete(ctx context.Context, id uint) error {
	inv, err := m.stores.GetInvitation(ctx, id)
	if err != nil {
		return err
	}
	if err := m.stores.DeleteInvitation(ctx, id); err != nil {
		return err
	}
	m.invalidateStats(ctx, inv.EventID)
	m.logger.Info("invitation deleted", "invitation_id", id, "event_id", inv.EventID)
	return nil
}

// Get returns an invitation by id.
func (m *Manager) Get(ctx context.Context, id uint) (*store.Invitation, error) {
	return m.stores.GetInvitation(ctx, id)
}

// ListByEvent returns an event's invitations.
func (m *Manager) ListByEvent(ctx context.Context, eventID uint) ([]*store.Invitation, error) {
	return m.stores.ListInvitationsByEvent(ctx, eventID)
}

// ListByGuest returns a guest's invitations.
func (m *Manager) ListByGuest(ctx context.Context, guestID uint) ([]*store.Invitation, error) {
	return m.stores.ListInvitationsByGuest(ctx, guestID)
}

// statsKey is the cache key for one event's invitation aggregates. The
// trailing segment keeps it under the per-event prefix that mutations
// invalidate.
func statsKey(eventID uint) string {
	return fmt.Sprintf("stats:event:%d:invitations", eventID)
}

// Stats returns aggregate invitation counts for an event, cached until the
// next mutation touching the event.
func (m *Manager) Stats(ctx context.Context, eventID uint) (*store.InvitationStats, error) {
	if m.cache != nil {
		if data, err := m.cache.Get(ctx, statsKey(eventID)); err == nil {
			var stats store.InvitationStats
			if err := json.Unmarshal(data, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := m.stores.InvitationStats(ctx, eventID)
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

// invalidateStats drops every cached aggregate for the event.
func (m *Manager) invalidateStats(ctx context.Context, eventID uint) {
	if m.cache == nil {
		return
	}
	prefix := fmt.Sprintf("stats:event:%d:", eventID)
	if err := m.cache.DeletePrefix(ctx, prefix); err != nil {
		m.logger.Warn("failed to invalidate stats cache", "event_id", eventID, "error", err)
	}
}
