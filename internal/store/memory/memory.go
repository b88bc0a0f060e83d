// Package memory implements an in-memory persistence driver.
//
// It backs dev mode and tests. Uniqueness rules match the sqlite driver:
// one invitation and one RSVP per (guest_id, event_id) pair, globally unique
// invitation tokens.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// pairKey builds the composite key for the per-pair indexes.
func pairKey(guestID, eventID uint) string {
	return fmt.Sprintf("%d\x00%d", guestID, eventID)
}

// Driver implements store.Stores with mutex-guarded maps.
type Driver struct {
	mu sync.RWMutex

	events      map[uint]*store.Event
	guests      map[uint]*store.Guest
	invitations map[uint]*store.Invitation
	rsvps       map[uint]*store.RSVP

	invByToken map[string]uint // token -> invitation id
	invByPair  map[string]uint // guest+event -> invitation id
	rsvpByPair map[string]uint // guest+event -> rsvp id

	nextEventID uint
	nextGuestID uint
	nextInvID   uint
	nextRSVPID  uint
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Stores, error) {
	return &Driver{
		events:      make(map[uint]*store.Event),
		guests:      make(map[uint]*store.Guest),
		invitations: make(map[uint]*store.Invitation),
		rsvps:       make(map[uint]*store.RSVP),
		invByToken:  make(map[string]uint),
		invByPair:   make(map[string]uint),
		rsvpByPair:  make(map[string]uint),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the in-memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error { return nil }

// EventStore implementation

func (d *Driver) CreateEvent(ctx context.Context, event *store.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextEventID++
	event.ID = d.nextEventID
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	cp := *event
	d.events[event.ID] = &cp
	return nil
}

func (d *Driver) GetEvent(ctx context.Context, id uint) (*store.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	event, ok := d.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *event
	return &cp, nil
}

func (d *Driver) UpdateEvent(ctx context.Context, event *store.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.events[event.ID]; !ok {
		return store.ErrNotFound
	}
	event.UpdatedAt = time.Now()
	cp := *event
	d.events[event.ID] = &cp
	return nil
}

func (d *Driver) DeleteEvent(ctx context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.events, id)
	return nil
}

func (d *Driver) ListEvents(ctx context.Context) ([]*store.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*store.Event, 0, len(d.events))
	for _, event := range d.events {
		cp := *event
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GuestStore implementation

func (d *Driver) CreateGuest(ctx context.Context, guest *store.Guest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextGuestID++
	guest.ID = d.nextGuestID
	now := time.Now()
	guest.CreatedAt = now
	guest.UpdatedAt = now

	cp := *guest
	d.guests[guest.ID] = &cp
	return nil
}

func (d *Driver) GetGuest(ctx context.Context, id uint) (*store.Guest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	guest, ok := d.guests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *guest
	return &cp, nil
}

func (d *Driver) UpdateGuest(ctx context.Context, guest *store.Guest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.guests[guest.ID]; !ok {
		return store.ErrNotFound
	}
	guest.UpdatedAt = time.Now()
	cp := *guest
	d.guests[guest.ID] = &cp
	return nil
}

func (d *Driver) DeleteGuest(ctx context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.guests[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.guests, id)
	return nil
}

func (d *Driver) ListGuests(ctx context.Context, filter store.GuestFilter) ([]*store.Guest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*store.Guest, 0, len(d.guests))
	for _, guest := range d.guests {
		if filter.Category != "" && guest.Category != filter.Category {
			continue
		}
		cp := *guest
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InvitationStore implementation

func (d *Driver) CreateInvitation(ctx context.Context, inv *store.Invitation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := pairKey(inv.GuestID, inv.EventID)
	if _, ok := d.invByPair[key]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := d.invByToken[inv.Token]; ok {
		return store.ErrAlreadyExists
	}

	d.nextInvID++
	inv.ID = d.nextInvID
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	cp := *inv
	d.invitations[inv.ID] = &cp
	d.invByPair[key] = inv.ID
	d.invByToken[inv.Token] = inv.ID
	return nil
}

func (d *Driver) GetInvitation(ctx context.Context, id uint) (*store.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	inv, ok := d.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (d *Driver) GetInvitationByToken(ctx context.Context, token string) (*store.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.invByToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d.invitations[id]
	return &cp, nil
}

func (d *Driver) GetInvitationByPair(ctx context.Context, guestID, eventID uint) (*store.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.invByPair[pairKey(guestID, eventID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d.invitations[id]
	return &cp, nil
}

func (d *Driver) UpdateInvitation(ctx context.Context, inv *store.Invitation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.invitations[inv.ID]
	if !ok {
		return store.ErrNotFound
	}

	// Token may change on reset; keep the index consistent.
	if current.Token != inv.Token {
		if _, taken := d.invByToken[inv.Token]; taken {
			return store.ErrAlreadyExists
		}
		delete(d.invByToken, current.Token)
		d.invByToken[inv.Token] = inv.ID
	}

	inv.UpdatedAt = time.Now()
	cp := *inv
	d.invitations[inv.ID] = &cp
	return nil
}

func (d *Driver) DeleteInvitation(ctx context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	inv, ok := d.invitations[id]
	if !ok {
		return store.ErrNotFound
	}
	d.removeInvitationLocked(inv)
	return nil
}

func (d *Driver) removeInvitationLocked(inv *store.Invitation) {
	delete(d.invByToken, inv.Token)
	delete(d.invByPair, pairKey(inv.GuestID, inv.EventID))
	delete(d.invitations, inv.ID)
}

func (d *Driver) DeleteInvitationsByEvent(ctx context.Context, eventID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, inv := range d.invitations {
		if inv.EventID == eventID {
			d.removeInvitationLocked(inv)
		}
	}
	return nil
}

func (d *Driver) DeleteInvitationsByGuest(ctx context.Context, guestID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, inv := range d.invitations {
		if inv.GuestID == guestID {
			d.removeInvitationLocked(inv)
		}
	}
	return nil
}

func (d *Driver) ListInvitationsByEvent(ctx context.Context, eventID uint) ([]*store.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Invitation
	for _, inv := range d.invitations {
		if inv.EventID == eventID {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Driver) ListInvitationsByGuest(ctx context.Context, guestID uint) ([]*store.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Invitation
	for _, inv := range d.invitations {
		if inv.GuestID == guestID {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Driver) TokenExists(ctx context.Context, token string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.invByToken[token]
	return ok, nil
}

func (d *Driver) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var count int64
	for _, inv := range d.invitations {
		if inv.Status == store.InvitationStatusExpired {
			continue
		}
		if !inv.ExpiresAt.IsZero() && inv.ExpiresAt.Before(now) {
			inv.Status = store.InvitationStatusExpired
			inv.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (d *Driver) InvitationStats(ctx context.Context, eventID uint) (*store.InvitationStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := &store.InvitationStats{
		ByStatus: make(map[store.InvitationStatus]int64),
	}
	for _, inv := range d.invitations {
		if inv.EventID != eventID {
			continue
		}
		stats.Total++
		stats.ByStatus[inv.Status]++
		if inv.IsSent {
			stats.Sent++
		}
		if inv.IsOpened {
			stats.Opened++
		}
	}
	return stats, nil
}

// RSVPStore implementation

func (d *Driver) CreateRSVP(ctx context.Context, r *store.RSVP) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := pairKey(r.GuestID, r.EventID)
	if _, ok := d.rsvpByPair[key]; ok {
		return store.ErrAlreadyExists
	}

	d.nextRSVPID++
	r.ID = d.nextRSVPID
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	cp := *r
	d.rsvps[r.ID] = &cp
	d.rsvpByPair[key] = r.ID
	return nil
}

func (d *Driver) GetRSVP(ctx context.Context, id uint) (*store.RSVP, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rsvps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (d *Driver) GetRSVPByPair(ctx context.Context, guestID, eventID uint) (*store.RSVP, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.rsvpByPair[pairKey(guestID, eventID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d.rsvps[id]
	return &cp, nil
}

func (d *Driver) UpdateRSVP(ctx context.Context, r *store.RSVP) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rsvps[r.ID]; !ok {
		return store.ErrNotFound
	}
	r.UpdatedAt = time.Now()
	cp := *r
	d.rsvps[r.ID] = &cp
	return nil
}

func (d *Driver) DeleteRSVPsByEvent(ctx context.Context, eventID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, r := range d.rsvps {
		if r.EventID == eventID {
			delete(d.rsvpByPair, pairKey(r.GuestID, r.EventID))
			delete(d.rsvps, id)
		}
	}
	return nil
}

func (d *Driver) DeleteRSVPsByGuest(ctx context.Context, guestID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, r := range d.rsvps {
		if r.GuestID == guestID {
			delete(d.rsvpByPair, pairKey(r.GuestID, r.EventID))
			delete(d.rsvps, id)
		}
	}
	return nil
}

func (d *Driver) ListRSVPsByEvent(ctx context.Context, eventID uint) ([]*store.RSVP, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.RSVP
	for _, r := range d.rsvps {
		if r.EventID == eventID {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *Driver) RSVPStats(ctx context.Context, eventID uint) (map[store.RSVPStatus]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[store.RSVPStatus]int64)
	for _, r := range d.rsvps {
		if r.EventID == eventID {
			stats[r.Status]++
		}
	}
	return stats, nil
}

// Compile-time interface check
var _ store.Stores = (*Driver)(nil)
