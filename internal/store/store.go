// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, open files, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// EventStore defines operations for event persistence.
type EventStore interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id uint) (*Event, error)
	UpdateEvent(ctx context.Context, event *Event) error
	DeleteEvent(ctx context.Context, id uint) error
	ListEvents(ctx context.Context) ([]*Event, error)
}

// GuestStore defines operations for guest persistence.
type GuestStore interface {
	CreateGuest(ctx context.Context, guest *Guest) error
	GetGuest(ctx context.Context, id uint) (*Guest, error)
	UpdateGuest(ctx context.Context, guest *Guest) error
	DeleteGuest(ctx context.Context, id uint) error
	ListGuests(ctx context.Context, filter GuestFilter) ([]*Guest, error)
}

// GuestFilter narrows ListGuests results. Zero values mean "no filter".
type GuestFilter struct {
	Category string
}

// InvitationStore defines operations for invitation persistence.
//
// CreateInvitation must return ErrAlreadyExists when an invitation for the
// same (guest_id, event_id) pair exists; the unique index is the correctness
// guarantee, any application-level pre-check is an optimization only.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, id uint) (*Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	GetInvitationByPair(ctx context.Context, guestID, eventID uint) (*Invitation, error)
	UpdateInvitation(ctx context.Context, inv *Invitation) error
	DeleteInvitation(ctx context.Context, id uint) error
	DeleteInvitationsByEvent(ctx context.Context, eventID uint) error
	DeleteInvitationsByGuest(ctx context.Context, guestID uint) error
	ListInvitationsByEvent(ctx context.Context, eventID uint) ([]*Invitation, error)
	ListInvitationsByGuest(ctx context.Context, guestID uint) ([]*Invitation, error)

	// TokenExists reports whether any invitation already holds the token.
	TokenExists(ctx context.Context, token string) (bool, error)

	// ExpireInvitations bulk-updates every invitation whose expires_at is
	// before now and whose status is not already expired. Returns the number
	// of rows changed.
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)

	// InvitationStats returns aggregate counts for an event.
	InvitationStats(ctx context.Context, eventID uint) (*InvitationStats, error)
}

// RSVPStore defines operations for RSVP persistence.
//
// CreateRSVP must return ErrAlreadyExists when a row for the same
// (guest_id, event_id) pair exists; callers treat that as the signal to take
// the update path (upsert).
type RSVPStore interface {
	CreateRSVP(ctx context.Context, r *RSVP) error
	GetRSVP(ctx context.Context, id uint) (*RSVP, error)
	GetRSVPByPair(ctx context.Context, guestID, eventID uint) (*RSVP, error)
	UpdateRSVP(ctx context.Context, r *RSVP) error
	DeleteRSVPsByEvent(ctx context.Context, eventID uint) error
	DeleteRSVPsByGuest(ctx context.Context, guestID uint) error
	ListRSVPsByEvent(ctx context.Context, eventID uint) ([]*RSVP, error)

	// RSVPStats returns per-status counts for an event.
	RSVPStats(ctx context.Context, eventID uint) (map[RSVPStatus]int64, error)
}

// Stores combines all entity stores offered by a driver.
type Stores interface {
	Driver
	EventStore
	GuestStore
	InvitationStore
	RSVPStore
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, sqlite
	Driver string `toml:"driver"`

	// DataDir is the directory for data files (sqlite db)
	DataDir string `toml:"data_dir"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Stores, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Stores, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
