package store

import "time"

// InvitationStatus represents the lifecycle status of an invitation.
type InvitationStatus string

const (
	InvitationStatusPending InvitationStatus = "pending"
	InvitationStatusSent    InvitationStatus = "sent"
	InvitationStatusViewed  InvitationStatus = "viewed"
	InvitationStatusExpired InvitationStatus = "expired"
)

// RSVPStatus represents a guest's response to an invitation.
type RSVPStatus string

const (
	RSVPStatusPending  RSVPStatus = "pending"
	RSVPStatusAccepted RSVPStatus = "accepted"
	RSVPStatusDeclined RSVPStatus = "declined"
)

// Event represents an organizer-defined event.
type Event struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name"`
	Date           string    `json:"date"` // YYYY-MM-DD
	Time           string    `json:"time"` // HH:MM, optional
	Venue          string    `json:"venue"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	InvitationText string    `json:"invitation_text"`
	ContactInfo    string    `json:"contact_info"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DatePassed reports whether the event date is strictly before the given day.
// Events with an unparseable or empty date never count as passed.
func (e *Event) DatePassed(now time.Time) bool {
	d, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return false
	}
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, now.Location())
	return d.Before(today)
}

// Guest represents a person on an organizer's guest list.
type Guest struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Category       string    `json:"category,omitempty" gorm:"index"`
	PlusOneAllowed bool      `json:"plus_one_allowed"`
	AgeGroup       string    `json:"age_group,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Invitation links a guest to an event through a unique token.
//
// Invariant: IsOpened implies IsSent implies Token is set. The composite
// unique index on (guest_id, event_id) and the unique index on token are the
// storage-level guarantees behind manager check-then-act logic.
type Invitation struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	GuestID   uint             `json:"guest_id" gorm:"uniqueIndex:idx_invitations_guest_event"`
	EventID   uint             `json:"event_id" gorm:"uniqueIndex:idx_invitations_guest_event;index"`
	Token     string           `json:"-" gorm:"column:unique_token;uniqueIndex"`
	Status    InvitationStatus `json:"status" gorm:"index"`
	IsSent    bool             `json:"is_sent"`
	IsOpened  bool             `json:"is_opened"`
	SentAt    *time.Time       `json:"sent_at,omitempty"`
	OpenedAt  *time.Time       `json:"opened_at,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// Expired reports whether the invitation is past its validity window.
func (i *Invitation) Expired(now time.Time) bool {
	if i.Status == InvitationStatusExpired {
		return true
	}
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// RSVP represents a guest's response for an event. One row per pair.
type RSVP struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	GuestID          uint       `json:"guest_id" gorm:"uniqueIndex:idx_rsvps_guest_event"`
	EventID          uint       `json:"event_id" gorm:"uniqueIndex:idx_rsvps_guest_event;index"`
	Status           RSVPStatus `json:"status"`
	PlusOneAttending bool       `json:"plus_one_attending"`
	PlusOneName      string     `json:"plus_one_name,omitempty"`
	Dietary          string     `json:"dietary,omitempty"`
	ResponseDate     time.Time  `json:"response_date"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// InvitationStats holds aggregate invitation counts for one event.
type InvitationStats struct {
	Total    int64                      `json:"total"`
	ByStatus map[InvitationStatus]int64 `json:"by_status"`
	Sent     int64                      `json:"sent"`
	Opened   int64                      `json:"opened"`
}
