// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements store.Stores using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Stores, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, "eventinvite.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables and unique indexes from model structs
	if err := db.AutoMigrate(
		&store.Event{},
		&store.Guest{},
		&store.Invitation{},
		&store.RSVP{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps GORM errors to store sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return err
	}
}

// EventStore implementation

func (d *Driver) CreateEvent(ctx context.Context, event *store.Event) error {
	return translate(d.db.WithContext(ctx).Create(event).Error)
}

func (d *Driver) GetEvent(ctx context.Context, id uint) (*store.Event, error) {
	var event store.Event
	if err := d.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (d *Driver) UpdateEvent(ctx context.Context, event *store.Event) error {
	return translate(d.db.WithContext(ctx).Save(event).Error)
}

func (d *Driver) DeleteEvent(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Delete(&store.Event{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) ListEvents(ctx context.Context) ([]*store.Event, error) {
	var events []*store.Event
	if err := d.db.WithContext(ctx).Order("date, id").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GuestStore implementation

func (d *Driver) CreateGuest(ctx context.Context, guest *store.Guest) error {
	return translate(d.db.WithContext(ctx).Create(guest).Error)
}

func (d *Driver) GetGuest(ctx context.Context, id uint) (*store.Guest, error) {
	var guest store.Guest
	if err := d.db.WithContext(ctx).First(&guest, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &guest, nil
}

func (d *Driver) UpdateGuest(ctx context.Context, guest *store.Guest) error {
	return translate(d.db.WithContext(ctx).Save(guest).Error)
}

func (d *Driver) DeleteGuest(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Delete(&store.Guest{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) ListGuests(ctx context.Context, filter store.GuestFilter) ([]*store.Guest, error) {
	query := d.db.WithContext(ctx)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	var guests []*store.Guest
	if err := query.Order("name, id").Find(&guests).Error; err != nil {
		return nil, err
	}
	return guests, nil
}

// InvitationStore implementation

func (d *Driver) CreateInvitation(ctx context.Context, inv *store.Invitation) error {
	return translate(d.db.WithContext(ctx).Create(inv).Error)
}

func (d *Driver) GetInvitation(ctx context.Context, id uint) (*store.Invitation, error) {
	var inv store.Invitation
	if err := d.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (d *Driver) GetInvitationByToken(ctx context.Context, token string) (*store.Invitation, error) {
	var inv store.Invitation
	if err := d.db.WithContext(ctx).First(&inv, "unique_token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (d *Driver) GetInvitationByPair(ctx context.Context, guestID, eventID uint) (*store.Invitation, error) {
	var inv store.Invitation
	err := d.db.WithContext(ctx).First(&inv, "guest_id = ? AND event_id = ?", guestID, eventID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (d *Driver) UpdateInvitation(ctx context.Context, inv *store.Invitation) error {
	return translate(d.db.WithContext(ctx).Save(inv).Error)
}

func (d *Driver) DeleteInvitation(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Delete(&store.Invitation{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) DeleteInvitationsByEvent(ctx context.Context, eventID uint) error {
	return translate(d.db.WithContext(ctx).Delete(&store.Invitation{}, "event_id = ?", eventID).Error)
}

func (d *Driver) DeleteInvitationsByGuest(ctx context.Context, guestID uint) error {
	return translate(d.db.WithContext(ctx).Delete(&store.Invitation{}, "guest_id = ?", guestID).Error)
}

func (d *Driver) ListInvitationsByEvent(ctx context.Context, eventID uint) ([]*store.Invitation, error) {
	var invs []*store.Invitation
	if err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func (d *Driver) ListInvitationsByGuest(ctx context.Context, guestID uint) ([]*store.Invitation, error) {
	var invs []*store.Invitation
	if err := d.db.WithContext(ctx).Where("guest_id = ?", guestID).Order("id").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func (d *Driver) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&store.Invitation{}).
		Where("unique_token = ?", token).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Driver) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	result := d.db.WithContext(ctx).Model(&store.Invitation{}).
		Where("expires_at < ? AND status <> ?", now, store.InvitationStatusExpired).
		Update("status", store.InvitationStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (d *Driver) InvitationStats(ctx context.Context, eventID uint) (*store.InvitationStats, error) {
	stats := &store.InvitationStats{
		ByStatus: make(map[store.InvitationStatus]int64),
	}

	type statusCount struct {
		Status store.InvitationStatus
		Count  int64
	}
	var rows []statusCount
	err := d.db.WithContext(ctx).Model(&store.Invitation{}).
		Select("status, count(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	err = d.db.WithContext(ctx).Model(&store.Invitation{}).
		Where("event_id = ? AND is_sent = ?", eventID, true).Count(&stats.Sent).Error
	if err != nil {
		return nil, err
	}
	err = d.db.WithContext(ctx).Model(&store.Invitation{}).
		Where("event_id = ? AND is_opened = ?", eventID, true).Count(&stats.Opened).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// RSVPStore implementation

func (d *Driver) CreateRSVP(ctx context.Context, r *store.RSVP) error {
	return translate(d.db.WithContext(ctx).Create(r).Error)
}

func (d *Driver) GetRSVP(ctx context.Context, id uint) (*store.RSVP, error) {
	var r store.RSVP
	if err := d.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (d *Driver) GetRSVPByPair(ctx context.Context, guestID, eventID uint) (*store.RSVP, error) {
	var r store.RSVP
	err := d.db.WithContext(ctx).First(&r, "guest_id = ? AND event_id = ?", guestID, eventID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (d *Driver) UpdateRSVP(ctx context.Context, r *store.RSVP) error {
	return translate(d.db.WithContext(ctx).Save(r).Error)
}

func (d *Driver) DeleteRSVPsByEvent(ctx context.Context, eventID uint) error {
	return translate(d.db.WithContext(ctx).Delete(&store.RSVP{}, "event_id = ?", eventID).Error)
}

func (d *Driver) DeleteRSVPsByGuest(ctx context.Context, guestID uint) error {
	return translate(d.db.WithContext(ctx).Delete(&store.RSVP{}, "guest_id = ?", guestID).Error)
}

func (d *Driver) ListRSVPsByEvent(ctx context.Context, eventID uint) ([]*store.RSVP, error) {
	var rsvps []*store.RSVP
	if err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&rsvps).Error; err != nil {
		return nil, err
	}
	return rsvps, nil
}

func (d *Driver) RSVPStats(ctx context.Context, eventID uint) (map[store.RSVPStatus]int64, error) {
	type statusCount struct {
		Status store.RSVPStatus
		Count  int64
	}
	var rows []statusCount
	err := d.db.WithContext(ctx).Model(&store.RSVP{}).
		Select("status, count(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[store.RSVPStatus]int64)
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

// Compile-time interface check
var _ store.Stores = (*Driver)(nil)
