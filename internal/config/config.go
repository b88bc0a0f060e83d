// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/eventinvite/eventinvite-go/internal/store"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// Config is the effective server configuration after presets, file values and
// flag overrides have been applied.
type Config struct {
	Mode string

	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// PublicOrigin is the externally visible origin used to build invitation
	// URLs embedded in emails and QR codes (scheme://host[:port]).
	PublicOrigin string

	Server      ServerConfig
	Store       store.DriverConfig
	Cache       CacheConfig
	Invitations InvitationsConfig
	Mail        MailConfig
	QR          QRConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

// ServerConfig holds admin credential settings.
type ServerConfig struct {
	// AdminUsername and AdminPassword gate the /api surface via basic auth.
	// The password is bcrypt-hashed at startup and the plaintext is dropped.
	AdminUsername string
	AdminPassword string
}

// CacheConfig selects the cache driver and carries per-driver options.
type CacheConfig struct {
	Driver  string
	Drivers map[string]map[string]any
}

// Options returns the option map for the selected driver (may be nil).
func (c CacheConfig) Options() map[string]any {
	if c.Drivers == nil {
		return nil
	}
	return c.Drivers[c.Driver]
}

// InvitationsConfig holds lifecycle tuning.
type InvitationsConfig struct {
	// ExpiryDays is added to the creation time when no explicit expiry is
	// supplied.
	ExpiryDays int

	// SweepIntervalMinutes is how often the expiry sweep runs. 0 disables the
	// background sweeper (the admin endpoint still works).
	SweepIntervalMinutes int
}

// MailConfig holds SMTP transport and template settings.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string

	// SubjectTemplate and BodyTemplate support {guest_name}, {event_name},
	// {event_date}, {event_time}, {venue}, {address}, {invitation_url},
	// {contact_info} and {plus_one_note} placeholders.
	SubjectTemplate string
	BodyTemplate    string
}

// QRConfig holds QR code generation settings.
type QRConfig struct {
	// Size is the PNG edge length in pixels.
	Size int

	// FallbackURL is a remote chart endpoint used when local encoding fails;
	// {data} and {size} placeholders are substituted. Empty disables the
	// fallback.
	FallbackURL string
}

// RateLimitConfig holds public-surface rate limiting settings.
type RateLimitConfig struct {
	RequestsPerMinute int64
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
}

// StrictConfig returns production-safe strict defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:         string(ModeStrict),
		ListenAddr:   ":8470",
		PublicOrigin: "http://localhost:8470",
		Store: store.DriverConfig{
			Driver:  "sqlite",
			DataDir: ".eventinvite",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Invitations: InvitationsConfig{
			ExpiryDays:           30,
			SweepIntervalMinutes: 60,
		},
		Mail: MailConfig{
			SMTPHost:        "localhost",
			SMTPPort:        25,
			SubjectTemplate: "You are invited to {event_name}",
			BodyTemplate: "<p>Dear {guest_name},</p>" +
				"<p>{invitation_text}</p>" +
				"<p>{event_name} takes place on {event_date} at {event_time}, {venue}, {address}.{plus_one_note}</p>" +
				"<p>Please respond here: <a href=\"{invitation_url}\">{invitation_url}</a></p>" +
				"<p>{contact_info}</p>",
		},
		QR: QRConfig{
			Size: 256,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DevConfig returns development mode defaults: in-memory storage, permissive
// rate limits and default admin credentials.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store.Driver = "memory"
	cfg.Server.AdminUsername = "admin"
	cfg.Server.AdminPassword = "admin"
	cfg.RateLimit.RequestsPerMinute = 1000
	cfg.Logging.Level = "debug"
	return cfg
}
