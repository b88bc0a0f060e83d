package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty values mean "not set".
type FlagOverrides struct {
	ListenAddr    *string
	PublicOrigin  *string
	StoreDriver   *string
	DataDir       *string
	CacheDriver   *string
	AdminUsername *string
	AdminPassword *string
	ExpiryDays    *string
	LoggingLevel  *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode         string `toml:"mode"`
	ListenAddr   string `toml:"listen_addr"`
	PublicOrigin string `toml:"public_origin"`

	Server      *serverConfig      `toml:"server"`
	Store       *storeConfig       `toml:"store"`
	Cache       *cacheConfig       `toml:"cache"`
	Invitations *invitationsConfig `toml:"invitations"`
	Mail        *mailConfig        `toml:"mail"`
	QR          *qrConfig          `toml:"qr"`
	RateLimit   *rateLimitConfig   `toml:"ratelimit"`
	Logging     *loggingConfig     `toml:"logging"`
}

type serverConfig struct {
	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
}

type storeConfig struct {
	Driver  string `toml:"driver"`
	DataDir string `toml:"data_dir"`
}

type cacheConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

type invitationsConfig struct {
	ExpiryDays           *int `toml:"expiry_days"`
	SweepIntervalMinutes *int `toml:"sweep_interval_minutes"`
}

type mailConfig struct {
	SMTPHost        string `toml:"smtp_host"`
	SMTPPort        *int   `toml:"smtp_port"`
	SMTPUsername    string `toml:"smtp_username"`
	SMTPPassword    string `toml:"smtp_password"`
	From            string `toml:"from"`
	SubjectTemplate string `toml:"subject_template"`
	BodyTemplate    string `toml:"body_template"`
}

type qrConfig struct {
	Size        *int   `toml:"size"`
	FallbackURL string `toml:"fallback_url"`
}

type rateLimitConfig struct {
	RequestsPerMinute *int64 `toml:"requests_per_minute"`
}

type loggingConfig struct {
	Level string `toml:"level"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid
// TOML, Load returns an error (fail fast). Unknown TOML keys produce a
// warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	if mode == ModeDev {
		cfg = DevConfig()
	} else {
		cfg = StrictConfig()
	}

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	if err := overlayFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.Server != nil {
		if fc.Server.AdminUsername != "" {
			cfg.Server.AdminUsername = fc.Server.AdminUsername
		}
		if fc.Server.AdminPassword != "" {
			cfg.Server.AdminPassword = fc.Server.AdminPassword
		}
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}
	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}
	if fc.Invitations != nil {
		if fc.Invitations.ExpiryDays != nil {
			cfg.Invitations.ExpiryDays = *fc.Invitations.ExpiryDays
		}
		if fc.Invitations.SweepIntervalMinutes != nil {
			cfg.Invitations.SweepIntervalMinutes = *fc.Invitations.SweepIntervalMinutes
		}
	}
	if fc.Mail != nil {
		if fc.Mail.SMTPHost != "" {
			cfg.Mail.SMTPHost = fc.Mail.SMTPHost
		}
		if fc.Mail.SMTPPort != nil {
			cfg.Mail.SMTPPort = *fc.Mail.SMTPPort
		}
		if fc.Mail.SMTPUsername != "" {
			cfg.Mail.SMTPUsername = fc.Mail.SMTPUsername
		}
		if fc.Mail.SMTPPassword != "" {
			cfg.Mail.SMTPPassword = fc.Mail.SMTPPassword
		}
		if fc.Mail.From != "" {
			cfg.Mail.From = fc.Mail.From
		}
		if fc.Mail.SubjectTemplate != "" {
			cfg.Mail.SubjectTemplate = fc.Mail.SubjectTemplate
		}
		if fc.Mail.BodyTemplate != "" {
			cfg.Mail.BodyTemplate = fc.Mail.BodyTemplate
		}
	}
	if fc.QR != nil {
		if fc.QR.Size != nil {
			cfg.QR.Size = *fc.QR.Size
		}
		if fc.QR.FallbackURL != "" {
			cfg.QR.FallbackURL = fc.QR.FallbackURL
		}
	}
	if fc.RateLimit != nil && fc.RateLimit.RequestsPerMinute != nil {
		cfg.RateLimit.RequestsPerMinute = *fc.RateLimit.RequestsPerMinute
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, flags FlagOverrides) error {
	if flags.ListenAddr != nil && *flags.ListenAddr != "" {
		cfg.ListenAddr = *flags.ListenAddr
	}
	if flags.PublicOrigin != nil && *flags.PublicOrigin != "" {
		cfg.PublicOrigin = *flags.PublicOrigin
	}
	if flags.StoreDriver != nil && *flags.StoreDriver != "" {
		cfg.Store.Driver = *flags.StoreDriver
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.Store.DataDir = *flags.DataDir
	}
	if flags.CacheDriver != nil && *flags.CacheDriver != "" {
		cfg.Cache.Driver = *flags.CacheDriver
	}
	if flags.AdminUsername != nil && *flags.AdminUsername != "" {
		cfg.Server.AdminUsername = *flags.AdminUsername
	}
	if flags.AdminPassword != nil && *flags.AdminPassword != "" {
		cfg.Server.AdminPassword = *flags.AdminPassword
	}
	if flags.ExpiryDays != nil && *flags.ExpiryDays != "" {
		days, err := strconv.Atoi(*flags.ExpiryDays)
		if err != nil {
			return fmt.Errorf("invalid --expiry-days value %q: %w", *flags.ExpiryDays, err)
		}
		cfg.Invitations.ExpiryDays = days
	}
	if flags.LoggingLevel != nil && *flags.LoggingLevel != "" {
		cfg.Logging.Level = *flags.LoggingLevel
	}
	return nil
}

// Validate checks enum fields and required values. Fatal on invalid values.
func (c *Config) Validate() error {
	if _, err := ParseMode(c.Mode); err != nil {
		return err
	}

	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid public_origin %q: must be scheme://host[:port]", c.PublicOrigin)
	}

	if c.Store.Driver == "" {
		return fmt.Errorf("store.driver is required")
	}
	if c.Store.Driver == "sqlite" && c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required for the sqlite driver")
	}

	if c.Cache.Driver == "" {
		return fmt.Errorf("cache.driver is required")
	}

	if c.Invitations.ExpiryDays <= 0 {
		return fmt.Errorf("invitations.expiry_days must be positive, got %d", c.Invitations.ExpiryDays)
	}
	if c.Invitations.SweepIntervalMinutes < 0 {
		return fmt.Errorf("invitations.sweep_interval_minutes must not be negative")
	}

	if Mode(c.Mode) == ModeStrict {
		if c.Server.AdminUsername == "" || c.Server.AdminPassword == "" {
			return fmt.Errorf("server.admin_username and server.admin_password are required in strict mode")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", c.Logging.Level)
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("ratelimit.requests_per_minute must be positive")
	}

	if c.QR.Size <= 0 {
		return fmt.Errorf("qr.size must be positive")
	}

	return nil
}
