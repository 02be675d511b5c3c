package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("profile_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("profile_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("profile_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("profile_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("profile_store.unsupported_no_scheme")
)

// DatabaseProfileStore persists the session profile using GORM. A single
// row keyed by slot keeps the latest profile; SQLite covers the common
// local-CLI case and PostgreSQL covers shared workstations.
type DatabaseProfileStore struct {
	db          *gorm.DB
	slot        string
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseProfileStore) Driver() string {
	return store.driverLabel
}

type profileRecord struct {
	Slot          string `gorm:"column:slot;primaryKey"`
	UserID        string `gorm:"column:user_id;not null"`
	Username      string `gorm:"column:username;not null"`
	Email         string `gorm:"column:email;not null;default:''"`
	Role          string `gorm:"column:role;not null;default:''"`
	SessionID     string `gorm:"column:session_id;not null;default:''"`
	DeviceID      string `gorm:"column:device_id;not null;default:''"`
	LastLoginAt   string `gorm:"column:last_login_at;not null;default:''"`
	UpdatedAtUnix int64  `gorm:"column:updated_at_unix;not null"`
}

func (profileRecord) TableName() string {
	return "session_profiles"
}

const defaultProfileSlot = "default"

// NewDatabaseProfileStore constructs a GORM-backed store from a
// sqlite:// or postgres:// URL.
func NewDatabaseProfileStore(ctx context.Context, databaseURL string) (*DatabaseProfileStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("profile_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("profile_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&profileRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("profile_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseProfileStore{
		db:          gormDB,
		slot:        defaultProfileSlot,
		driverLabel: driverLabel,
	}, nil
}

// Save upserts the profile row for this store's slot.
func (store *DatabaseProfileStore) Save(ctx context.Context, profile Profile) error {
	record := profileRecord{
		Slot:          store.slot,
		UserID:        profile.User.ID,
		Username:      profile.User.Username,
		Email:         profile.User.Email,
		Role:          profile.User.Role,
		SessionID:     profile.AuthMeta.SessionID,
		DeviceID:      profile.AuthMeta.DeviceID,
		LastLoginAt:   formatLastLogin(profile.AuthMeta.LastLoginAt),
		UpdatedAtUnix: time.Now().UTC().Unix(),
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("profile_store.save.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Load reads the profile row for this store's slot.
func (store *DatabaseProfileStore) Load(ctx context.Context) (Profile, bool, error) {
	var record profileRecord
	err := store.db.WithContext(ctx).Where("slot = ?", store.slot).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, false, nil
		}
		return Profile{}, false, fmt.Errorf("profile_store.load.%s: %w", store.driverLabel, err)
	}
	return Profile{
		User: User{
			ID:       record.UserID,
			Username: record.Username,
			Email:    record.Email,
			Role:     record.Role,
		},
		AuthMeta: AuthMeta{
			SessionID:   record.SessionID,
			DeviceID:    record.DeviceID,
			LastLoginAt: parseLastLogin(record.LastLoginAt),
		},
	}, true, nil
}

func formatLastLogin(lastLoginAt time.Time) string {
	if lastLoginAt.IsZero() {
		return ""
	}
	return lastLoginAt.UTC().Format(time.RFC3339)
}

func parseLastLogin(stored string) time.Time {
	if stored == "" {
		return time.Time{}
	}
	parsed, parseErr := time.Parse(time.RFC3339, stored)
	if parseErr != nil {
		return time.Time{}
	}
	return parsed
}

// Clear deletes the profile row for this store's slot.
func (store *DatabaseProfileStore) Clear(ctx context.Context) error {
	err := store.db.WithContext(ctx).Where("slot = ?", store.slot).Delete(&profileRecord{}).Error
	if err != nil {
		return fmt.Errorf("profile_store.clear.%s: %w", store.driverLabel, err)
	}
	return nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("profile_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("profile_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("profile_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("profile_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
