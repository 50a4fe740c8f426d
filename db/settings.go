package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ChannelSettings is one row of channel_settings.
type ChannelSettings struct {
	Channel       string         `db:"channel"`
	Site          string         `db:"site"`
	Game          string         `db:"game"`
	Format        string         `db:"format"`
	SpreadsheetID sql.NullString `db:"spreadsheet_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// settingColumns is the closed set of columns UpdateSetting may write.
var settingColumns = map[string]string{
	"site":   "site",
	"game":   "game",
	"format": "format",
}

// UnknownFieldError is returned by UpdateSetting for a field outside the
// settable columns.
type UnknownFieldError struct{ Field string }

func (e *UnknownFieldError) Error() string { return fmt.Sprintf("unknown setting field %q", e.Field) }

// SettingsStore persists per-channel configuration.
type SettingsStore struct {
	db *sqlx.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: sqlx.NewDb(db, "pgx")}
}

const settingsCols = `channel, site, game, format, spreadsheet_id, created_at, updated_at`

// GetSettings returns the channel's settings, creating a default row first
// when the channel has none.
func (s *SettingsStore) GetSettings(ctx context.Context, channel string) (ChannelSettings, error) {
	var cs ChannelSettings
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_settings(channel) VALUES($1) ON CONFLICT(channel) DO NOTHING`, channel); err != nil {
		return cs, fmt.Errorf("insert default settings: %w", err)
	}
	err := s.db.GetContext(ctx, &cs, `SELECT `+settingsCols+` FROM channel_settings WHERE channel = $1`, channel)
	if err != nil {
		return cs, fmt.Errorf("get settings: %w", err)
	}
	return cs, nil
}

// UpdateSetting writes one of site, game or format.
func (s *SettingsStore) UpdateSetting(ctx context.Context, channel, field, value string) error {
	col, ok := settingColumns[field]
	if !ok {
		return &UnknownFieldError{Field: field}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_settings(channel, `+col+`, updated_at) VALUES($1, $2, NOW())
		 ON CONFLICT(channel) DO UPDATE SET `+col+` = EXCLUDED.`+col+`, updated_at = NOW()`, channel, value)
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	return nil
}

// StoreSpreadsheetID records the channel's spreadsheet.
func (s *SettingsStore) StoreSpreadsheetID(ctx context.Context, channel, id string) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO channel_settings(channel, spreadsheet_id, updated_at) VALUES(:channel, :id, NOW())
		 ON CONFLICT(channel) DO UPDATE SET spreadsheet_id = EXCLUDED.spreadsheet_id, updated_at = NOW()`,
		map[string]any{"channel": channel, "id": id})
	if err != nil {
		return fmt.Errorf("store spreadsheet id: %w", err)
	}
	return nil
}

// DeleteChannel forgets the channel entirely.
func (s *SettingsStore) DeleteChannel(ctx context.Context, channel string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channel_settings WHERE channel = $1`, channel); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// AllChannels lists every channel with stored settings.
func (s *SettingsStore) AllChannels(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT channel FROM channel_settings ORDER BY channel`); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return out, nil
}

// AllSettings returns every channel's settings.
func (s *SettingsStore) AllSettings(ctx context.Context) ([]ChannelSettings, error) {
	var out []ChannelSettings
	if err := s.db.SelectContext(ctx, &out, `SELECT `+settingsCols+` FROM channel_settings ORDER BY channel`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

// Ping checks the connection.
func (s *SettingsStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
