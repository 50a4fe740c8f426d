package sheet

import (
	"fmt"
	"strings"
)

// Site is the rating service a channel's sheet tracks.
type Site string

const (
	SiteChessCom Site = "chess.com"
	SiteLichess  Site = "lichess"
)

// Game is the time control whose rating is recorded.
type Game string

const (
	GameBlitz  Game = "blitz"
	GameBullet Game = "bullet"
	GameRapid  Game = "rapid"
)

// Format controls the Formatted column of new rows.
type Format string

const (
	FormatNone    Format = "none"
	FormatSpace   Format = "space"
	FormatBracket Format = "bracket"
)

var (
	Sites   = []Site{SiteChessCom, SiteLichess}
	Games   = []Game{GameBlitz, GameBullet, GameRapid}
	Formats = []Format{FormatNone, FormatSpace, FormatBracket}
)

// SettingName names a user-settable field.
type SettingName string

const (
	SettingSite   SettingName = "site"
	SettingGame   SettingName = "game"
	SettingFormat SettingName = "format"
)

// SettingNames lists the settable fields in display order.
var SettingNames = []SettingName{SettingSite, SettingGame, SettingFormat}

// SettingsHelp describes every accepted setting in chat-friendly form.
const SettingsHelp = "?set site lichess (or chess.com); ?set format bracket (or space, or none); ?set game bullet (or rapid, or blitz)"

// Settings is a channel's persisted configuration.
type Settings struct {
	Site          Site
	Game          Game
	Format        Format
	SpreadsheetID string
}

// DefaultSettings is what a newly joined channel starts with.
func DefaultSettings() Settings {
	return Settings{Site: SiteChessCom, Game: GameBlitz, Format: FormatNone}
}

func contains[T ~string](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func allowed[T ~string](set []T) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

// ParseSite validates a site name.
func ParseSite(v string) (Site, error) {
	s := Site(strings.ToLower(strings.TrimSpace(v)))
	if !contains(Sites, s) {
		return "", &InvalidValueError{Setting: SettingSite, Value: v, Allowed: allowed(Sites)}
	}
	return s, nil
}

// ParseGame validates a game name.
func ParseGame(v string) (Game, error) {
	g := Game(strings.ToLower(strings.TrimSpace(v)))
	if !contains(Games, g) {
		return "", &InvalidValueError{Setting: SettingGame, Value: v, Allowed: allowed(Games)}
	}
	return g, nil
}

// ParseFormat validates a format name.
func ParseFormat(v string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(v)))
	if !contains(Formats, f) {
		return "", &InvalidValueError{Setting: SettingFormat, Value: v, Allowed: allowed(Formats)}
	}
	return f, nil
}

// ParseSettingName validates a setting name.
func ParseSettingName(v string) (SettingName, error) {
	n := SettingName(strings.ToLower(strings.TrimSpace(v)))
	if !contains(SettingNames, n) {
		return "", &UnknownSettingError{Name: v}
	}
	return n, nil
}

// Normalize replaces invalid fields with their defaults and reports which
// fields were replaced.
func (s Settings) Normalize() (Settings, []SettingName) {
	def := DefaultSettings()
	var fixed []SettingName
	if !contains(Sites, s.Site) {
		s.Site = def.Site
		fixed = append(fixed, SettingSite)
	}
	if !contains(Games, s.Game) {
		s.Game = def.Game
		fixed = append(fixed, SettingGame)
	}
	if !contains(Formats, s.Format) {
		s.Format = def.Format
		fixed = append(fixed, SettingFormat)
	}
	return s, fixed
}

// String renders settings the way they are reported in chat.
func (s Settings) String() string {
	return fmt.Sprintf("format=%s, site=%s, game=%s", s.Format, s.Site, s.Game)
}

// Formatted renders the Formatted column for a name and rating.
func (f Format) Formatted(name string, rating int) string {
	switch f {
	case FormatBracket:
		return fmt.Sprintf("%s (%d)", name, rating)
	case FormatSpace:
		return fmt.Sprintf("%s %d", name, rating)
	default:
		return "-"
	}
}
