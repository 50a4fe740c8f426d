package sheet

import (
	"context"
	"log/slog"
)

type setter func(cs *ChannelSheet, ctx context.Context, value string) (bool, error)

var setters = map[SettingName]setter{
	SettingSite: func(cs *ChannelSheet, ctx context.Context, v string) (bool, error) {
		s, err := ParseSite(v)
		if err != nil {
			return false, err
		}
		return cs.SetSite(ctx, s)
	},
	SettingGame: func(cs *ChannelSheet, ctx context.Context, v string) (bool, error) {
		g, err := ParseGame(v)
		if err != nil {
			return false, err
		}
		return cs.SetGame(ctx, g)
	},
	SettingFormat: func(cs *ChannelSheet, ctx context.Context, v string) (bool, error) {
		f, err := ParseFormat(v)
		if err != nil {
			return false, err
		}
		return cs.SetFormat(f)
	},
}

// Set applies a setting by name. It reports whether the value changed; an
// unchanged value is a no-op.
func (cs *ChannelSheet) Set(ctx context.Context, name SettingName, value string) (bool, error) {
	set, ok := setters[name]
	if !ok {
		return false, &UnknownSettingError{Name: string(name)}
	}
	return set(cs, ctx, value)
}

// SetSite switches the rating site and rewrites the header of both worksheets.
func (cs *ChannelSheet) SetSite(ctx context.Context, site Site) (bool, error) {
	if !contains(Sites, site) {
		return false, &InvalidValueError{Setting: SettingSite, Value: string(site), Allowed: allowed(Sites)}
	}
	return setSchema(cs, ctx, func(s *Settings) *Site { return &s.Site }, site)
}

// SetGame switches the game and rewrites the header of both worksheets.
func (cs *ChannelSheet) SetGame(ctx context.Context, game Game) (bool, error) {
	if !contains(Games, game) {
		return false, &InvalidValueError{Setting: SettingGame, Value: string(game), Allowed: allowed(Games)}
	}
	return setSchema(cs, ctx, func(s *Settings) *Game { return &s.Game }, game)
}

// setSchema changes a header-affecting field and pushes the new header. The
// old value is restored when the header cannot be written.
func setSchema[T comparable](cs *ChannelSheet, ctx context.Context, field func(*Settings) *T, v T) (bool, error) {
	cs.mu.Lock()
	p := field(&cs.settings)
	old := *p
	if old == v {
		cs.mu.Unlock()
		return false, nil
	}
	*p = v
	ss := cs.ss
	h := HeaderFor(cs.settings.Site, cs.settings.Game)
	cs.mu.Unlock()

	if err := cs.writeHeader(ctx, ss, h); err != nil {
		cs.mu.Lock()
		if p := field(&cs.settings); *p == v {
			*p = old
		}
		cs.mu.Unlock()
		return false, err
	}
	cs.log.Info("header updated", slog.Any("columns", h.Columns))
	return true, nil
}

// SetFormat changes how the Formatted column of future rows is rendered.
// Existing rows keep their formatting.
func (cs *ChannelSheet) SetFormat(f Format) (bool, error) {
	if !contains(Formats, f) {
		return false, &InvalidValueError{Setting: SettingFormat, Value: string(f), Allowed: allowed(Formats)}
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.settings.Format == f {
		return false, nil
	}
	cs.settings.Format = f
	return true, nil
}
