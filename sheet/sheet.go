// Package sheet keeps a channel's leaderboard spreadsheet in sync with chat.
//
// A ChannelSheet owns the channel's settings and a row cache mapping each
// lowercased chat handle to the worksheet and row holding it. The cache is a
// best-effort mirror of the remote sheet: it is rebuilt wholesale by
// RefreshUsers, and after a moved outcome the rows that followed the deleted
// row in the source worksheet are off by one until the next refresh.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/onnwee/battlesheet/gateway"
)

// Remote is the spreadsheet service as seen by a channel sheet.
// *gateway.Gateway implements it.
type Remote interface {
	OpenByID(ctx context.Context, id string) (*gateway.Spreadsheet, error)
	OpenByTitle(ctx context.Context, title string) (*gateway.Spreadsheet, error)
	Create(ctx context.Context, title string, worksheets []string) (*gateway.Spreadsheet, error)
	ShareAnyone(ctx context.Context, id string) error
	Delete(ctx context.Context, id, title string) error
	UpdateValues(ctx context.Context, id string, ranges []gateway.ValueRange) error
	BoldHeader(ctx context.Context, id string, worksheetIDs []int64, columns int) error
	AppendRow(ctx context.Context, id, worksheet string, values []any) (int, error)
	ReadColumns(ctx context.Context, id string, ranges []string) ([][]string, error)
	ClearValues(ctx context.Context, id string, ranges []string) error
	DeleteRow(ctx context.Context, id string, worksheetID int64, row int) error
}

// Location is where a user's row lives.
type Location struct {
	Worksheet string
	Row       int
}

// Peak is a player's best rating and the date it was reached. Zero fields
// are written as "-".
type Peak struct {
	Rating int
	Date   string
}

// Entry is one applicant's looked-up data. A nil Peak leaves the peak
// columns out of the row.
type Entry struct {
	Handle     string
	Name       string
	Rating     int
	Peak       *Peak
	Privileged bool
}

// Outcome is what AddData did with an entry.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeUpdated
	OutcomeMoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeUpdated:
		return "updated"
	case OutcomeMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// ChannelSheet is one channel's spreadsheet plus its settings and row cache.
// mu guards settings, ss and rows and is never held across a remote call.
type ChannelSheet struct {
	channel string
	remote  Remote
	log     *slog.Logger

	mu       sync.Mutex
	settings Settings
	ss       *gateway.Spreadsheet
	rows     map[string]Location
}

// Open resolves the channel's spreadsheet by stored id, then by title, and
// creates it when neither exists. The row cache is loaded before returning.
func Open(ctx context.Context, remote Remote, channel string, settings Settings, log *slog.Logger) (*ChannelSheet, error) {
	if log == nil {
		log = slog.Default()
	}
	settings, fixed := settings.Normalize()
	cs := &ChannelSheet{
		channel:  channel,
		remote:   remote,
		log:      log.With(slog.String("channel", channel)),
		settings: settings,
		rows:     make(map[string]Location),
	}
	for _, name := range fixed {
		cs.log.Warn("stored setting invalid; using default", slog.String("setting", string(name)))
	}

	ss, err := cs.resolve(ctx, settings.SpreadsheetID)
	if err != nil {
		return nil, err
	}
	for _, title := range Worksheets {
		if _, ok := ss.Worksheet(title); !ok {
			return nil, &SetupError{Channel: channel, Op: "open", Err: fmt.Errorf("worksheet %q missing", title)}
		}
	}
	cs.ss = ss
	cs.settings.SpreadsheetID = ss.ID

	if err := cs.RefreshUsers(ctx); err != nil {
		return nil, &SetupError{Channel: channel, Op: "refresh", Err: err}
	}
	return cs, nil
}

func (cs *ChannelSheet) resolve(ctx context.Context, storedID string) (*gateway.Spreadsheet, error) {
	if storedID != "" {
		ss, err := cs.remote.OpenByID(ctx, storedID)
		if err == nil {
			return ss, nil
		}
		if !errors.Is(err, gateway.ErrNotFound) {
			return nil, &SetupError{Channel: cs.channel, Op: "open by id", Err: err}
		}
		cs.log.Warn("stored spreadsheet not found; looking up by title", slog.String("spreadsheet_id", storedID))
	}
	ss, err := cs.remote.OpenByTitle(ctx, cs.channel)
	if err == nil {
		return ss, nil
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		return nil, &SetupError{Channel: cs.channel, Op: "open by title", Err: err}
	}

	ss, err = cs.remote.Create(ctx, cs.channel, Worksheets)
	if err != nil {
		return nil, &SetupError{Channel: cs.channel, Op: "create", Err: err}
	}
	cs.log.Info("created spreadsheet", slog.String("spreadsheet_id", ss.ID))
	if err := cs.remote.ShareAnyone(ctx, ss.ID); err != nil {
		return nil, &SetupError{Channel: cs.channel, Op: "share", Err: err}
	}
	if err := cs.writeHeader(ctx, ss, HeaderFor(cs.settings.Site, cs.settings.Game)); err != nil {
		return nil, &SetupError{Channel: cs.channel, Op: "header", Err: err}
	}
	return ss, nil
}

// writeHeader writes and bolds the header row of both worksheets.
func (cs *ChannelSheet) writeHeader(ctx context.Context, ss *gateway.Spreadsheet, h HeaderSpec) error {
	cells, vals := h.padded()
	ranges := make([]gateway.ValueRange, 0, len(Worksheets))
	ids := make([]int64, 0, len(Worksheets))
	for _, title := range Worksheets {
		ranges = append(ranges, gateway.ValueRange{Range: gateway.A1(title, cells), Values: [][]any{vals}})
		if ws, ok := ss.Worksheet(title); ok {
			ids = append(ids, ws.ID)
		}
	}
	if err := cs.remote.UpdateValues(ctx, ss.ID, ranges); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cs.remote.BoldHeader(ctx, ss.ID, ids, h.Width()); err != nil {
		return fmt.Errorf("bold header: %w", err)
	}
	return nil
}

// Channel is the channel name, which is also the spreadsheet title.
func (cs *ChannelSheet) Channel() string { return cs.channel }

// URL is the shareable link to the spreadsheet.
func (cs *ChannelSheet) URL() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.ss.URL
}

func (cs *ChannelSheet) SpreadsheetID() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.ss.ID
}

func (cs *ChannelSheet) Settings() Settings {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.settings
}

// CurrentSettings renders the settings for chat.
func (cs *ChannelSheet) CurrentSettings() string { return cs.Settings().String() }

// Header is the header for the current site and game.
func (cs *ChannelSheet) Header() HeaderSpec {
	s := cs.Settings()
	return HeaderFor(s.Site, s.Game)
}

// Users returns a snapshot of the row cache.
func (cs *ChannelSheet) Users() map[string]Location {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return maps.Clone(cs.rows)
}

// RefreshUsers replaces the row cache with what column A of each worksheet
// holds now.
func (cs *ChannelSheet) RefreshUsers(ctx context.Context) error {
	cs.mu.Lock()
	id := cs.ss.ID
	cs.mu.Unlock()

	ranges := make([]string, len(Worksheets))
	for i, title := range Worksheets {
		ranges[i] = gateway.A1(title, "A:A")
	}
	cols, err := cs.remote.ReadColumns(ctx, id, ranges)
	if err != nil {
		return fmt.Errorf("read handles: %w", err)
	}
	rows := make(map[string]Location)
	for i, col := range cols {
		if i >= len(Worksheets) || len(col) < 2 {
			continue
		}
		for n, handle := range col[1:] {
			if handle == "" {
				continue
			}
			rows[strings.ToLower(handle)] = Location{Worksheet: Worksheets[i], Row: n + 2}
		}
	}

	cs.mu.Lock()
	cs.rows = rows
	cs.mu.Unlock()
	cs.log.Debug("refreshed users", slog.Int("users", len(rows)))
	return nil
}

// rowValues builds a data row truncated to the header width.
func rowValues(s Settings, h HeaderSpec, e Entry) []any {
	vals := []any{e.Handle, e.Name, e.Rating, s.Format.Formatted(e.Name, e.Rating)}
	if e.Peak != nil {
		var rating, date any = "-", "-"
		if e.Peak.Rating != 0 {
			rating = e.Peak.Rating
		}
		if e.Peak.Date != "" {
			date = e.Peak.Date
		}
		vals = append(vals, rating, date)
	}
	if len(vals) > h.Width() {
		vals = vals[:h.Width()]
	}
	return vals
}

// AddData writes an entry to Subs when privileged, otherwise to Not subs.
// A user already on the target worksheet has their row overwritten in
// place; a user on the other worksheet is deleted there and appended here.
func (cs *ChannelSheet) AddData(ctx context.Context, e Entry) (Outcome, error) {
	key := strings.ToLower(e.Handle)
	target := NotSubsWorksheet
	if e.Privileged {
		target = SubsWorksheet
	}

	cs.mu.Lock()
	settings := cs.settings
	ss := cs.ss
	prev, known := cs.rows[key]
	cs.mu.Unlock()

	h := HeaderFor(settings.Site, settings.Game)
	vals := rowValues(settings, h, e)

	switch {
	case !known:
		if err := cs.appendRow(ctx, ss.ID, target, key, vals); err != nil {
			return 0, err
		}
		return OutcomeNew, nil

	case prev.Worksheet == target:
		vr := gateway.ValueRange{Range: gateway.A1(target, h.RowRange(prev.Row)), Values: [][]any{vals}}
		if err := cs.remote.UpdateValues(ctx, ss.ID, []gateway.ValueRange{vr}); err != nil {
			return 0, fmt.Errorf("replace row %d in %s: %w", prev.Row, target, err)
		}
		return OutcomeUpdated, nil

	default:
		ws, ok := ss.Worksheet(prev.Worksheet)
		if !ok {
			return 0, fmt.Errorf("worksheet %q missing", prev.Worksheet)
		}
		if err := cs.remote.DeleteRow(ctx, ss.ID, ws.ID, prev.Row); err != nil {
			return 0, fmt.Errorf("delete row %d in %s: %w", prev.Row, prev.Worksheet, err)
		}
		// rows below prev.Row in the source worksheet are now stale
		if err := cs.appendRow(ctx, ss.ID, target, key, vals); err != nil {
			cs.mu.Lock()
			if cs.rows[key] == prev {
				delete(cs.rows, key)
			}
			cs.mu.Unlock()
			return 0, err
		}
		cs.log.Debug("moved user", slog.String("handle", e.Handle),
			slog.String("from", prev.Worksheet), slog.String("to", target))
		return OutcomeMoved, nil
	}
}

func (cs *ChannelSheet) appendRow(ctx context.Context, id, worksheet, key string, vals []any) error {
	row, err := cs.remote.AppendRow(ctx, id, worksheet, vals)
	if err != nil {
		return fmt.Errorf("append to %s: %w", worksheet, err)
	}
	cs.mu.Lock()
	cs.rows[key] = Location{Worksheet: worksheet, Row: row}
	cs.mu.Unlock()
	return nil
}

// Clear empties both worksheets, resets the row cache and writes the header
// back. A failed header write after a successful clear returns a
// *PartialClearError.
func (cs *ChannelSheet) Clear(ctx context.Context) error {
	cs.mu.Lock()
	ss := cs.ss
	h := HeaderFor(cs.settings.Site, cs.settings.Game)
	cs.mu.Unlock()

	ranges := make([]string, len(Worksheets))
	for i, title := range Worksheets {
		ranges[i] = gateway.A1(title, "")
	}
	if err := cs.remote.ClearValues(ctx, ss.ID, ranges); err != nil {
		return fmt.Errorf("clear worksheets: %w", err)
	}
	cs.mu.Lock()
	cs.rows = make(map[string]Location)
	cs.mu.Unlock()

	if err := cs.writeHeader(ctx, ss, h); err != nil {
		cs.log.Error("worksheets left without header", slog.Any("err", err))
		return &PartialClearError{Channel: cs.channel, Err: err}
	}
	cs.log.Info("cleared spreadsheet")
	return nil
}

// Remove deletes the spreadsheet. The gateway evicts the title from its
// cache whether or not the delete succeeds.
func (cs *ChannelSheet) Remove(ctx context.Context) error {
	id := cs.SpreadsheetID()
	if err := cs.remote.Delete(ctx, id, cs.channel); err != nil {
		return fmt.Errorf("delete spreadsheet %s: %w", id, err)
	}
	cs.mu.Lock()
	cs.rows = make(map[string]Location)
	cs.mu.Unlock()
	cs.log.Info("deleted spreadsheet", slog.String("spreadsheet_id", id))
	return nil
}
