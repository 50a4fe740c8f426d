// Package bot is the chat side of battlesheet: it joins channels, parses
// commands, checks permissions, and drives each channel's sheet.
//
// Every command runs on its own goroutine with a correlation id attached to
// its context and logger. Per-channel sheets live in a registry guarded by a
// RWMutex; a command for a channel whose sheet is still opening fails with
// ErrNoSheet.
package bot

//go:generate mockgen -destination=mock_deps_test.go -package=bot . SettingsStore,Whisperer,UserLookup,SpreadsheetLister
//go:generate mockgen -destination=mock_rating_test.go -package=bot github.com/onnwee/battlesheet/rating Client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"sync"

	"github.com/onnwee/battlesheet/db"
	"github.com/onnwee/battlesheet/rating"
	"github.com/onnwee/battlesheet/sheet"
	"github.com/onnwee/battlesheet/telemetry"
	"github.com/onnwee/battlesheet/twitchapi"
)

// ErrNoSheet means the channel has no open sheet, usually because the bot
// just joined or restarted.
var ErrNoSheet = errors.New("no sheet for channel")

// ErrAlreadyJoined is returned by Join for a channel that is open or still
// being opened.
var ErrAlreadyJoined = errors.New("channel already joined")

// Chat is the IRC connection. *twitch.Client implements it.
type Chat interface {
	Say(channel, text string)
	Join(channels ...string)
	Depart(channel string)
}

// Whisperer delivers private replies.
type Whisperer interface {
	Whisper(ctx context.Context, toUserID, message string) error
}

// UserLookup checks that a channel exists before joining it.
type UserLookup interface {
	GetUser(ctx context.Context, login string) (*twitchapi.User, error)
}

// SpreadsheetLister lists every spreadsheet the service account can see.
type SpreadsheetLister interface {
	ListTitles(ctx context.Context) ([]string, error)
}

// SettingsStore persists per-channel settings. *db.SettingsStore implements it.
type SettingsStore interface {
	GetSettings(ctx context.Context, channel string) (db.ChannelSettings, error)
	UpdateSetting(ctx context.Context, channel, field, value string) error
	StoreSpreadsheetID(ctx context.Context, channel, id string) error
	DeleteChannel(ctx context.Context, channel string) error
	AllSettings(ctx context.Context) ([]db.ChannelSettings, error)
}

var greetings = []string{
	"/me Is it a bird, is it a plane, etc.",
	"/me is here!",
	"/me You rang?",
	"/me I'm Winston Wolf. I solve problems.",
	"/me Oh sheet!",
	"/me TO WAR!",
	"/me Fight to the death!",
	"/me Hey, I'm on your side. But also maybe on theirs.",
	"/me *sneaks in*",
}

// Options configures a Bot. Chat, Store, Remote and Raters are required.
type Options struct {
	// Username is the bot's login; its own channel is where ?join works.
	Username string
	// OwnerID is the Twitch user id allowed to run every command anywhere.
	OwnerID   string
	Prefix    string
	DevMode   bool
	Blacklist []string

	Chat    Chat
	Store   SettingsStore
	Remote  sheet.Remote
	Raters  map[string]rating.Client
	Whisper Whisperer
	Users   UserLookup
	Lister  SpreadsheetLister
	Logger  *slog.Logger
}

// Bot dispatches chat commands to channel sheets.
type Bot struct {
	username  string
	ownerID   string
	prefix    string
	devMode   bool
	blacklist []string

	chat    Chat
	store   SettingsStore
	remote  sheet.Remote
	raters  map[string]rating.Client
	whisper Whisperer
	users   UserLookup
	lister  SpreadsheetLister
	log     *slog.Logger

	mu      sync.RWMutex
	sheets  map[string]*sheet.ChannelSheet
	joining map[string]struct{}

	wg sync.WaitGroup
}

func New(opts Options) (*Bot, error) {
	if opts.Chat == nil || opts.Store == nil || opts.Remote == nil || len(opts.Raters) == 0 {
		return nil, errors.New("bot: chat, store, remote and raters are required")
	}
	if opts.Username == "" {
		return nil, errors.New("bot: username is required")
	}
	b := &Bot{
		username: strings.ToLower(opts.Username),
		ownerID:  opts.OwnerID,
		prefix:   opts.Prefix,
		devMode:  opts.DevMode,
		chat:     opts.Chat,
		store:    opts.Store,
		remote:   opts.Remote,
		raters:   opts.Raters,
		whisper:  opts.Whisper,
		users:    opts.Users,
		lister:   opts.Lister,
		log:      opts.Logger,
		sheets:   make(map[string]*sheet.ChannelSheet),
		joining:  make(map[string]struct{}),
	}
	if b.prefix == "" {
		b.prefix = "?"
	}
	for _, u := range opts.Blacklist {
		b.blacklist = append(b.blacklist, strings.ToLower(u))
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b, nil
}

// Sheet returns the open sheet for channel.
func (b *Bot) Sheet(channel string) (*sheet.ChannelSheet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cs, ok := b.sheets[strings.ToLower(channel)]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoSheet, channel)
	}
	return cs, nil
}

// Sheets returns a snapshot of the open sheets keyed by channel.
func (b *Bot) Sheets() map[string]*sheet.ChannelSheet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*sheet.ChannelSheet, len(b.sheets))
	for k, v := range b.sheets {
		out[k] = v
	}
	return out
}

func (b *Bot) joined(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sheets[channel]
	return ok
}

func settingsFrom(cs db.ChannelSettings) sheet.Settings {
	return sheet.Settings{
		Site:          sheet.Site(cs.Site),
		Game:          sheet.Game(cs.Game),
		Format:        sheet.Format(cs.Format),
		SpreadsheetID: cs.SpreadsheetID.String,
	}
}

// Join joins channel, loading or creating its settings row, and opens its
// spreadsheet.
func (b *Bot) Join(ctx context.Context, channel string, greet bool) error {
	channel = strings.ToLower(strings.TrimPrefix(channel, "#"))
	if !b.claimJoin(channel) {
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, channel)
	}
	defer b.releaseJoin(channel)
	settings, err := b.store.GetSettings(ctx, channel)
	if err != nil {
		return fmt.Errorf("load settings for %s: %w", channel, err)
	}
	return b.join(ctx, settings, greet)
}

// claimJoin marks channel as being opened. Only one caller may hold the
// claim, so concurrent joins cannot each create a spreadsheet.
func (b *Bot) claimJoin(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sheets[channel]; ok {
		return false
	}
	if _, ok := b.joining[channel]; ok {
		return false
	}
	b.joining[channel] = struct{}{}
	return true
}

func (b *Bot) releaseJoin(channel string) {
	b.mu.Lock()
	delete(b.joining, channel)
	b.mu.Unlock()
}

func (b *Bot) join(ctx context.Context, stored db.ChannelSettings, greet bool) error {
	channel := stored.Channel
	log := b.log.With(slog.String("channel", channel))
	b.chat.Join(channel)

	cs, err := sheet.Open(ctx, b.remote, channel, settingsFrom(stored), log)
	if err != nil {
		b.chat.Depart(channel)
		return err
	}
	if id := cs.SpreadsheetID(); id != stored.SpreadsheetID.String {
		if err := b.store.StoreSpreadsheetID(ctx, channel, id); err != nil {
			log.Warn("failed to store spreadsheet id", slog.Any("err", err))
		} else {
			log.Debug("stored spreadsheet id", slog.String("spreadsheet_id", id))
		}
	}

	b.mu.Lock()
	b.sheets[channel] = cs
	n := len(b.sheets)
	b.mu.Unlock()
	telemetry.SetChannelsJoined(n)
	log.Info("joined channel", slog.String("url", cs.URL()))

	if greet {
		//nolint:gosec // G404: greeting choice
		b.chat.Say(channel, greetings[rand.Intn(len(greetings))])
	}
	return nil
}

// Leave parts channel, deletes its spreadsheet and forgets its settings.
func (b *Bot) Leave(ctx context.Context, channel string) error {
	channel = strings.ToLower(strings.TrimPrefix(channel, "#"))
	b.chat.Depart(channel)

	b.mu.Lock()
	cs := b.sheets[channel]
	delete(b.sheets, channel)
	n := len(b.sheets)
	b.mu.Unlock()
	telemetry.SetChannelsJoined(n)

	var errs []error
	if cs != nil {
		if err := cs.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove spreadsheet: %w", err))
		}
	}
	if err := b.store.DeleteChannel(ctx, channel); err != nil {
		errs = append(errs, fmt.Errorf("delete settings: %w", err))
	}
	b.log.Info("left channel", slog.String("channel", channel))
	return errors.Join(errs...)
}

// Restore joins the bot's own channel and every stored channel (only the own
// channel in dev mode), then reports spreadsheets no channel uses. A channel
// that fails to open is logged and skipped.
func (b *Bot) Restore(ctx context.Context) error {
	b.chat.Join(b.username)

	var channels []db.ChannelSettings
	if b.devMode {
		cs, err := b.store.GetSettings(ctx, b.username)
		if err != nil {
			return fmt.Errorf("load settings for %s: %w", b.username, err)
		}
		channels = []db.ChannelSettings{cs}
	} else {
		all, err := b.store.AllSettings(ctx)
		if err != nil {
			return fmt.Errorf("load channels: %w", err)
		}
		channels = all
	}
	b.log.Debug("restoring channels", slog.Int("count", len(channels)))
	for _, cs := range channels {
		if err := b.join(ctx, cs, b.devMode); err != nil {
			b.log.Error("failed to join channel", slog.String("channel", cs.Channel), slog.Any("err", err))
		}
	}
	b.reportOrphans(ctx)
	b.log.Info("bot is online", slog.String("username", b.username), slog.Bool("dev_mode", b.devMode))
	return nil
}

// reportOrphans logs spreadsheets owned by the service account that no
// joined channel uses.
func (b *Bot) reportOrphans(ctx context.Context) {
	if b.lister == nil {
		return
	}
	titles, err := b.lister.ListTitles(ctx)
	if err != nil {
		b.log.Warn("failed to list spreadsheets", slog.Any("err", err))
		return
	}
	joined := b.Sheets()
	var orphans []string
	for _, t := range titles {
		if _, ok := joined[strings.ToLower(t)]; !ok {
			orphans = append(orphans, t)
		}
	}
	if len(orphans) > 0 {
		slices.Sort(orphans)
		b.log.Warn("spreadsheets without a channel", slog.Any("titles", orphans))
	}
}

// Wait blocks until every running command has finished.
func (b *Bot) Wait() { b.wg.Wait() }
