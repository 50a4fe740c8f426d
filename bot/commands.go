package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/battlesheet/gateway"
	"github.com/onnwee/battlesheet/rating"
	"github.com/onnwee/battlesheet/sheet"
	"github.com/onnwee/battlesheet/telemetry"
)

const tracerName = "battlesheet/bot"

// Message is one chat message as the dispatcher sees it.
type Message struct {
	Channel     string
	UserID      string
	Login       string
	DisplayName string
	Badges      map[string]int
	Text        string
}

func (m Message) name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Login
}

func (m Message) has(badge string) bool {
	_, ok := m.Badges[badge]
	return ok
}

// subscriber reports sub status; founders count as subs.
func (m Message) subscriber() bool { return m.has("subscriber") || m.has("founder") }

func (m Message) moderator() bool { return m.has("moderator") || m.has("broadcaster") }

// request is one command invocation.
type request struct {
	msg  Message
	name string
	args []string
	log  *slog.Logger
}

type handler func(b *Bot, ctx context.Context, r *request) error

type command struct {
	run handler
	// public commands skip the moderator check.
	public bool
	// botChannel commands only work in the bot's own channel.
	botChannel bool
}

var commands = map[string]command{
	"apply": {run: (*Bot).apply, public: true},
	"set":   {run: (*Bot).set},
	"clear": {run: (*Bot).clear},
	"link":  {run: (*Bot).link},
	"help":  {run: (*Bot).help},
	"leave": {run: (*Bot).leave},
	"join":  {run: (*Bot).joinCmd, public: true, botChannel: true},
}

// usage lists the public commands in the order help shows them.
var usage = []string{
	"apply chess_name - Add user and chess stats to spreadsheet",
	"set setting value - Change settings. Use without arguments for current settings",
	"clear - Reset the spreadsheet",
	"link - Post link to the spreadsheet",
	"help - Provide some assistance",
	"leave - Make the bot leave the channel",
}

// HelpText lists the public commands with the given prefix.
func HelpText(prefix string) string {
	parts := make([]string, len(usage))
	for i, u := range usage {
		parts[i] = prefix + u
	}
	return "Commands: " + strings.Join(parts, "; ")
}

func (b *Bot) isOwner(m Message) bool { return b.ownerID != "" && m.UserID == b.ownerID }

// HandleMessage parses m and, if it is a command the sender may run, runs it
// on a new goroutine.
func (b *Bot) HandleMessage(ctx context.Context, m Message) {
	login := strings.ToLower(m.Login)
	if login == b.username || slices.Contains(b.blacklist, login) {
		return
	}
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, b.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(text, b.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	cmd, ok := commands[name]
	if !ok {
		return
	}
	m.Channel = strings.ToLower(strings.TrimPrefix(m.Channel, "#"))

	corr := uuid.NewString()
	ctx = telemetry.WithCorrelation(ctx, corr)
	log := telemetry.LoggerWithCorr(ctx, b.log).With(
		slog.String("channel", m.Channel),
		slog.String("command", name),
		slog.String("user", login),
	)
	if cmd.botChannel && m.Channel != b.username {
		log.Debug("command only works in the bot channel")
		return
	}
	if !cmd.public && !m.moderator() && !b.isOwner(m) {
		log.Debug("permission denied", slog.String("text", text))
		return
	}

	r := &request{msg: m, name: name, args: fields[1:], log: log}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx, cmd, r)
	}()
}

func (b *Bot) run(ctx context.Context, cmd command, r *request) {
	telemetry.IncCommand(r.name)
	ctx, span := telemetry.StartSpan(ctx, tracerName, "command."+r.name,
		attribute.String("channel", r.msg.Channel))
	defer span.End()

	err := cmd.run(b, ctx, r)
	if err == nil {
		telemetry.SetSpanSuccess(span)
		return
	}
	telemetry.RecordError(span, err)
	b.report(r, err)
}

// report turns a command error into a chat reply.
func (b *Bot) report(r *request, err error) {
	var (
		invalid   *sheet.InvalidValueError
		unknown   *sheet.UnknownSettingError
		transient *gateway.TransientError
	)
	switch {
	case errors.As(err, &invalid):
		b.reply(r, err.Error())
	case errors.As(err, &unknown):
		b.reply(r, b.settingsHelp())
	case errors.Is(err, ErrNoSheet):
		r.log.Warn("no sheet for channel", slog.Any("err", err))
		b.chat.Say(r.msg.Channel, "No sheet found for this channel. If I just joined or rebooted, try again soon!")
	case errors.As(err, &transient):
		r.log.Warn("spreadsheet service unavailable", slog.Any("err", err), slog.Any("args", r.args))
		b.reply(r, "The spreadsheet service isn't answering right now, sorry! Try again in a minute.")
	default:
		r.log.Error("command failed", slog.Any("err", err), slog.Any("args", r.args))
		b.chat.Say(r.msg.Channel, "Unexpected error! Who knows what happened, tbh.")
	}
}

func (b *Bot) reply(r *request, text string) {
	b.chat.Say(r.msg.Channel, fmt.Sprintf("@%s: %s", r.msg.name(), text))
}

// private sends text to the sender by whisper, or in channel in dev mode or
// when whispering fails.
func (b *Bot) private(ctx context.Context, r *request, text string) {
	if b.whisper != nil && !b.devMode {
		err := b.whisper.Whisper(ctx, r.msg.UserID, text)
		if err == nil {
			return
		}
		r.log.Warn("whisper failed; replying in channel", slog.Any("err", err))
	}
	b.reply(r, text)
}

func (b *Bot) settingsHelp() string {
	return strings.ReplaceAll(sheet.SettingsHelp, "?", b.prefix)
}

func (b *Bot) apply(ctx context.Context, r *request) error {
	if len(r.args) == 0 {
		b.reply(r, b.prefix+"apply username <-- Type this, using your own chess username, to apply!")
		return nil
	}
	handle := r.args[0]
	if handle == "username" {
		return nil
	}
	cs, err := b.Sheet(r.msg.Channel)
	if err != nil {
		return err
	}
	settings := cs.Settings()
	client, ok := b.raters[string(settings.Site)]
	if !ok {
		return fmt.Errorf("no rating client for %s", settings.Site)
	}

	res, err := client.Lookup(ctx, handle, string(settings.Game))
	var apiErr *rating.APIError
	switch {
	case errors.Is(err, rating.ErrUserNotFound):
		b.private(ctx, r, fmt.Sprintf("Lookup failed, couldn't find player %q on %s!", handle, settings.Site))
		return nil
	case errors.As(err, &apiErr):
		r.log.Error("rating lookup failed",
			slog.String("site", string(settings.Site)),
			slog.String("game", string(settings.Game)),
			slog.String("handle", handle),
			slog.Any("err", err))
		b.private(ctx, r, apiErr.Error())
		return nil
	case err != nil:
		return fmt.Errorf("lookup %s on %s: %w", handle, settings.Site, err)
	}

	entry := sheet.Entry{
		Handle:     r.msg.name(),
		Name:       res.Name,
		Rating:     res.Rating,
		Privileged: r.msg.subscriber(),
	}
	if res.Peak != nil {
		entry.Peak = &sheet.Peak{Rating: res.Peak.Rating, Date: res.Peak.Date}
	}
	outcome, err := cs.AddData(ctx, entry)
	if err != nil {
		return err
	}
	telemetry.IncApply(outcome.String())
	r.log.Info("applied", slog.String("outcome", outcome.String()), slog.String("handle", res.Name), slog.Int("rating", res.Rating))

	status := "non-subscriber"
	if entry.Privileged {
		status = "subscriber"
	}
	var msg string
	switch outcome {
	case sheet.OutcomeNew:
		msg = fmt.Sprintf("Thanks for applying! %s (%d) is now on the sheet, marked as %s.", res.Name, res.Rating, status)
	case sheet.OutcomeUpdated:
		msg = fmt.Sprintf("Your details were updated to: %s (%d).", res.Name, res.Rating)
	case sheet.OutcomeMoved:
		msg = fmt.Sprintf("Your sub status has changed! %s (%d) is now marked as a %s.", res.Name, res.Rating, status)
	}
	b.private(ctx, r, msg)
	return nil
}

func (b *Bot) set(ctx context.Context, r *request) error {
	cs, err := b.Sheet(r.msg.Channel)
	if err != nil {
		return err
	}
	switch len(r.args) {
	case 0:
		b.reply(r, "Current settings: "+cs.CurrentSettings())
		return nil
	case 1:
		b.chat.Say(r.msg.Channel, b.settingsHelp())
		return nil
	}
	name, err := sheet.ParseSettingName(r.args[0])
	if err != nil {
		return err
	}
	changed, err := cs.Set(ctx, name, r.args[1])
	if err != nil {
		return err
	}
	if !changed {
		b.reply(r, "Nothing to change. Current settings: "+cs.CurrentSettings())
		return nil
	}
	s := cs.Settings()
	value := map[sheet.SettingName]string{
		sheet.SettingSite:   string(s.Site),
		sheet.SettingGame:   string(s.Game),
		sheet.SettingFormat: string(s.Format),
	}[name]
	if err := b.store.UpdateSetting(ctx, r.msg.Channel, string(name), value); err != nil {
		return fmt.Errorf("persist %s=%s: %w", name, value, err)
	}
	r.log.Info("setting changed", slog.String("setting", string(name)), slog.String("value", value))
	b.reply(r, "Settings updated: "+cs.CurrentSettings())
	return nil
}

func (b *Bot) clear(ctx context.Context, r *request) error {
	cs, err := b.Sheet(r.msg.Channel)
	if err != nil {
		return err
	}
	var partial *sheet.PartialClearError
	if err := cs.Clear(ctx); errors.As(err, &partial) {
		r.log.Warn("sheet cleared without header", slog.Any("err", err))
		b.reply(r, "The sheet is cleared, but the header couldn't be written. Changing a setting will restore it.")
		return nil
	} else if err != nil {
		return err
	}
	b.reply(r, "The sheet is cleared.")
	return nil
}

func (b *Bot) link(ctx context.Context, r *request) error {
	cs, err := b.Sheet(r.msg.Channel)
	if err != nil {
		return err
	}
	b.private(ctx, r, fmt.Sprintf("Find the sheet for channel '%s' at %s", r.msg.Channel, cs.URL()))
	return nil
}

func (b *Bot) help(_ context.Context, r *request) error {
	b.chat.Say(r.msg.Channel, HelpText(b.prefix))
	return nil
}

func (b *Bot) leave(ctx context.Context, r *request) error {
	target := r.msg.Channel
	if len(r.args) > 0 && b.isOwner(r.msg) {
		target = strings.ToLower(strings.TrimPrefix(r.args[0], "#"))
	}
	if !b.joined(target) {
		b.reply(r, fmt.Sprintf("I'm not in %s.", target))
		return nil
	}
	r.log.Info("leaving channel", slog.String("target", target))
	if target != r.msg.Channel {
		b.reply(r, fmt.Sprintf("Leaving %s.", target))
	}
	return b.Leave(ctx, target)
}

func (b *Bot) joinCmd(ctx context.Context, r *request) error {
	target := strings.ToLower(r.msg.Login)
	if len(r.args) > 0 {
		named := strings.ToLower(strings.TrimPrefix(r.args[0], "#"))
		if named != target && !b.isOwner(r.msg) {
			b.reply(r, "That doesn't look like a channel you mod or own. "+
				"If I'm wrong, try again later or ask the bot owner to send the bot there.")
			return nil
		}
		target = named
	}
	if b.joined(target) {
		b.reply(r, fmt.Sprintf("I'm already in %s!", target))
		return nil
	}
	if b.users != nil {
		if _, err := b.users.GetUser(ctx, target); err != nil {
			r.log.Warn("channel check failed", slog.String("target", target), slog.Any("err", err))
			b.reply(r, fmt.Sprintf("Couldn't find a channel called %s.", target))
			return nil
		}
	}
	b.chat.Say(r.msg.Channel, fmt.Sprintf("Heading to /%s!", target))
	r.log.Info("joining channel", slog.String("target", target))
	if err := b.Join(ctx, target, true); err != nil {
		if errors.Is(err, ErrAlreadyJoined) {
			b.reply(r, fmt.Sprintf("I'm already in %s!", target))
			return nil
		}
		return fmt.Errorf("join %s: %w", target, err)
	}
	return nil
}
