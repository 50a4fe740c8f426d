package bot

import (
	"context"
	"log/slog"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// FromPrivateMessage converts an IRC message.
func FromPrivateMessage(msg twitch.PrivateMessage) Message {
	return Message{
		Channel:     msg.Channel,
		UserID:      msg.User.ID,
		Login:       msg.User.Name,
		DisplayName: msg.User.DisplayName,
		Badges:      msg.User.Badges,
		Text:        msg.Message,
	}
}

// NewIRCClient builds the chat connection for the bot account. token may be
// given with or without the "oauth:" prefix.
func NewIRCClient(username, token string) *twitch.Client {
	return twitch.NewClient(username, ircToken(token))
}

func ircToken(token string) string {
	if token == "" || len(token) > 6 && token[:6] == "oauth:" {
		return token
	}
	return "oauth:" + token
}

// SetToken swaps the IRC password used on the next (re)connect.
func SetToken(c *twitch.Client, token string) { c.SetIRCToken(ircToken(token)) }

// Run routes chat messages to the bot and blocks until ctx is done or the
// connection fails for good.
func (b *Bot) Run(ctx context.Context, c *twitch.Client) error {
	c.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.HandleMessage(ctx, FromPrivateMessage(msg))
	})
	c.OnConnect(func() {
		b.log.Info("connected to twitch chat", slog.String("username", b.username))
	})
	c.OnReconnectMessage(func(twitch.ReconnectMessage) {
		b.log.Warn("twitch asked us to reconnect")
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := c.Disconnect(); err != nil {
				b.log.Debug("disconnect", slog.Any("err", err))
			}
		case <-done:
		}
	}()
	err := c.Connect()
	close(done)
	b.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
