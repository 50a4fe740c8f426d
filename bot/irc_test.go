package bot

import (
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

func TestFromPrivateMessage(t *testing.T) {
	msg := twitch.PrivateMessage{
		User: twitch.User{
			ID:          "77",
			Name:        "alice",
			DisplayName: "Alice",
			Badges:      map[string]int{"subscriber": 12},
		},
		Channel: "somechan",
		Message: "?apply magnus",
	}
	m := FromPrivateMessage(msg)
	if m.UserID != "77" || m.Login != "alice" || m.name() != "Alice" || m.Channel != "somechan" || m.Text != "?apply magnus" {
		t.Errorf("message = %+v", m)
	}
	if !m.subscriber() || m.moderator() {
		t.Errorf("badges misread: %v", m.Badges)
	}
}

func TestIRCToken(t *testing.T) {
	tests := map[string]string{
		"abc":       "oauth:abc",
		"oauth:abc": "oauth:abc",
		"":          "",
	}
	for in, want := range tests {
		if got := ircToken(in); got != want {
			t.Errorf("ircToken(%q) = %q, want %q", in, got, want)
		}
	}
}
