// Package twitch adapts captured Twitch IRC traffic. Payloads are raw
// protocol text, possibly several lines per socket frame; each line is
// tokenized and dispatched on its verb.
package twitch

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/john/chatfunnel/internal/badge"
	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/identity"
	"github.com/john/chatfunnel/internal/irc"
)

// Adapter holds the per-instance context for one captured Twitch session.
// The current channel is the only state, updated through JOIN frames.
type Adapter struct {
	logger  *slog.Logger
	channel string
}

// New creates a Twitch adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With(slog.String("component", "twitch"))}
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return canonical.PlatformTwitch }

// SetChannel overrides the current channel context.
func (a *Adapter) SetChannel(channel string) {
	a.channel = strings.TrimPrefix(channel, "#")
}

// PrepareMessages frames the payload into protocol lines and converts
// chat posts into canonical messages. Keep-alives and state/negotiation
// verbs produce nothing.
func (a *Adapter) PrepareMessages(payload []byte) []canonical.Message {
	var out []canonical.Message
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := irc.Tokenize(line)
		switch f.Command {
		case "PING", "PONG":
			// Keep-alive, nothing to record.
		case "PRIVMSG":
			if m, ok := a.chatPost(f); ok {
				out = append(out, m)
			}
		case "JOIN":
			if len(f.Params) > 0 {
				a.SetChannel(f.Params[0])
			}
		case "CLEARCHAT", "CLEARMSG", "USERNOTICE", "NOTICE",
			"ROOMSTATE", "USERSTATE", "GLOBALUSERSTATE", "CAP", "RECONNECT",
			"001", "002", "003", "004", "353", "366", "372", "375", "376":
			a.logger.Debug("state frame", slog.String("command", f.Command))
		default:
			a.logger.Debug("unhandled frame", slog.String("command", f.Command))
		}
	}
	return out
}

func (a *Adapter) chatPost(f irc.Frame) (canonical.Message, bool) {
	nativeID := f.Tags["id"]
	if nativeID == "" {
		a.logger.Warn("chat post without native id, dropping",
			slog.String("channel", a.channel))
		return canonical.Message{}, false
	}

	channel := a.channel
	if len(f.Params) > 0 {
		channel = strings.TrimPrefix(f.Params[0], "#")
	}

	username := f.Tags["display-name"]
	if username == "" {
		username = f.Nick()
	}

	body := f.Trailing
	// /me messages arrive CTCP-wrapped.
	if strings.HasPrefix(body, "\x01ACTION ") && strings.HasSuffix(body, "\x01") {
		body = strings.TrimSuffix(strings.TrimPrefix(body, "\x01ACTION "), "\x01")
	}

	badges := f.Tags["badges"]
	m := canonical.Message{
		ID:         identity.MessageID(identity.Twitch, nativeID),
		Platform:   canonical.PlatformTwitch,
		Channel:    channel,
		Username:   username,
		Message:    body,
		IsMod:      f.Tags["mod"] == "1" || badge.Has(badges, "moderator"),
		IsSub:      f.Tags["subscriber"] == "1" || badge.Has(badges, "subscriber"),
		IsOwner:    badge.Has(badges, "broadcaster"),
		IsVerified: badge.Has(badges, "partner"),
	}

	if ts := f.Tags["tmi-sent-ts"]; ts != "" {
		if millis, err := strconv.ParseInt(ts, 10, 64); err == nil && millis > 0 {
			m.SentAt = millis
		}
	}
	if color := f.Tags["color"]; color != "" {
		m.SetExtra("color", color)
	}
	if bits := f.Tags["bits"]; bits != "" {
		if n, err := strconv.Atoi(bits); err == nil && n > 0 {
			m.SetExtra("bits", n)
		}
	}
	if emotes := f.Tags["emotes"]; emotes != "" {
		m.SetExtra("emotes", emotes)
	}
	return m, true
}
