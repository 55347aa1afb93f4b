// Package kick adapts captured Kick pusher traffic. Frames arrive as
// `{"event": "...", "data": ...}` envelopes where data is usually a
// double-encoded JSON string; both encodings are accepted.
package kick

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/john/chatfunnel/internal/adapter"
	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/identity"
)

// Adapter converts Kick chat events. The channel slug is the only held
// context, set when the capture collaborator reports the active chatroom.
type Adapter struct {
	logger  *slog.Logger
	channel string
}

// New creates a Kick adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With(slog.String("component", "kick"))}
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return canonical.PlatformKick }

// SetChannel overrides the current channel context.
func (a *Adapter) SetChannel(channel string) { a.channel = channel }

type pusherEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chatMessageEvent struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Sender    struct {
		ID       any    `json:"id"`
		Username string `json:"username"`
		Identity struct {
			Badges []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"badges"`
		} `json:"identity"`
	} `json:"sender"`
}

type deletedMessageEvent struct {
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

// PrepareMessages converts chat-message events into canonical messages.
// Frames that are not chat messages (connection events, deletions, gift
// notifications) produce nothing here.
func (a *Adapter) PrepareMessages(payload []byte) []canonical.Message {
	data, event, ok := unwrap(payload)
	if !ok || !strings.HasSuffix(event, "ChatMessageEvent") {
		return nil
	}

	var ev chatMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.logger.Debug("malformed chat message event", slog.Any("err", err))
		return nil
	}
	if ev.ID == "" {
		a.logger.Warn("chat message without native id, dropping")
		return nil
	}

	m := canonical.Message{
		ID:       identity.MessageID(identity.Kick, ev.ID),
		Platform: canonical.PlatformKick,
		Channel:  a.channel,
		Username: ev.Sender.Username,
		Message:  ev.Content,
	}
	if id := asString(ev.Sender.ID); id != "" {
		m.SetExtra("sender_id", id)
	}
	if t, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
		m.SentAt = t.UnixMilli()
	}
	for _, b := range ev.Sender.Identity.Badges {
		switch b.Type {
		case "moderator":
			m.IsMod = true
		case "broadcaster":
			m.IsOwner = true
		case "subscriber", "founder":
			m.IsSub = true
		case "verified":
			m.IsVerified = true
		}
	}
	return []canonical.Message{m}
}

// PrepareRetractions yields canonical ids for deleted messages.
func (a *Adapter) PrepareRetractions(payload []byte) []string {
	data, event, ok := unwrap(payload)
	if !ok || !strings.HasSuffix(event, "MessageDeletedEvent") {
		return nil
	}
	var ev deletedMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Message.ID == "" {
		return nil
	}
	return []string{identity.MessageID(identity.Kick, ev.Message.ID)}
}

type subscriptionBatch struct {
	Events []subscriptionEvent `json:"events"`
	Users  []struct {
		ID       any    `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"profile_pic"`
	} `json:"users"`
}

type subscriptionEvent struct {
	ID       string  `json:"id"`
	GifterID any     `json:"gifter_id"`
	UserID   any     `json:"user_id"`
	Username string  `json:"username"`
	Quantity int     `json:"quantity"`
	Months   int     `json:"months"`
	Amount   float64 `json:"amount"`
}

// PrepareSubscriptions converts a batch of subscription/gift events. The
// result is positional: events whose buyer is absent from the directory
// yield a nil slot and a diagnostic naming the missing native id. When users
// is nil the directory embedded in the batch (if any) is used instead.
func (a *Adapter) PrepareSubscriptions(payload []byte, users adapter.UserDirectory) []*canonical.SubscriptionEvent {
	var batch subscriptionBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		a.logger.Debug("malformed subscription batch", slog.Any("err", err))
		return nil
	}
	if len(batch.Events) == 0 {
		return nil
	}

	if users == nil {
		users = make(adapter.UserDirectory, len(batch.Users))
		for _, u := range batch.Users {
			if id := asString(u.ID); id != "" {
				users[id] = adapter.UserProfile{ID: id, Username: u.Username, Avatar: u.Avatar}
			}
		}
	}

	out := make([]*canonical.SubscriptionEvent, 0, len(batch.Events))
	for _, ev := range batch.Events {
		out = append(out, a.subscription(ev, users))
	}
	return out
}

func (a *Adapter) subscription(ev subscriptionEvent, users adapter.UserDirectory) *canonical.SubscriptionEvent {
	rec := &canonical.SubscriptionEvent{
		ID:    identity.MessageID(identity.Kick, ev.ID),
		Value: ev.Amount,
	}

	if gifterID := asString(ev.GifterID); gifterID != "" {
		buyer, ok := users[gifterID]
		if !ok {
			a.logger.Warn("gift subscription references unknown buyer",
				slog.String("gifter_id", gifterID))
			return nil
		}
		rec.Gifted = true
		rec.Buyer = buyer.Username
		rec.Count = ev.Quantity
		if rec.Count == 0 {
			rec.Count = 1
		}
		return rec
	}

	// Plain (self) subscription.
	rec.Buyer = ev.Username
	if rec.Buyer == "" {
		if u, ok := users[asString(ev.UserID)]; ok {
			rec.Buyer = u.Username
		}
	}
	rec.Count = 1
	if ev.Months > 1 {
		rec.Count = ev.Months
	}
	return rec
}

// unwrap peels the pusher envelope and, where needed, the double-encoded
// data string. A payload that is not an envelope is returned as-is with an
// empty event name.
func unwrap(payload []byte) (data json.RawMessage, event string, ok bool) {
	var env pusherEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, "", false
	}
	if env.Event == "" {
		return payload, "", true
	}
	data = env.Data
	// data may itself be a JSON-encoded string holding the real object.
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = json.RawMessage(inner)
	}
	return data, env.Event, true
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
