// Package rumble adapts captured GraphQL-shaped comment responses. Role
// flags come from two independent badge lists (comment-level and
// user-level), matched by slug the same way delimited badge lists are.
package rumble

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/identity"
)

// PlaceholderUsername stands in for a comment whose author sub-object is
// missing; the comment itself is still delivered.
const PlaceholderUsername = "anonymous"

// Adapter converts comment responses.
type Adapter struct {
	logger  *slog.Logger
	channel string
}

// New creates a Rumble adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With(slog.String("component", "rumble"))}
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return canonical.PlatformRumble }

// SetChannel overrides the current channel context.
func (a *Adapter) SetChannel(channel string) { a.channel = channel }

type response struct {
	Data *struct {
		Comments []comment `json:"comments"`
		Chat     *struct {
			Comments []comment `json:"comments"`
		} `json:"chat"`
	} `json:"data"`
}

type comment struct {
	ID        any        `json:"id"`
	Text      string     `json:"text"`
	CreatedOn string     `json:"created_on"`
	Badges    []badgeObj `json:"badges"`
	User      *struct {
		Username string     `json:"username"`
		Image    string     `json:"image"`
		Badges   []badgeObj `json:"badges"`
	} `json:"user"`
}

type badgeObj struct {
	Slug string `json:"slug"`
}

// PrepareMessages converts every comment in the response that carries a
// native id. A missing author still yields a message under a placeholder
// username.
func (a *Adapter) PrepareMessages(payload []byte) []canonical.Message {
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil || resp.Data == nil {
		return nil
	}
	comments := resp.Data.Comments
	if len(comments) == 0 && resp.Data.Chat != nil {
		comments = resp.Data.Chat.Comments
	}

	var out []canonical.Message
	for _, c := range comments {
		nativeID := idString(c.ID)
		if nativeID == "" {
			a.logger.Warn("comment without native id, skipping")
			continue
		}
		m := canonical.Message{
			ID:       identity.MessageID(identity.Rumble, nativeID),
			Platform: canonical.PlatformRumble,
			Channel:  a.channel,
			Username: PlaceholderUsername,
			Message:  c.Text,
		}
		if t, err := time.Parse(time.RFC3339, c.CreatedOn); err == nil {
			m.SentAt = t.UnixMilli()
		}
		if c.User != nil {
			if c.User.Username != "" {
				m.Username = c.User.Username
			}
			m.Avatar = c.User.Image
		}

		// Comment-level and user-level badge lists are independent; a flag
		// set by either sticks.
		lists := [][]badgeObj{c.Badges}
		if c.User != nil {
			lists = append(lists, c.User.Badges)
		}
		for _, list := range lists {
			m.IsMod = m.IsMod || hasSlug(list, "moderator")
			m.IsOwner = m.IsOwner || hasSlug(list, "admin")
			m.IsSub = m.IsSub || hasSlug(list, "recurring_subscription") || hasSlug(list, "locals_supporter")
			m.IsVerified = m.IsVerified || hasSlug(list, "verified")
		}
		out = append(out, m)
	}
	return out
}

// hasSlug is the structured-object analogue of a delimited badge-list test:
// exact slug match, empty list matches nothing.
func hasSlug(badges []badgeObj, slug string) bool {
	if slug == "" {
		return false
	}
	for _, b := range badges {
		if b.Slug == slug {
			return true
		}
	}
	return false
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
