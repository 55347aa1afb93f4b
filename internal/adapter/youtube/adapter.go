// Package youtube adapts captured YouTube live-chat action trees. Each
// action carries at most one of several mutually exclusive renderer shapes;
// the adapter maps the shapes it recognizes and skips the rest.
package youtube

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/identity"
	"github.com/john/chatfunnel/internal/money"
	"github.com/john/chatfunnel/internal/rates"
)

// Adapter converts live-chat actions. The rate cache is the only held
// context, used to annotate paid messages with a USD figure when a fresh
// conversion rate happens to be available.
type Adapter struct {
	logger *slog.Logger
	rates  *rates.Cache
}

// New creates a YouTube adapter. rc may be nil, in which case paid messages
// carry only their native currency.
func New(logger *slog.Logger, rc *rates.Cache) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With(slog.String("component", "youtube")), rates: rc}
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return canonical.PlatformYouTube }

type actionTree struct {
	Actions              []action `json:"actions"`
	ContinuationContents *struct {
		LiveChatContinuation struct {
			Actions []action `json:"actions"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

type action struct {
	AddChatItemAction *struct {
		Item chatItem `json:"item"`
	} `json:"addChatItemAction"`
	RemoveChatItemAction *struct {
		TargetItemID string `json:"targetItemId"`
	} `json:"removeChatItemAction"`
}

type chatItem struct {
	Text         *textRenderer         `json:"liveChatTextMessageRenderer"`
	Paid         *paidRenderer         `json:"liveChatPaidMessageRenderer"`
	GiftPurchase *giftPurchaseRenderer `json:"liveChatSponsorshipsGiftPurchaseAnnouncementRenderer"`
	GiftRedeemed *textRenderer         `json:"liveChatSponsorshipsGiftRedemptionAnnouncementRenderer"`
	Placeholder  *struct {
		ID string `json:"id"`
	} `json:"liveChatPlaceholderItemRenderer"`
}

type textRenderer struct {
	ID            string        `json:"id"`
	AuthorName    *simpleText   `json:"authorName"`
	AuthorPhoto   *thumbnails   `json:"authorPhoto"`
	Message       *runs         `json:"message"`
	TimestampUsec string        `json:"timestampUsec"`
	AuthorBadges  []authorBadge `json:"authorBadges"`
}

type paidRenderer struct {
	textRenderer
	PurchaseAmountText *simpleText `json:"purchaseAmountText"`
}

type giftPurchaseRenderer struct {
	ID     string `json:"id"`
	Header *struct {
		Renderer *struct {
			AuthorName  *simpleText `json:"authorName"`
			AuthorPhoto *thumbnails `json:"authorPhoto"`
			PrimaryText *runs       `json:"primaryText"`
		} `json:"liveChatSponsorshipsHeaderRenderer"`
	} `json:"header"`
	TimestampUsec string `json:"timestampUsec"`
}

type simpleText struct {
	SimpleText string `json:"simpleText"`
	Runs       []run  `json:"runs"`
}

func (s *simpleText) text() string {
	if s == nil {
		return ""
	}
	if s.SimpleText != "" {
		return s.SimpleText
	}
	body, _ := assembleRuns(s.Runs)
	return body
}

type runs struct {
	Runs []run `json:"runs"`
}

type run struct {
	Text  string `json:"text"`
	Emoji *struct {
		EmojiID   string     `json:"emojiId"`
		Shortcuts []string   `json:"shortcuts"`
		Image     thumbnails `json:"image"`
	} `json:"emoji"`
}

type thumbnails struct {
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func (t *thumbnails) url() string {
	if t == nil || len(t.Thumbnails) == 0 {
		return ""
	}
	// Last thumbnail is the largest variant.
	return t.Thumbnails[len(t.Thumbnails)-1].URL
}

type authorBadge struct {
	Renderer *struct {
		Icon *struct {
			IconType string `json:"iconType"`
		} `json:"icon"`
		Tooltip string `json:"tooltip"`
	} `json:"liveChatAuthorBadgeRenderer"`
}

// PrepareMessages maps every recognized action to a canonical message.
// Unrecognized shapes and items missing required fields are skipped.
func (a *Adapter) PrepareMessages(payload []byte) []canonical.Message {
	var out []canonical.Message
	for _, act := range decodeActions(payload) {
		if act.AddChatItemAction == nil {
			continue
		}
		item := act.AddChatItemAction.Item
		switch {
		case item.Text != nil:
			if m, ok := a.renderText(item.Text); ok {
				out = append(out, m)
			}
		case item.Paid != nil:
			if m, ok := a.renderPaid(item.Paid); ok {
				out = append(out, m)
			}
		case item.GiftPurchase != nil:
			if m, ok := a.renderGiftPurchase(item.GiftPurchase); ok {
				out = append(out, m)
			}
		case item.GiftRedeemed != nil:
			if m, ok := a.renderText(item.GiftRedeemed); ok {
				m.SetExtra("event", "gift_redeemed")
				out = append(out, m)
			}
		case item.Placeholder != nil:
			if item.Placeholder.ID == "" {
				continue
			}
			out = append(out, canonical.Message{
				ID:            identity.MessageID(identity.YouTube, item.Placeholder.ID),
				Platform:      canonical.PlatformYouTube,
				IsPlaceholder: true,
			})
		default:
			a.logger.Debug("unrecognized chat item shape")
		}
	}
	return out
}

// PrepareRetractions yields canonical ids for removed chat items.
func (a *Adapter) PrepareRetractions(payload []byte) []string {
	var out []string
	for _, act := range decodeActions(payload) {
		if act.RemoveChatItemAction == nil || act.RemoveChatItemAction.TargetItemID == "" {
			continue
		}
		out = append(out, identity.MessageID(identity.YouTube, act.RemoveChatItemAction.TargetItemID))
	}
	return out
}

func decodeActions(payload []byte) []action {
	var tree actionTree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil
	}
	if len(tree.Actions) > 0 {
		return tree.Actions
	}
	if tree.ContinuationContents != nil {
		return tree.ContinuationContents.LiveChatContinuation.Actions
	}
	return nil
}

func (a *Adapter) renderText(r *textRenderer) (canonical.Message, bool) {
	if r.ID == "" || r.AuthorName.text() == "" || r.AuthorPhoto.url() == "" {
		a.logger.Warn("chat item missing required fields, skipping",
			slog.String("native_id", r.ID))
		return canonical.Message{}, false
	}

	var body string
	var emojis []canonical.Emote
	if r.Message != nil {
		body, emojis = assembleRuns(r.Message.Runs)
	}

	m := canonical.Message{
		ID:       identity.MessageID(identity.YouTube, r.ID),
		Platform: canonical.PlatformYouTube,
		Username: r.AuthorName.text(),
		Avatar:   r.AuthorPhoto.url(),
		Message:  body,
		Emojis:   emojis,
		SentAt:   usecToMillis(r.TimestampUsec),
	}
	for _, b := range r.AuthorBadges {
		if b.Renderer == nil || b.Renderer.Icon == nil {
			continue
		}
		switch b.Renderer.Icon.IconType {
		case "MODERATOR":
			m.IsMod = true
		case "OWNER":
			m.IsOwner = true
		case "VERIFIED":
			m.IsVerified = true
		default:
			// Membership badges carry custom icons, the tooltip names them.
			m.IsSub = true
		}
	}
	return m, true
}

func (a *Adapter) renderPaid(r *paidRenderer) (canonical.Message, bool) {
	m, ok := a.renderText(&r.textRenderer)
	if !ok {
		return canonical.Message{}, false
	}
	purchase := r.PurchaseAmountText.text()
	if code, amount, ok := money.Extract(purchase); ok {
		m.Currency = code
		m.Amount = amount
		if a.rates != nil {
			if usd, ok := a.rates.ToUSD(amount, code); ok && code != "USD" {
				m.SetExtra("amount_usd", usd)
			}
		}
	}
	m.SetExtra("purchase_text", purchase)
	return m, true
}

// renderGiftPurchase derives an informational message from a membership gift
// announcement; the purchase itself has no chat body.
func (a *Adapter) renderGiftPurchase(r *giftPurchaseRenderer) (canonical.Message, bool) {
	if r.ID == "" || r.Header == nil || r.Header.Renderer == nil {
		a.logger.Warn("gift purchase missing required fields, skipping",
			slog.String("native_id", r.ID))
		return canonical.Message{}, false
	}
	h := r.Header.Renderer
	if h.AuthorName.text() == "" || h.AuthorPhoto.url() == "" {
		a.logger.Warn("gift purchase missing author, skipping",
			slog.String("native_id", r.ID))
		return canonical.Message{}, false
	}

	body := "gifted memberships"
	if h.PrimaryText != nil {
		if text, _ := assembleRuns(h.PrimaryText.Runs); text != "" {
			body = text
		}
	}
	m := canonical.Message{
		ID:       identity.MessageID(identity.YouTube, r.ID),
		Platform: canonical.PlatformYouTube,
		Username: h.AuthorName.text(),
		Avatar:   h.AuthorPhoto.url(),
		Message:  body,
		SentAt:   usecToMillis(r.TimestampUsec),
	}
	m.SetExtra("event", "gift_purchase")
	return m, true
}

// assembleRuns concatenates a run list into the message body. Emote runs
// contribute a placeholder token to the body and one resolved triple per
// distinct placeholder, in first-appearance order.
func assembleRuns(rs []run) (string, []canonical.Emote) {
	var body string
	var emojis []canonical.Emote
	seen := map[string]bool{}
	for _, r := range rs {
		if r.Emoji == nil {
			body += r.Text
			continue
		}
		placeholder := ""
		if len(r.Emoji.Shortcuts) > 0 {
			placeholder = r.Emoji.Shortcuts[0]
		} else if r.Emoji.EmojiID != "" {
			placeholder = fmt.Sprintf(":%s:", r.Emoji.EmojiID)
		}
		if placeholder == "" {
			continue
		}
		body += placeholder
		if !seen[placeholder] {
			seen[placeholder] = true
			emojis = append(emojis, canonical.Emote{
				Placeholder: placeholder,
				URL:         r.Emoji.Image.url(),
				Name:        r.Emoji.EmojiID,
			})
		}
	}
	return body, emojis
}

func usecToMillis(usec string) int64 {
	n, err := strconv.ParseInt(usec, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n / 1000
}
