package canonical

// Platform identifiers used throughout the pipeline.
const (
	PlatformTwitch  = "twitch"
	PlatformYouTube = "youtube"
	PlatformKick    = "kick"
	PlatformRumble  = "rumble"
	PlatformTikTok  = "tiktok"
)

// Message is the unified chat record every adapter converges on, regardless
// of the wire format the platform speaks (Twitch IRC tags, YouTube action
// trees, Kick pusher events, ...). Adapters populate only the fields their
// platform can supply; everything else stays at its zero value.
type Message struct {
	ID       string `json:"id"`                 // stable, namespace-salted (see internal/identity)
	Platform string `json:"platform"`           // one of the Platform* constants
	Channel  string `json:"channel,omitempty"`  // channel name or slug
	Username string `json:"username"`           // author's display name
	Avatar   string `json:"avatar,omitempty"`   // author's avatar URI
	Message  string `json:"message"`            // body text, may embed emote placeholders
	SentAt   int64  `json:"sent_at,omitempty"`  // epoch milliseconds, 0 when unknown
	Amount   float64 `json:"amount,omitempty"`  // monetary tip, present iff Currency set
	Currency string `json:"currency,omitempty"` // ISO 4217 code

	IsVerified    bool `json:"is_verified,omitempty"`
	IsSub         bool `json:"is_sub,omitempty"`
	IsMod         bool `json:"is_mod,omitempty"`
	IsOwner       bool `json:"is_owner,omitempty"`
	IsPlaceholder bool `json:"is_placeholder,omitempty"`

	Emojis []Emote        `json:"emojis,omitempty"` // first-appearance order
	Extra  map[string]any `json:"extra,omitempty"`  // adapter-specific leftovers
}

// Emote resolves one placeholder token embedded in Message.Message.
type Emote struct {
	Placeholder string `json:"placeholder"`
	URL         string `json:"url"`
	Name        string `json:"name"`
}

// SetExtra stores an adapter-specific field, allocating the bag on first use.
func (m *Message) SetExtra(key string, value any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
}

// SubscriptionEvent records monetary subscription activity on platforms that
// distinguish it from ordinary chat (gift subs, memberships).
type SubscriptionEvent struct {
	ID     string  `json:"id"`
	Gifted bool    `json:"gifted"`
	Buyer  string  `json:"buyer"`
	Count  int     `json:"count"`
	Value  float64 `json:"value"`
}
