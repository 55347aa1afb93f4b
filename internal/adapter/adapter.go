// Package adapter defines the shared contract every platform adapter
// implements and the registry the dispatcher selects them from.
//
// Adapters are the second line of defense after the dispatcher: the payloads
// they receive crossed the trust boundary as arbitrary bytes, so every
// adapter is total. Malformed, truncated or adversarial input degrades to
// fewer (or zero) messages, never to a panic or an error return.
package adapter

import "github.com/john/chatfunnel/internal/canonical"

// Adapter converts one platform's native payloads into canonical messages.
// Invalid items are filtered out, not surfaced.
type Adapter interface {
	Platform() string
	PrepareMessages(payload []byte) []canonical.Message
}

// SubscriptionPreparer is implemented by adapters whose platform reports
// monetary subscription activity separately from chat. The returned slice is
// positional: an event whose buyer cannot be resolved against the directory
// yields a nil slot (plus a diagnostic naming the missing native id) so
// callers can still correlate slots to input events.
type SubscriptionPreparer interface {
	PrepareSubscriptions(payload []byte, users UserDirectory) []*canonical.SubscriptionEvent
}

// RetractionPreparer is implemented by adapters whose platform signals
// message removal; it yields the canonical ids to retract.
type RetractionPreparer interface {
	PrepareRetractions(payload []byte) []string
}

// UserProfile is one native-user record from a directory supplied alongside
// an event batch.
type UserProfile struct {
	ID       string
	Username string
	Avatar   string
}

// UserDirectory maps native user ids to profiles.
type UserDirectory map[string]UserProfile

// Registry is the platform-keyed adapter table.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters. A later adapter
// with the same platform tag replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Lookup returns the adapter registered for a platform tag.
func (r *Registry) Lookup(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms lists the registered platform tags.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
