// Package identity derives the stable message ids used for deduplication.
//
// Every platform gets a fixed namespace UUID; a message id is the UUIDv5 of
// the platform's native event id hashed under that namespace. The same
// (namespace, native id) pair always yields the same id across restarts and
// retries, and identical native ids from different platforms never collide.
package identity

import (
	"github.com/google/uuid"

	"github.com/john/chatfunnel/internal/canonical"
)

// Per-platform namespaces. These are frozen: changing one re-keys every id
// that platform has ever produced and breaks downstream dedup.
var (
	Twitch  = uuid.MustParse("9f2d6d1e-60f3-4f5b-8c07-3a1d4f0b2a71")
	YouTube = uuid.MustParse("4b8a2c90-17de-44e2-9d26-5f9b0c6e8d13")
	Kick    = uuid.MustParse("c5e1f7a2-9b34-4d08-a6c1-2e7d58f0b9c4")
	Rumble  = uuid.MustParse("7d03b8f6-2ca1-49e7-b51d-8e4f6a92c035")
	TikTok  = uuid.MustParse("e8a94d27-5b60-4c13-9f72-0d1c3e6b84a9")
)

var byPlatform = map[string]uuid.UUID{
	canonical.PlatformTwitch:  Twitch,
	canonical.PlatformYouTube: YouTube,
	canonical.PlatformKick:    Kick,
	canonical.PlatformRumble:  Rumble,
	canonical.PlatformTikTok:  TikTok,
}

// MessageID returns the stable id for a native event id under ns. An empty
// native id still yields a stable (namespace-specific) id.
func MessageID(ns uuid.UUID, nativeID string) string {
	return uuid.NewSHA1(ns, []byte(nativeID)).String()
}

// Namespace looks up the namespace for a platform tag.
func Namespace(platform string) (uuid.UUID, bool) {
	ns, ok := byPlatform[platform]
	return ns, ok
}
