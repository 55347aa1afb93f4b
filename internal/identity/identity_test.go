package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDDeterministic(t *testing.T) {
	ids := []string{"abc123", "", "0", "ChwKGkNMb0I0TlC0consistency", "日本語-id", string(rune(0xFFFD))}
	for _, nativeID := range ids {
		a := MessageID(Twitch, nativeID)
		b := MessageID(Twitch, nativeID)
		assert.Equal(t, a, b, "same pair must always produce the same id (native id %q)", nativeID)
		assert.NotEmpty(t, a)
	}
}

func TestMessageIDNamespaceSeparation(t *testing.T) {
	namespaces := map[string]struct {
		a, b string
	}{
		"twitch vs youtube": {MessageID(Twitch, "abc123"), MessageID(YouTube, "abc123")},
		"kick vs rumble":    {MessageID(Kick, "abc123"), MessageID(Rumble, "abc123")},
		"rumble vs tiktok":  {MessageID(Rumble, ""), MessageID(TikTok, "")},
	}
	for name, pair := range namespaces {
		assert.NotEqual(t, pair.a, pair.b, name)
	}
}

func TestNamespaceLookup(t *testing.T) {
	ns, ok := Namespace("twitch")
	require.True(t, ok)
	assert.Equal(t, Twitch, ns)

	_, ok = Namespace("myspace")
	assert.False(t, ok)
}
