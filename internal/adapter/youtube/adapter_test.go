package youtube

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/identity"
)

func textItem(id, author string) string {
	return fmt.Sprintf(`{
		"liveChatTextMessageRenderer": {
			"id": %q,
			"authorName": {"simpleText": %q},
			"authorPhoto": {"thumbnails": [{"url": "https://example.com/a.png"}]},
			"timestampUsec": "1700000000123456",
			"message": {"runs": [
				{"text": "hello "},
				{"emoji": {"emojiId": "wave", "shortcuts": [":wave:"], "image": {"thumbnails": [{"url": "https://example.com/wave.png"}]}}},
				{"text": " chat"},
				{"emoji": {"emojiId": "wave", "shortcuts": [":wave:"], "image": {"thumbnails": [{"url": "https://example.com/wave.png"}]}}}
			]}
		}
	}`, id, author)
}

func wrap(items ...string) []byte {
	var actions []string
	for _, it := range items {
		actions = append(actions, fmt.Sprintf(`{"addChatItemAction": {"item": %s}}`, it))
	}
	return []byte(fmt.Sprintf(`{"actions": [%s]}`, strings.Join(actions, ",")))
}

func TestPrepareMessagesTextRuns(t *testing.T) {
	a := New(nil, nil)
	msgs := a.PrepareMessages(wrap(textItem("yt1", "Viewer")))
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, identity.MessageID(identity.YouTube, "yt1"), m.ID)
	assert.Equal(t, canonical.PlatformYouTube, m.Platform)
	assert.Equal(t, "Viewer", m.Username)
	assert.Equal(t, "https://example.com/a.png", m.Avatar)
	assert.Equal(t, "hello :wave: chat:wave:", m.Message)
	assert.Equal(t, int64(1700000000123), m.SentAt)

	// The emoji appears twice but yields one triple, in first-appearance order.
	require.Len(t, m.Emojis, 1)
	assert.Equal(t, canonical.Emote{
		Placeholder: ":wave:",
		URL:         "https://example.com/wave.png",
		Name:        "wave",
	}, m.Emojis[0])
}

func TestPrepareMessagesPaid(t *testing.T) {
	a := New(nil, nil)
	item := `{
		"liveChatPaidMessageRenderer": {
			"id": "paid1",
			"authorName": {"simpleText": "Supporter"},
			"authorPhoto": {"thumbnails": [{"url": "https://example.com/s.png"}]},
			"purchaseAmountText": {"simpleText": "$5.00"},
			"message": {"runs": [{"text": "take my money"}]}
		}
	}`
	msgs := a.PrepareMessages(wrap(item))
	require.Len(t, msgs, 1)
	assert.InDelta(t, 5.0, msgs[0].Amount, 1e-9)
	assert.Equal(t, "USD", msgs[0].Currency)
	assert.Equal(t, "take my money", msgs[0].Message)
}

func TestPrepareMessagesPaidUnparsableAmount(t *testing.T) {
	a := New(nil, nil)
	item := `{
		"liveChatPaidMessageRenderer": {
			"id": "paid2",
			"authorName": {"simpleText": "Supporter"},
			"authorPhoto": {"thumbnails": [{"url": "https://example.com/s.png"}]},
			"purchaseAmountText": {"simpleText": "many thanks"}
		}
	}`
	msgs := a.PrepareMessages(wrap(item))
	require.Len(t, msgs, 1)
	assert.Zero(t, msgs[0].Amount)
	assert.Empty(t, msgs[0].Currency)
}

func TestPrepareMessagesMissingRequiredFields(t *testing.T) {
	a := New(nil, nil)

	noID := `{"liveChatTextMessageRenderer": {"authorName": {"simpleText": "X"}, "authorPhoto": {"thumbnails": [{"url": "u"}]}}}`
	noAuthor := `{"liveChatTextMessageRenderer": {"id": "x", "authorPhoto": {"thumbnails": [{"url": "u"}]}}}`
	noPhoto := `{"liveChatTextMessageRenderer": {"id": "x", "authorName": {"simpleText": "X"}}}`

	assert.Empty(t, a.PrepareMessages(wrap(noID)))
	assert.Empty(t, a.PrepareMessages(wrap(noAuthor)))
	assert.Empty(t, a.PrepareMessages(wrap(noPhoto)))
}

func TestPrepareMessagesPlaceholder(t *testing.T) {
	a := New(nil, nil)
	msgs := a.PrepareMessages(wrap(`{"liveChatPlaceholderItemRenderer": {"id": "ph1"}}`))
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsPlaceholder)
	assert.Equal(t, identity.MessageID(identity.YouTube, "ph1"), msgs[0].ID)
}

func TestPrepareMessagesGiftPurchase(t *testing.T) {
	a := New(nil, nil)
	item := `{
		"liveChatSponsorshipsGiftPurchaseAnnouncementRenderer": {
			"id": "gift1",
			"header": {"liveChatSponsorshipsHeaderRenderer": {
				"authorName": {"simpleText": "Generous"},
				"authorPhoto": {"thumbnails": [{"url": "https://example.com/g.png"}]},
				"primaryText": {"runs": [{"text": "Gifted 5 memberships"}]}
			}}
		}
	}`
	msgs := a.PrepareMessages(wrap(item))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Generous", msgs[0].Username)
	assert.Equal(t, "Gifted 5 memberships", msgs[0].Message)
	assert.Equal(t, "gift_purchase", msgs[0].Extra["event"])
}

func TestPrepareMessagesUnrecognizedShape(t *testing.T) {
	a := New(nil, nil)
	assert.Empty(t, a.PrepareMessages(wrap(`{"somethingNewRenderer": {"id": "x"}}`)))
}

func TestPrepareMessagesContinuationShape(t *testing.T) {
	a := New(nil, nil)
	payload := []byte(fmt.Sprintf(
		`{"continuationContents": {"liveChatContinuation": {"actions": [{"addChatItemAction": {"item": %s}}]}}}`,
		textItem("cont1", "Viewer")))
	msgs := a.PrepareMessages(payload)
	require.Len(t, msgs, 1)
}

func TestPrepareRetractions(t *testing.T) {
	a := New(nil, nil)
	payload := []byte(`{"actions": [
		{"removeChatItemAction": {"targetItemId": "gone1"}},
		{"removeChatItemAction": {}},
		{"addChatItemAction": {"item": {}}}
	]}`)
	ids := a.PrepareRetractions(payload)
	require.Len(t, ids, 1)
	assert.Equal(t, identity.MessageID(identity.YouTube, "gone1"), ids[0])
}

func TestPrepareMessagesNeverPanics(t *testing.T) {
	a := New(nil, nil)
	inputs := [][]byte{
		nil,
		[]byte("null"),
		[]byte("[]"),
		[]byte("{}"),
		[]byte(`{"actions": null}`),
		[]byte(`{"actions": [null, 1, "x", {"addChatItemAction": null}]}`),
		[]byte(`{"actions": [{"addChatItemAction": {"item": {"liveChatTextMessageRenderer": {"id": 5}}}}]}`),
		[]byte(strings.Repeat(`{"actions":[`, 3)),
		[]byte(`{"actions": [{"addChatItemAction": {"item": {"liveChatTextMessageRenderer": {"id": "a", "authorName": {"simpleText": "` + strings.Repeat("x", 100000) + `"}, "authorPhoto": {"thumbnails": [{"url": "u"}]}}}}}]}`),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			a.PrepareMessages(in)
			a.PrepareRetractions(in)
		})
	}
}
