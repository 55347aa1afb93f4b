package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/chatfunnel/internal/canonical"
)

func TestRecordArtifact(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 10, 60, 100, nil)

	require.NoError(t, r.RecordArtifact("tiktok", "00000000  de ad be ef"))
	require.NoError(t, r.RecordArtifact("tiktok", "00000000  ca fe"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "same-day dumps append to one file")
	assert.True(t, strings.HasPrefix(entries[0].Name(), "tiktok_frames_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".dump"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "de ad be ef")
	assert.Contains(t, string(data), "ca fe")
}

func TestRecorderWritesStreams(t *testing.T) {
	dir := t.TempDir()
	// Buffer size 1 flushes every record immediately.
	r := New(dir, 1, 60, 100, nil)

	msgs := make(chan canonical.Message, 4)
	subs := make(chan canonical.SubscriptionEvent, 4)
	retracts := make(chan string, 4)
	files := make(chan string, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Start(ctx, msgs, subs, retracts, files)
	}()

	msgs <- canonical.Message{ID: "m1", Platform: "twitch", Channel: "chan", Username: "U", Message: "hi"}
	subs <- canonical.SubscriptionEvent{ID: "s1", Gifted: true, Buyer: "B", Count: 2, Value: 9.98}
	retracts <- "gone-id"

	// Give the recorder loop a moment to drain before shutting down.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	var streams []string
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		streams = append(streams, e.Name())
	}
	assert.Condition(t, func() bool { return hasPrefixIn(streams, "twitch_chan_") })
	assert.Condition(t, func() bool { return hasPrefixIn(streams, "subs_events_") })
	assert.Condition(t, func() bool { return hasPrefixIn(streams, "retract_ids_") })

	// Rotated-on-shutdown files were queued for upload.
	assert.Len(t, files, 3)

	// Spot-check one line decodes back into a record.
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "twitch_chan_") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		defer f.Close()
		scanner := bufio.NewScanner(f)
		require.True(t, scanner.Scan())
		var rec struct {
			Message *canonical.Message `json:"message"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		require.NotNil(t, rec.Message)
		assert.Equal(t, "m1", rec.Message.ID)
	}
}

func hasPrefixIn(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
