// Package tiktok is a discovery adapter for an opaque, not yet
// reverse-engineered binary frame protocol. It deliberately emits no
// canonical messages; its whole contract is to never crash and to leave a
// forensic artifact (a hex/ASCII dump) behind for every captured frame.
package tiktok

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/john/chatfunnel/internal/canonical"
)

// ArtifactRecorder receives the dump of each captured frame.
type ArtifactRecorder interface {
	RecordArtifact(platform string, artifact string) error
}

// Adapter dumps opaque frames.
type Adapter struct {
	logger   *slog.Logger
	recorder ArtifactRecorder
}

// New creates a TikTok discovery adapter. rec may be nil, in which case
// dumps only reach the debug log.
func New(logger *slog.Logger, rec ArtifactRecorder) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With(slog.String("component", "tiktok")), recorder: rec}
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return canonical.PlatformTikTok }

// PrepareMessages records a dump of the frame and emits nothing.
func (a *Adapter) PrepareMessages(payload []byte) []canonical.Message {
	if len(payload) == 0 {
		return nil
	}
	dump := Dump(payload)
	if a.recorder != nil {
		if err := a.recorder.RecordArtifact(canonical.PlatformTikTok, dump); err != nil {
			a.logger.Warn("record frame dump", slog.Any("err", err))
		}
	}
	a.logger.Debug("captured opaque frame", slog.Int("bytes", len(payload)))
	return nil
}

// Dump renders b as 16-byte rows of offset, hex and ASCII approximation.
func Dump(b []byte) string {
	var sb strings.Builder
	for off := 0; off < len(b); off += 16 {
		row := b[off:min(off+16, len(b))]
		fmt.Fprintf(&sb, "%08x  ", off)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&sb, "%02x ", row[i])
			} else {
				sb.WriteString("   ")
			}
			if i == 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}
