// Package dispatch is the trust boundary where external bytes pick their
// handler. Control envelopes route by their type discriminator; capture
// records route to the platform adapter matching their origin. Everything
// that does not route is dropped, loudly only in verbose mode.
package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/john/chatfunnel/internal/adapter"
	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/capture"
	"github.com/john/chatfunnel/internal/telemetry"
)

// HandlerFunc handles one control envelope's data, passed through exactly as
// received (including JSON null). Handlers must accept anything.
type HandlerFunc func(data json.RawMessage)

// Output receives everything the pipeline produces. Channel sends block
// until the consumer keeps up; each inbound payload produces a small,
// bounded amount of output.
type Output struct {
	Messages      chan<- canonical.Message
	Subscriptions chan<- canonical.SubscriptionEvent
	Retractions   chan<- string
}

// Dispatcher routes envelopes and capture records.
type Dispatcher struct {
	registry *adapter.Registry
	out      Output
	logger   *slog.Logger
	verbose  bool
	handlers map[string]HandlerFunc
}

// New creates a dispatcher over the given adapter registry.
func New(registry *adapter.Registry, out Output, logger *slog.Logger, verbose bool) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		registry: registry,
		out:      out,
		logger:   logger.With(slog.String("component", "dispatch")),
		verbose:  verbose,
	}
	d.handlers = map[string]HandlerFunc{
		"inject_message": d.injectMessage,
	}
	return d
}

// RegisterHandler adds or replaces the handler for an envelope type.
func (d *Dispatcher) RegisterHandler(typ string, h HandlerFunc) {
	d.handlers[typ] = h
}

// OnEnvelope parses raw as {type, data} and routes it. Unparsable input or
// a missing discriminator is silently ignored (logged only in verbose
// mode); unrecognized discriminators are logged and dropped.
func (d *Dispatcher) OnEnvelope(raw []byte) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		if d.verbose {
			d.logger.Debug("unparsable envelope", slog.Any("err", err))
		}
		d.countEnvelope("invalid")
		return
	}
	if env.Type == "" {
		if d.verbose {
			d.logger.Debug("envelope without type discriminator")
		}
		d.countEnvelope("invalid")
		return
	}
	d.countEnvelope(env.Type)

	h, ok := d.handlers[env.Type]
	if !ok {
		d.logger.Info("unrecognized envelope type, dropping", slog.String("type", env.Type))
		return
	}
	h(env.Data)
}

// OnRecord routes one capture record to its platform adapter.
func (d *Dispatcher) OnRecord(rec capture.Record) {
	platform := rec.Platform
	if platform == "" {
		platform = platformFromOrigin(rec.Origin)
	}
	if platform == "" {
		if d.verbose {
			d.logger.Debug("capture record from unknown origin", slog.String("origin", rec.Origin))
		}
		return
	}
	if telemetry.FramesCaptured != nil {
		telemetry.FramesCaptured.WithLabelValues(platform, rec.Kind).Inc()
	}

	a, ok := d.registry.Lookup(platform)
	if !ok {
		d.logger.Info("no adapter for platform", slog.String("platform", platform))
		return
	}

	payload := rawPayload(rec.Data, rec.Encoding)

	for _, m := range a.PrepareMessages(payload) {
		if telemetry.MessagesNormalized != nil {
			telemetry.MessagesNormalized.WithLabelValues(platform).Inc()
		}
		d.deliver(m)
	}

	if rp, ok := a.(adapter.RetractionPreparer); ok {
		for _, id := range rp.PrepareRetractions(payload) {
			if d.out.Retractions != nil {
				d.out.Retractions <- id
			}
		}
	}

	if sp, ok := a.(adapter.SubscriptionPreparer); ok {
		for _, sub := range sp.PrepareSubscriptions(payload, nil) {
			if sub == nil {
				telemetry.Drop(platform, "unresolved_reference")
				continue
			}
			if telemetry.SubscriptionEvents != nil {
				telemetry.SubscriptionEvents.WithLabelValues(platform).Inc()
			}
			if d.out.Subscriptions != nil {
				d.out.Subscriptions <- *sub
			}
		}
	}
}

// injectMessage forwards an operator-supplied canonical message unchanged.
func (d *Dispatcher) injectMessage(data json.RawMessage) {
	var m canonical.Message
	if len(data) == 0 || string(data) == "null" {
		// Accepted but there is nothing to forward.
		return
	}
	if err := json.Unmarshal(data, &m); err != nil {
		d.logger.Warn("inject_message with undecodable data", slog.Any("err", err))
		return
	}
	d.deliver(m)
}

func (d *Dispatcher) deliver(m canonical.Message) {
	if d.out.Messages != nil {
		d.out.Messages <- m
	}
}

func (d *Dispatcher) countEnvelope(typ string) {
	if telemetry.EnvelopesSeen != nil {
		telemetry.EnvelopesSeen.WithLabelValues(typ).Inc()
	}
}

// rawPayload unwraps record data for the adapters: a JSON string becomes its
// literal text (the capture layer quotes raw socket lines), anything else is
// passed through as raw JSON. A base64-marked string is decoded back to the
// original bytes; if it does not decode, the string text is used as-is.
func rawPayload(data json.RawMessage, encoding string) []byte {
	if len(data) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return data
	}
	if encoding == capture.EncodingBase64 {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b
		}
	}
	return []byte(s)
}

var originPlatforms = map[string]string{
	"twitch.tv":   canonical.PlatformTwitch,
	"youtube.com": canonical.PlatformYouTube,
	"kick.com":    canonical.PlatformKick,
	"rumble.com":  canonical.PlatformRumble,
	"tiktok.com":  canonical.PlatformTikTok,
}

func platformFromOrigin(origin string) string {
	origin = strings.ToLower(origin)
	for host, platform := range originPlatforms {
		if strings.Contains(origin, host) {
			return platform
		}
	}
	return ""
}
