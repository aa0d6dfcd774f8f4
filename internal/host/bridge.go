// Package host bridges the engine to host pages over the bus. Inbound
// focus, blur, edit and viewport messages maintain shadow surfaces and drive
// the engine; outbound engine notifications are published for the host
// chrome to render.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/voxlabs/vox-core/internal/bus"
	"github.com/voxlabs/vox-core/internal/engine"
	"github.com/voxlabs/vox-core/internal/protocol"
	"github.com/voxlabs/vox-core/internal/surface"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// shadow is a host surface mirrored locally. Both surface kinds satisfy it.
type shadow interface {
	surface.Target
	Focus()
	Blur()
	Detach()
	SetBounds(surface.Rect)
	SetVisible(bool)
	HostSet(text string, selStart, selEnd int)
}

type Bridge struct {
	bus    *bus.Client
	engine *engine.Engine
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	shadows map[string]shadow
	focused string
	subs    []*nats.Subscription
	ready   bool
}

func NewBridge(parent context.Context, busClient *bus.Client, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(parent)
	b := &Bridge{
		bus:     busClient,
		log:     logger.With(slog.String("component", "host-bridge")),
		ctx:     ctx,
		cancel:  cancel,
		shadows: make(map[string]shadow),
	}
	b.initMetrics()
	return b
}

// AttachEngine wires the engine after construction; the bridge is also the
// engine's notifier, so the two reference each other. Must be called before
// Start.
func (b *Bridge) AttachEngine(eng *engine.Engine) {
	b.engine = eng
}

func (b *Bridge) initMetrics() {
	meter := otel.Meter("github.com/voxlabs/vox-core/host")
	gauge, err := meter.Int64ObservableGauge("vox.host.surfaces",
		metric.WithDescription("Shadow surfaces currently tracked"))
	if err != nil {
		b.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return
	}
	_, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		b.mu.Lock()
		n := len(b.shadows)
		b.mu.Unlock()
		obs.ObserveInt64(gauge, int64(n))
		return nil
	}, gauge)
	if err != nil {
		b.log.Warn("failed to register metrics callback", slog.String("error", err.Error()))
	}
}

func (b *Bridge) Start() error {
	if b.engine == nil {
		return fmt.Errorf("host bridge started without an engine")
	}
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectHostFocus:    b.handleFocus,
		protocol.SubjectHostBlur:     b.handleBlur,
		protocol.SubjectHostEdit:     b.handleEdit,
		protocol.SubjectHostViewport: b.handleViewport,
	}
	for subject, handler := range handlers {
		sub, err := b.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	return nil
}

func (b *Bridge) Close() {
	b.cancel()
	for _, sub := range b.subs {
		_ = sub.Drain()
	}
}

func (b *Bridge) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Bridge) handleFocus(msg *nats.Msg) {
	var focus protocol.HostFocus
	if err := json.Unmarshal(msg.Data, &focus); err != nil {
		b.log.Warn("failed to decode focus message", slogError(err))
		return
	}
	if focus.TargetID == "" {
		return
	}

	b.mu.Lock()
	sh, ok := b.shadows[focus.TargetID]
	if !ok {
		sh = b.newShadowLocked(focus)
		b.shadows[focus.TargetID] = sh
	}
	if prev := b.focused; prev != "" && prev != focus.TargetID {
		if old, ok := b.shadows[prev]; ok {
			old.Blur()
		}
	}
	b.focused = focus.TargetID
	b.mu.Unlock()

	sh.HostSet(focus.Text, focus.SelStart, focus.SelEnd)
	sh.SetBounds(surface.Rect(focus.Rect))
	sh.Focus()
	b.engine.FocusIn(sh, focus.Location)
}

func (b *Bridge) newShadowLocked(focus protocol.HostFocus) shadow {
	if focus.Kind == surface.KindRich.String() {
		return surface.NewRichArea(focus.TargetID)
	}
	f := surface.NewValueField(focus.TargetID)
	f.SetSecret(focus.Secret)
	f.SetReadOnly(focus.ReadOnly)
	f.SetDisabled(focus.Disabled)
	return f
}

func (b *Bridge) handleBlur(msg *nats.Msg) {
	var blur protocol.HostBlur
	if err := json.Unmarshal(msg.Data, &blur); err != nil {
		b.log.Warn("failed to decode blur message", slogError(err))
		return
	}

	b.mu.Lock()
	sh, ok := b.shadows[blur.TargetID]
	if ok && b.focused == blur.TargetID {
		b.focused = ""
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	sh.Blur()
	b.engine.FocusOut()
}

func (b *Bridge) handleEdit(msg *nats.Msg) {
	var edit protocol.HostEdit
	if err := json.Unmarshal(msg.Data, &edit); err != nil {
		b.log.Warn("failed to decode edit message", slogError(err))
		return
	}

	b.mu.Lock()
	sh, ok := b.shadows[edit.TargetID]
	b.mu.Unlock()
	if !ok {
		return
	}
	sh.HostSet(edit.Text, edit.SelStart, edit.SelEnd)
}

func (b *Bridge) handleViewport(msg *nats.Msg) {
	var vp protocol.HostViewport
	if err := json.Unmarshal(msg.Data, &vp); err != nil {
		b.log.Warn("failed to decode viewport message", slogError(err))
		return
	}

	b.mu.Lock()
	sh, ok := b.shadows[b.focused]
	b.mu.Unlock()
	if !ok {
		return
	}
	sh.SetBounds(surface.Rect(vp.Rect))
	b.engine.Reposition()
}

// Notifier half: engine events published for host observers.

func (b *Bridge) SurfaceMutated(sessionID, targetID, text string, selStart, selEnd int) {
	b.publish(protocol.SubjectSurfaceMutated, protocol.SurfaceMutation{
		SessionID: sessionID,
		TargetID:  targetID,
		Text:      text,
		SelStart:  selStart,
		SelEnd:    selEnd,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) MicAccessDenied(location, kind string) {
	b.publish(protocol.SubjectMicDenied, protocol.MicAccessDenied{
		Location:  location,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) IndicatorChanged(state engine.IndicatorState, targetID string, pos engine.Position) {
	b.publish(protocol.SubjectIndicatorState, protocol.IndicatorUpdate{
		State:     string(state),
		TargetID:  targetID,
		Visible:   pos.Visible,
		X:         pos.X,
		Y:         pos.Y,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) TranscriptCommitted(sessionID, targetID, raw, committed string) {
	b.publish(protocol.SubjectTranscriptCommitted, protocol.TranscriptCommitted{
		SessionID: sessionID,
		TargetID:  targetID,
		Raw:       raw,
		Committed: committed,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("failed to marshal outbound message", slog.String("subject", subject), slogError(err))
		return
	}
	if err := b.bus.Conn().Publish(subject, data); err != nil {
		b.log.Warn("failed to publish outbound message", slog.String("subject", subject), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
