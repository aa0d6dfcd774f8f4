package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/voxlabs/vox-core/internal/protocol"
)

// BusOpener talks to a recognition engine living across the message bus:
// open/abort are published as control messages and stream events arrive on a
// per-stream subject.
type BusOpener struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewBusOpener(conn *nats.Conn, log *slog.Logger) *BusOpener {
	return &BusOpener{
		conn: conn,
		log:  log.With(slog.String("component", "recognition-bus")),
	}
}

func (o *BusOpener) Open(ctx context.Context, opts Options, cb Callbacks) (Stream, error) {
	streamID := uuid.NewString()

	st := &busStream{
		opener:   o,
		streamID: streamID,
		cb:       cb,
	}

	subject := fmt.Sprintf("%s.%s", protocol.SubjectRecognitionEventPrefix, streamID)
	sub, err := o.conn.Subscribe(subject, st.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribe recognition events: %w", err)
	}
	st.sub = sub

	msg := protocol.RecognitionOpen{
		StreamID:       streamID,
		Language:       opts.Language,
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
		Timestamp:      time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		_ = sub.Drain()
		return nil, err
	}
	if err := o.conn.Publish(protocol.SubjectRecognitionOpen, data); err != nil {
		_ = sub.Drain()
		return nil, fmt.Errorf("publish recognition open: %w", err)
	}

	return st, nil
}

type busStream struct {
	opener   *BusOpener
	streamID string
	sub      *nats.Subscription

	mu      sync.Mutex
	cb      Callbacks
	aborted bool
}

func (s *busStream) Abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.cb = Callbacks{}
	s.mu.Unlock()

	if s.sub != nil {
		_ = s.sub.Drain()
	}

	msg := protocol.RecognitionAbort{StreamID: s.streamID, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.opener.conn.Publish(protocol.SubjectRecognitionAbort, data); err != nil {
		s.opener.log.Warn("failed to publish recognition abort", slog.String("error", err.Error()))
	}
}

func (s *busStream) handleEvent(msg *nats.Msg) {
	var event protocol.RecognitionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.opener.log.Warn("failed to decode recognition event", slog.String("error", err.Error()))
		return
	}
	if event.StreamID != s.streamID {
		return
	}

	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()

	switch event.Type {
	case "start":
		if cb.Started != nil {
			cb.Started()
		}
	case "chunk":
		if cb.Chunks != nil {
			chunks := make([]Chunk, len(event.Chunks))
			for i, c := range event.Chunks {
				chunks[i] = Chunk{Index: c.Index, Text: c.Text, Final: c.Final}
			}
			cb.Chunks(chunks)
		}
	case "error":
		if cb.Failed != nil {
			cb.Failed(ErrorKind(event.ErrorKind))
		}
	case "end":
		if cb.Ended != nil {
			cb.Ended()
		}
	default:
		s.opener.log.Warn("unknown recognition event type", slog.String("type", event.Type))
	}
}
