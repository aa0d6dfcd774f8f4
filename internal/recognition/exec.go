package recognition

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecOpener runs an external recognizer process per stream. The process
// receives its options via environment variables and emits one JSON event
// per stdout line: {"type":"start"|"chunk"|"error"|"end", ...}.
type ExecOpener struct {
	cmd []string
	log *slog.Logger
}

type execEvent struct {
	Type      string `json:"type"`
	ErrorKind string `json:"error_kind,omitempty"`
	Chunks    []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
		Final bool   `json:"final"`
	} `json:"chunks,omitempty"`
}

func NewExecOpener(command string, log *slog.Logger) (*ExecOpener, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognizer command is empty")
	}
	return &ExecOpener{
		cmd: args,
		log: log.With(slog.String("component", "recognition-exec")),
	}, nil
}

func (o *ExecOpener) Open(ctx context.Context, opts Options, cb Callbacks) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, o.cmd[0], o.cmd[1:]...)
	cmd.Env = append(cmd.Environ(),
		"VOX_RECOGNIZER_LANGUAGE="+opts.Language,
		fmt.Sprintf("VOX_RECOGNIZER_CONTINUOUS=%t", opts.Continuous),
		fmt.Sprintf("VOX_RECOGNIZER_INTERIM=%t", opts.InterimResults),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("recognizer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start recognizer: %w", err)
	}

	st := &execStream{cancel: cancel, cb: cb}

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var event execEvent
			if err := json.Unmarshal(line, &event); err != nil {
				o.log.Warn("failed to decode recognizer event", slog.String("error", err.Error()))
				continue
			}
			st.dispatch(event)
		}
		_ = cmd.Wait()
		st.finish()
	}()

	return st, nil
}

type execStream struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	cb      Callbacks
	aborted bool
	ended   bool
}

func (s *execStream) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.cb = Callbacks{}
	s.mu.Unlock()
	s.cancel()
}

func (s *execStream) dispatch(event execEvent) {
	s.mu.Lock()
	cb := s.cb
	if event.Type == "end" {
		s.ended = true
	}
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
	}
}

// finish delivers an end event if the process exited without one, so a
// crashed recognizer still looks like a natural stream termination.
func (s *execStream) finish() {
	s.mu.Lock()
	cb := s.cb
	done := s.ended || s.aborted
	s.ended = true
	s.mu.Unlock()
	if !done && cb.Ended != nil {
		cb.Ended()
	}
	s.cancel()
}
