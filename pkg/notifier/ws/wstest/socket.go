// Package wstest provides an in-memory Socket for exercising the registry and
// dispatcher without a network.
package wstest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"hms-notification-service/pkg/notifier/ws"
)

var ErrBroken = errors.New("wstest: broken pipe")

// Socket mirrors ws.Conn: a failed write or ping leaves it no longer open,
// while Closed reports whether its owner called Close.
type Socket struct {
	mu      sync.Mutex
	frames  [][]byte
	pings   int
	closed  bool
	broken  bool
	failing bool
}

func NewSocket() *Socket {
	return &Socket{}
}

func (s *Socket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.broken {
		return ws.ErrSocketClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ws.ErrUnencodable, err)
	}
	if s.failing {
		s.broken = true
		return ErrBroken
	}
	s.frames = append(s.frames, b)
	return nil
}

func (s *Socket) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.broken {
		return ws.ErrSocketClosed
	}
	if s.failing {
		s.broken = true
		return ErrBroken
	}
	s.pings++
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && !s.broken
}

// Fail makes the next write or ping return ErrBroken, like a peer that
// vanished without a close frame.
func (s *Socket) Fail() {
	s.mu.Lock()
	s.failing = true
	s.mu.Unlock()
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Socket) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

// Frames returns every frame written so far, decoded as generic objects.
func (s *Socket) Frames() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.frames))
	for _, b := range s.frames {
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		out = append(out, m)
	}
	return out
}

// FramesOfType returns the frames whose "type" equals t.
func (s *Socket) FramesOfType(t string) []map[string]any {
	var out []map[string]any
	for _, f := range s.Frames() {
		if f["type"] == t {
			out = append(out, f)
		}
	}
	return out
}
