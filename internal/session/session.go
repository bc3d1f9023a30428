package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

var ErrClosed = errors.New("session closed")

type op struct {
	fn   func(*engine.Engine) error
	done chan error // nil for fire-and-forget
}

// Session owns one engine and the goroutine that is allowed to touch it. Every access from
// HTTP handlers, websocket clients, autosave and background decodes goes through Do or Go.
type Session struct {
	ID string

	engine *engine.Engine
	ops    chan op
	closed chan struct{}
	once   sync.Once

	// lastStatus is only touched on the loop goroutine.
	lastStatus string
	onStatus   func(status string)
}

func newSession(id string, eng *engine.Engine) *Session {
	return &Session{
		ID:     id,
		engine: eng,
		ops:    make(chan op, 64),
		closed: make(chan struct{}),
	}
}

// run executes queued operations one at a time until Close.
func (s *Session) run() {
	for {
		select {
		case o := <-s.ops:
			err := s.exec(o.fn)
			if o.done != nil {
				o.done <- err
			} else if err != nil {
				slog.Warn("background session op failed", "session", s.ID, "error", err)
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) exec(fn func(*engine.Engine) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session op panicked", "session", s.ID, "panic", r)
			err = errors.New("internal error")
		}
	}()
	err = fn(s.engine)
	if st := s.engine.Status(); st != s.lastStatus {
		s.lastStatus = st
		if s.onStatus != nil {
			s.onStatus(st)
		}
	}
	return err
}

// Do runs fn on the session goroutine and waits for it.
func (s *Session) Do(ctx context.Context, fn func(*engine.Engine) error) error {
	done := make(chan error, 1)
	select {
	case s.ops <- op{fn: fn, done: done}:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go queues fn without waiting. It is used for results that arrive asynchronously, such as a
// decoded image, which apply to whatever state the session is in when they run.
func (s *Session) Go(fn func(*engine.Engine) error) {
	go func() {
		select {
		case s.ops <- op{fn: fn}:
		case <-s.closed:
		}
	}()
}

// Close stops the loop. Queued operations that have not started are dropped.
func (s *Session) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Done is closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}
