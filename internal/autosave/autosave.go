// Package autosave periodically writes changed sessions to the store.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
)

const saveTimeout = 10 * time.Second

// Sessions enumerates live sessions.
type Sessions interface {
	Each(fn func(*session.Session))
}

// Saver saves every session whose document changed since its last autosave.
type Saver struct {
	sessions Sessions
	cron     *cron.Cron

	mu    sync.Mutex
	saved map[string]uint64 // session id -> revision last written
}

// New schedules autosaves with a cron spec such as "@every 30s". Overlapping runs are skipped.
func New(sessions Sessions, schedule string) (*Saver, error) {
	s := &Saver{
		sessions: sessions,
		saved:    make(map[string]uint64),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("autosave schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Saver) Start() {
	s.cron.Start()
}

// Stop waits for a running autosave to finish.
func (s *Saver) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce saves every changed session and reports how many were written.
func (s *Saver) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]bool)
	written := 0
	s.sessions.Each(func(sess *session.Session) {
		live[sess.ID] = true
		last, seen := s.saved[sess.ID]

		saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
		defer cancel()

		var rev uint64
		saved := false
		err := sess.Do(saveCtx, func(e *engine.Engine) error {
			rev = e.Revision()
			if rev == last && (seen || rev == 0) {
				return nil
			}
			if err := e.Persist(saveCtx); err != nil {
				return err
			}
			saved = true
			return nil
		})
		if err != nil {
			slog.Warn("autosave failed", "session", sess.ID, "error", err)
			return
		}
		if saved {
			s.saved[sess.ID] = rev
			written++
		}
	})

	for id := range s.saved {
		if !live[id] {
			delete(s.saved, id)
		}
	}
	if written > 0 {
		slog.Info("autosave", "sessions", written)
	}
	return written
}
