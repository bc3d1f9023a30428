// Package design exposes editing sessions over REST: create and drop sessions, read their
// state and apply panel actions such as add, edit, reorder, pages, presets and undo.
package design

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kcwdesign/kcw/backend-go/internal/auth"
	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
	"github.com/kcwdesign/kcw/backend-go/internal/store"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrBadAction     = errors.New("bad action")
	ErrNotAnImage    = errors.New("object is not an image")
	ErrObjectMissing = errors.New("object not found")
	ErrForbidden     = errors.New("design belongs to another session")
)

// Action names accepted by Service.Apply.
const (
	ActionAdd           = "add"
	ActionSelect        = "select"
	ActionEdit          = "edit"
	ActionDelete        = "delete"
	ActionForward       = "forward"
	ActionBack          = "back"
	ActionUndo          = "undo"
	ActionRedo          = "redo"
	ActionPageAdd       = "page.add"
	ActionPageDuplicate = "page.duplicate"
	ActionPageDelete    = "page.delete"
	ActionPageSelect    = "page.select"
	ActionPreset        = "preset"
	ActionTemplate      = "template"
	ActionNew           = "new"
	ActionZoom          = "zoom"
	ActionSave          = "save"
	ActionLoad          = "load"
)

type Service struct {
	hub    *session.Hub
	tokens *auth.Service
	store  store.Store
}

func NewService(hub *session.Hub, tokens *auth.Service, st store.Store) *Service {
	return &Service{hub: hub, tokens: tokens, store: st}
}

// State is the editor as a client sees it after an action.
type State struct {
	SessionID string               `json:"sessionId"`
	Status    string               `json:"status"`
	PageIndex int                  `json:"pageIndex"`
	Pages     []engine.PageSummary `json:"pages"`
	Selection int                  `json:"selection"`
	Selected  json.RawMessage      `json:"selected,omitempty"`
	Zoom      float64              `json:"zoom"`
	CanUndo   bool                 `json:"canUndo"`
	CanRedo   bool                 `json:"canRedo"`
	Commands  []engine.DrawCommand `json:"commands"`
}

type CreateRequest struct {
	// From opens a stored design under its key. Saves then go back to that key.
	From     string `json:"from,omitempty"`
	Preset   string `json:"preset,omitempty"`
	Template string `json:"template,omitempty"`
}

type Created struct {
	State *State            `json:"state"`
	Auth  *auth.TokenResult `json:"auth"`
}

// Action is one panel command. Only the fields the named action reads are used.
type Action struct {
	Type     string        `json:"type"`
	Kind     document.Kind `json:"kind,omitempty"`
	ID       int           `json:"id,omitempty"`
	Edit     *engine.Edit  `json:"edit,omitempty"`
	Page     int           `json:"page,omitempty"`
	Preset   string        `json:"preset,omitempty"`
	Template string        `json:"template,omitempty"`
	Zoom     float64       `json:"zoom,omitempty"`
}

// Create starts a session and issues its token. A failed setup step tears the session down.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	sess := s.hub.Create()

	state, err := s.do(ctx, sess, func(e *engine.Engine) error {
		if req.From != "" {
			e.SetStore(s.store, req.From)
			if err := e.Load(ctx); err != nil && !errors.Is(err, engine.ErrUnreadableSave) {
				return err
			}
		}
		if req.Preset != "" {
			if err := e.SetPreset(req.Preset); err != nil {
				return err
			}
		}
		if req.Template != "" {
			if err := e.ApplyTemplate(req.Template); err != nil {
				return err
			}
		}
		// Setup is not something to undo.
		e.History().Reset()
		return nil
	})
	if err != nil {
		s.hub.Remove(sess.ID)
		return nil, err
	}

	token, err := s.tokens.IssueToken(sess.ID)
	if err != nil {
		s.hub.Remove(sess.ID)
		return nil, err
	}
	return &Created{State: state, Auth: token}, nil
}

// Close ends a session. Unsaved work is lost.
func (s *Service) Close(id string) error {
	if !s.hub.Remove(id) {
		return ErrNotFound
	}
	return nil
}

func (s *Service) State(ctx context.Context, id string) (*State, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, sess, func(*engine.Engine) error { return nil })
}

// Apply runs one action and returns the resulting state.
func (s *Service) Apply(ctx context.Context, id string, a Action) (*State, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, sess, func(e *engine.Engine) error {
		return apply(ctx, e, a)
	})
}

func apply(ctx context.Context, e *engine.Engine, a Action) error {
	switch a.Type {
	case ActionAdd:
		_, err := e.AddObject(a.Kind)
		return err
	case ActionSelect:
		e.Select(a.ID)
		return nil
	case ActionEdit:
		if a.Edit == nil {
			return fmt.Errorf("%w: edit needs an edit body", ErrBadAction)
		}
		return e.ApplyEdit(*a.Edit)
	case ActionDelete:
		return e.DeleteSelected()
	case ActionForward:
		return e.BringForward()
	case ActionBack:
		return e.SendBack()
	case ActionUndo:
		_, err := e.Undo()
		return err
	case ActionRedo:
		_, err := e.Redo()
		return err
	case ActionPageAdd:
		return e.AddPage()
	case ActionPageDuplicate:
		return e.DuplicatePage()
	case ActionPageDelete:
		return e.DeletePage()
	case ActionPageSelect:
		return e.SelectPage(a.Page)
	case ActionPreset:
		return e.SetPreset(a.Preset)
	case ActionTemplate:
		return e.ApplyTemplate(a.Template)
	case ActionNew:
		return e.NewDocument()
	case ActionZoom:
		e.SetZoom(a.Zoom)
		return nil
	case ActionSave:
		return e.Save(ctx)
	case ActionLoad:
		err := e.Load(ctx)
		if errors.Is(err, engine.ErrUnreadableSave) {
			// The engine already fell back to a fresh document and said so in the status.
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: %q", ErrBadAction, a.Type)
	}
}

// ObjectImage returns the encoded bytes behind an image object on the current page.
func (s *Service) ObjectImage(ctx context.Context, id string, objectID int) ([]byte, string, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, "", err
	}
	var src []byte
	err = sess.Do(ctx, func(e *engine.Engine) error {
		o, _, ok := e.Page().Find(objectID)
		if !ok {
			return ErrObjectMissing
		}
		img, ok := o.(*document.Image)
		if !ok || img.Handle == nil {
			return ErrNotAnImage
		}
		src = append([]byte(nil), img.Handle.Source()...)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return src, http.DetectContentType(src), nil
}

// Saved lists designs in the store.
func (s *Service) Saved(ctx context.Context) ([]store.Entry, error) {
	return s.store.List(ctx)
}

// Forget deletes a stored design. The key must be the session id or the key the session saves
// under.
func (s *Service) Forget(ctx context.Context, sessionID, key string) error {
	allowed := key == sessionID
	if sess, ok := s.hub.Get(sessionID); ok && !allowed {
		err := sess.Do(ctx, func(e *engine.Engine) error {
			allowed = e.StoreKey() == key
			return nil
		})
		if err != nil {
			return err
		}
	}
	if !allowed {
		return ErrForbidden
	}
	return s.store.Delete(ctx, key)
}

// Presets lists the page sizes and templates a client can offer.
func (s *Service) Presets() map[string]any {
	return map[string]any{
		"presets":   document.Presets(),
		"templates": document.Templates(),
	}
}

func (s *Service) get(id string) (*session.Session, error) {
	sess, ok := s.hub.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// do runs fn and snapshots the state in the same turn of the session loop. A rejected action
// still yields the state so the caller can show the status line.
func (s *Service) do(ctx context.Context, sess *session.Session, fn func(*engine.Engine) error) (*State, error) {
	var state *State
	var opErr error
	err := sess.Do(ctx, func(e *engine.Engine) error {
		opErr = fn(e)
		st, err := snapshotState(sess.ID, e)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return state, opErr
	}
	return state, nil
}

func snapshotState(id string, e *engine.Engine) (*State, error) {
	st := &State{
		SessionID: id,
		PageIndex: e.PageIndex(),
		Pages:     e.PageSummaries(),
		Selection: e.Selection(),
		Zoom:      e.Zoom(),
		CanUndo:   e.History().CanUndo(),
		CanRedo:   e.History().CanRedo(),
	}
	// Compile without pushing a frame to websocket clients.
	st.Commands = engine.CompileDrawCommands(e.Page(), e.Selection(), e.Zoom(), e.Measurer())
	st.Status = e.Status()
	if o, ok := e.Selected(); ok {
		data, err := document.MarshalObject(o)
		if err != nil {
			return nil, fmt.Errorf("marshal selection: %w", err)
		}
		st.Selected = data
	}
	return st, nil
}
