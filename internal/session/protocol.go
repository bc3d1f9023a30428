package session

import (
	"encoding/json"

	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// Client to server
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"
	TypeKeyDown     = "key.down"
	TypeViewZoom    = "view.zoom"

	// Server to client
	TypeWelcome = "welcome"
	TypeRender  = "render"
	TypeStatus  = "status"
	TypeError   = "error"
)

// PointerPayload carries a pointer sample in device pixels relative to the canvas.
type PointerPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Shift bool    `json:"shift,omitempty"`
	Alt   bool    `json:"alt,omitempty"`
	Ctrl  bool    `json:"ctrl,omitempty"`
	Meta  bool    `json:"meta,omitempty"`
}

func (p PointerPayload) Modifiers() engine.Modifiers {
	return modifiers(p.Shift, p.Alt, p.Ctrl, p.Meta)
}

type KeyPayload struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

func (p KeyPayload) Modifiers() engine.Modifiers {
	return modifiers(p.Shift, p.Alt, p.Ctrl, p.Meta)
}

type ZoomPayload struct {
	Zoom float64 `json:"zoom"`
}

type WelcomePayload struct {
	SessionID string `json:"sessionId"`
	ClientID  string `json:"clientId"`
	Clients   int    `json:"clients"`
}

// RenderPayload is sent after every redraw, including each drag sample.
type RenderPayload struct {
	Commands  []engine.DrawCommand `json:"commands"`
	Status    string               `json:"status"`
	Selection int                  `json:"selection"`
	PageIndex int                  `json:"pageIndex"`
	Pages     int                  `json:"pages"`
	Zoom      float64              `json:"zoom"`
	Mode      string               `json:"mode"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func modifiers(shift, alt, ctrl, meta bool) engine.Modifiers {
	var m engine.Modifiers
	if shift {
		m |= engine.ModShift
	}
	if alt {
		m |= engine.ModAlt
	}
	if ctrl {
		m |= engine.ModCtrl
	}
	if meta {
		m |= engine.ModMeta
	}
	return m
}

func newMessage(typ, sessionID string, seq int64, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, SessionID: sessionID, Seq: seq, Payload: data}, nil
}

func renderMessage(sessionID string, e *engine.Engine, cmds []engine.DrawCommand) (*Message, error) {
	return newMessage(TypeRender, sessionID, 0, RenderPayload{
		Commands:  cmds,
		Status:    e.Status(),
		Selection: e.Selection(),
		PageIndex: e.PageIndex(),
		Pages:     len(e.Pages()),
		Zoom:      e.Zoom(),
		Mode:      e.DragMode().String(),
	})
}
