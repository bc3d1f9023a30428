package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

var errBadPayload = errors.New("invalid payload")

// handleMessage applies one client event to the client's session. Replies go only to the
// sender; redraws reach the whole room through the render sink.
func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	s, ok := h.Get(sender.SessionID)
	if !ok {
		h.replyError(sender, msg.Seq, ErrClosed)
		return
	}

	fn, err := inputOp(msg)
	if err != nil {
		slog.Warn("rejected message", "type", msg.Type, "client", sender.ClientID, "error", err)
		h.replyError(sender, msg.Seq, err)
		return
	}

	if err := s.Do(ctx, fn); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.replyError(sender, msg.Seq, err)
	}
}

// inputOp decodes msg into the engine call it stands for.
func inputOp(msg *Message) (func(*engine.Engine) error, error) {
	switch msg.Type {
	case TypePointerDown:
		var p PointerPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return func(e *engine.Engine) error {
			return e.PointerDown(p.X, p.Y, p.Modifiers())
		}, nil

	case TypePointerMove:
		var p PointerPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return func(e *engine.Engine) error {
			e.PointerMove(p.X, p.Y)
			return nil
		}, nil

	case TypePointerUp:
		return func(e *engine.Engine) error {
			e.PointerUp()
			return nil
		}, nil

	case TypeKeyDown:
		var p KeyPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return func(e *engine.Engine) error {
			_, err := e.KeyDown(p.Key, p.Modifiers())
			return err
		}, nil

	case TypeViewZoom:
		var p ZoomPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return func(e *engine.Engine) error {
			e.SetZoom(p.Zoom)
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func decodePayload(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: %w", msg.Type, errBadPayload)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: %w: %v", msg.Type, errBadPayload, err)
	}
	return nil
}

func (h *Hub) replyError(c *Client, seq int64, err error) {
	msg, merr := newMessage(TypeError, c.SessionID, seq, ErrorPayload{Message: err.Error()})
	if merr != nil {
		return
	}
	c.Send(msg)
}
