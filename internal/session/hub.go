package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/typeid"
)

// EngineFactory builds the engine for a new session.
type EngineFactory func(sessionID string) *engine.Engine

type Room struct {
	sessionID string
	clients   map[string]*Client // clientID -> client
}

func NewRoom(sessionID string) *Room {
	return &Room{
		sessionID: sessionID,
		clients:   make(map[string]*Client),
	}
}

// Hub tracks live sessions and the websocket clients watching them. Every client in a room
// mirrors the same engine.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	rooms      map[string]*Room // sessionID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	newEngine  EngineFactory
}

func NewHub(newEngine EngineFactory) *Hub {
	return &Hub{
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		newEngine:  newEngine,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stop:
			return
		}
	}
}

// Stop closes every session and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.mu.Lock()
		for id, s := range h.sessions {
			s.Close()
			h.closeRoomLocked(id)
		}
		h.sessions = make(map[string]*Session)
		h.mu.Unlock()
	})
}

// Create starts a new session with a fresh engine.
func (h *Hub) Create() *Session {
	id := typeid.NewSessionID()
	eng := h.newEngine(id)
	s := newSession(id, eng)

	eng.SetRenderSink(func(cmds []engine.DrawCommand) {
		// The sink runs on the session goroutine, so reading engine state here is safe.
		s.lastStatus = eng.Status()
		msg, err := renderMessage(id, eng, cmds)
		if err != nil {
			slog.Error("marshal render", "session", id, "error", err)
			return
		}
		h.broadcastToRoom(id, msg, "")
	})
	s.onStatus = func(status string) {
		msg, err := newMessage(TypeStatus, id, 0, StatusPayload{Status: status})
		if err != nil {
			return
		}
		h.broadcastToRoom(id, msg, "")
	}

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	go s.run()

	slog.Info("session created", "session", id)
	return s
}

func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Remove closes the session and disconnects its clients.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
		h.closeRoomLocked(id)
	}
	h.mu.Unlock()

	if ok {
		s.Close()
		slog.Info("session removed", "session", id)
	}
	return ok
}

// Each calls fn for every live session.
func (h *Hub) Each(fn func(*Session)) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	s, ok := h.sessions[client.SessionID]
	if !ok {
		h.mu.Unlock()
		client.Close()
		return
	}
	room, ok := h.rooms[client.SessionID]
	if !ok {
		room = NewRoom(client.SessionID)
		h.rooms[client.SessionID] = room
	}
	room.clients[client.ClientID] = client
	count := len(room.clients)
	h.mu.Unlock()

	welcome, err := newMessage(TypeWelcome, client.SessionID, 0, WelcomePayload{
		SessionID: client.SessionID,
		ClientID:  client.ClientID,
		Clients:   count,
	})
	if err == nil {
		client.Send(welcome)
	}

	// Bring the newcomer up to date. Everyone else in the room gets the same frame.
	s.Go(func(e *engine.Engine) error {
		e.Render()
		return nil
	})

	slog.Info("client joined", "client", client.ClientID, "session", client.SessionID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.Close()

	if len(room.clients) == 0 {
		delete(h.rooms, client.SessionID)
	}
	h.mu.Unlock()

	slog.Info("client left", "client", client.ClientID, "session", client.SessionID)
}

// closeRoomLocked disconnects every client of a session. h.mu must be held.
func (h *Hub) closeRoomLocked(sessionID string) {
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	for _, c := range room.clients {
		c.Close()
	}
	delete(h.rooms, sessionID)
}

func (h *Hub) broadcastToRoom(sessionID string, msg *Message, excludeClientID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	// Sends never block, so they happen under the read lock and cannot race a close.
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			c.sendRaw(data)
		}
	}
}
