package push

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/kisschan/monachat-like/internal/log"
)

const sendBuffer = 16

// Broadcaster fans push messages out to connected endpoints.
type Broadcaster interface {
	// BroadcastRoom sends to every endpoint in room. The payload is
	// chosen per endpoint by fn; returning false skips that endpoint.
	BroadcastRoom(room string, fn func(accountID string) (Message, bool))

	// BroadcastAll sends the same message to every connected endpoint.
	BroadcastAll(msg Message)
}

type client struct {
	id        string
	accountID string
	room      string
	sendCh    chan Message
}

// Hub tracks websocket endpoints by room and fans messages out to them.
// A slow endpoint drops frames rather than stalling the broadcast.
type Hub struct {
	room2clients map[string]map[string]*client
	client2room  map[string]string
	clients      map[string]*client
	clientsMux   sync.RWMutex
	logger       *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		room2clients: make(map[string]map[string]*client),
		client2room:  make(map[string]string),
		clients:      make(map[string]*client),
		logger:       logger,
	}
}

// Serve pumps messages to a websocket until the peer disconnects or ctx
// is done. It blocks, callers run it from the connection's handler
// goroutine.
func (h *Hub) Serve(ctx context.Context, accountID, room string, conn *websocket.Conn) {
	c := &client{
		id:        uuid.NewString(),
		accountID: accountID,
		room:      room,
		sendCh:    make(chan Message, sendBuffer),
	}
	h.add(c)
	defer h.remove(c.id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the protocol is one-way; the read side only notices disconnects
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.sendCh:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				h.logger.Debug("Failed to push to client",
					log.String("accountId", accountID),
					log.Error(err))
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.clients[c.id] = c
	h.client2room[c.id] = c.room

	room, ok := h.room2clients[c.room]
	if !ok {
		room = make(map[string]*client)
		h.room2clients[c.room] = room
	}
	room[c.id] = c

	h.logger.Debug("Push client joined",
		log.String("accountId", c.accountID),
		log.String("room", c.room))
}

// Move re-indexes every connection of an account into its new room so
// room fan-out follows the directory immediately.
func (h *Hub) Move(accountID, room string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for id, c := range h.clients {
		if c.accountID != accountID || c.room == room {
			continue
		}
		if old, ok := h.room2clients[c.room]; ok {
			delete(old, id)
			if len(old) == 0 {
				delete(h.room2clients, c.room)
			}
		}
		c.room = room
		h.client2room[id] = room
		dst, ok := h.room2clients[room]
		if !ok {
			dst = make(map[string]*client)
			h.room2clients[room] = dst
		}
		dst[id] = c
	}
}

func (h *Hub) remove(connID string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	roomID, ok := h.client2room[connID]
	if !ok {
		return
	}
	if room, ok := h.room2clients[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.room2clients, roomID)
		}
	}
	delete(h.client2room, connID)
	delete(h.clients, connID)
}

func (h *Hub) roomClients(room string) []*client {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	clients := h.room2clients[room]
	if clients == nil {
		return nil
	}
	out := make([]*client, 0, len(clients))
	for _, c := range clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) allClients() []*client {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) BroadcastRoom(room string, fn func(accountID string) (Message, bool)) {
	for _, c := range h.roomClients(room) {
		msg, ok := fn(c.accountID)
		if !ok {
			continue
		}
		h.send(c, msg)
	}
}

func (h *Hub) BroadcastAll(msg Message) {
	for _, c := range h.allClients() {
		h.send(c, msg)
	}
}

func (h *Hub) send(c *client, msg Message) {
	select {
	case c.sendCh <- msg:
	default:
		h.logger.Warn("Push buffer full, dropping frame",
			log.String("accountId", c.accountID),
			log.String("event", msg.Event))
	}
}
