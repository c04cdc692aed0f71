/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/riddhimajain08/Codechef/rajamantri"
)

const (
	sendBuffer = 16
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// EventMessage is what clients receive over the websocket.
type EventMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	roomID string
}

// Broadcaster fans room events out to every websocket subscribed to that
// room. Delivery is best effort: a client that cannot keep up is dropped.
type Broadcaster struct {
	cfg *Config

	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func newBroadcaster(cfg *Config) *Broadcaster {
	return &Broadcaster{
		cfg:   cfg,
		rooms: make(map[string]map[*Client]bool),
	}
}

// Notify implements rajamantri.Notifier.
func (b *Broadcaster) Notify(roomID string, ev rajamantri.Event) {
	msg := EventMessage{Type: string(ev.Kind), Data: ev.Payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.rooms[roomID]
	for client := range clients {
		select {
		case client.send <- msg:
		default:
			b.dropLocked(client)
		}
	}

	logf(b.cfg, "GAMES: Sent %s to %d client(s) in %s", ev.Kind, len(clients), roomID)
}

func (b *Broadcaster) register(c *Client, initial any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.rooms[c.roomID]
	if !ok {
		clients = make(map[*Client]bool)
		b.rooms[c.roomID] = clients
	}
	clients[c] = true

	c.send <- initial
}

// subscribe registers c, then confirms its room still exists. If the room
// was reaped in between, c is dropped again and false returned.
func (b *Broadcaster) subscribe(reg *rajamantri.Registry, c *Client, initial any) bool {
	b.register(c, initial)

	if _, err := reg.Membership(c.roomID); err != nil {
		b.unregister(c)
		return false
	}
	return true
}

func (b *Broadcaster) unregister(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.rooms[c.roomID]; ok && clients[c] {
		b.dropLocked(c)
	}
}

// dropLocked assumes b.mu is already held.
func (b *Broadcaster) dropLocked(c *Client) {
	clients := b.rooms[c.roomID]
	delete(clients, c)
	close(c.send)

	if len(clients) == 0 {
		delete(b.rooms, c.roomID)
	}
}

// closeRoom disconnects every client of a room.
func (b *Broadcaster) closeRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.rooms[roomID] {
		b.dropLocked(c)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.rooms {
		for c := range clients {
			b.dropLocked(c)
		}
	}
}

func (b *Broadcaster) clientCount(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.rooms[roomID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveRoomSocket subscribes a websocket to a room's events. The first
// message is the current roster.
func serveRoomSocket(cfg *Config, engine *rajamantri.Engine, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomId")

		m, err := engine.Registry().Membership(roomID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade for %s: %v", roomID, err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, sendBuffer),
			roomID: roomID,
		}

		if b.subscribe(engine.Registry(), client, EventMessage{Type: "room_state", Data: m}) {
			logf(cfg, "GAMES: Client %s subscribed to %s", realIP(r), roomID)
		} else {
			logf(cfg, "GAMES: Client %s refused, %s was removed", realIP(r), roomID)
		}

		go client.writePump()
		client.readPump(b)
	}
}

// readPump only watches for the connection going away; clients talk to the
// game over REST.
func (c *Client) readPump(b *Broadcaster) {
	defer func() {
		b.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
