package remote

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/modeltree/pkg/debug"
)

// Hub relays every frame a peer sends to all other connected peers.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu    sync.Mutex
	peers map[*peer]struct{}
}

type peer struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Any origin may connect.
func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		peers:        make(map[*peer]struct{}),
	}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Disconnect closes every current peer. The hub keeps accepting new ones.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.send)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Log("remote: upgrade failed: %v", err)
		return
	}
	p := &peer{ws: ws, send: make(chan []byte, BufferSize)}
	h.join(p)
	defer h.leave(p)

	go p.writeLoop(h.writeTimeout)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage {
			h.broadcast(p, data)
		}
	}
}

func (h *Hub) join(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
}

func (h *Hub) leave(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
}

func (h *Hub) broadcast(from *peer, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p == from {
			continue
		}
		select {
		case p.send <- data:
		default:
			debug.Log("remote: peer %s is not keeping up, disconnecting", p.ws.RemoteAddr())
			delete(h.peers, p)
			close(p.send)
		}
	}
}

func (p *peer) writeLoop(timeout time.Duration) {
	defer p.ws.Close()
	for data := range p.send {
		p.ws.SetWriteDeadline(time.Now().Add(timeout))
		if err := p.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	p.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(timeout))
}
