// Package remote exchanges document ops with peers over a websocket.
//
// Every frame is a JSON Batch: the ops one peer applied as a unit. A Client
// only moves batches. Applying them is left to the goroutine that owns the
// document, which keeps the tree's single-threaded delivery model intact.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
)

// BufferSize bounds the batches queued in each direction.
const BufferSize = 64

// ErrClosed is returned by Send once the client has stopped.
var ErrClosed = errors.New("remote client closed")

// Settings holds connection timing.
type Settings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	ReconnectTimeout time.Duration
}

// DefaultSettings returns the timing used by mt.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      30 * time.Second,
		PingInterval:     10 * time.Second,
		ReconnectTimeout: 2 * time.Second,
	}
}

// Batch is one frame on the wire.
type Batch struct {
	Origin string        `json:"origin"`
	Ops    []document.Op `json:"ops"`
}

// Client keeps a connection to a hub open, reconnecting until its context
// ends.
type Client struct {
	url      string
	settings Settings
	dialer   *websocket.Dialer
	origin   string

	send      chan Batch
	recv      chan Batch
	done      chan struct{}
	connected atomic.Bool
}

// NewClient creates a client for the websocket at url. Call Run to connect.
func NewClient(url string, settings Settings) *Client {
	return &Client{
		url:      url,
		settings: settings,
		dialer:   &websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout},
		origin:   ulid.Make().String(),
		send:     make(chan Batch, BufferSize),
		recv:     make(chan Batch, BufferSize),
		done:     make(chan struct{}),
	}
}

// Origin identifies this client's batches. Batches carrying it are not
// delivered back.
func (c *Client) Origin() string { return c.origin }

// Connected reports whether a session is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Incoming delivers batches from other peers. It is closed when Run
// returns.
func (c *Client) Incoming() <-chan Batch { return c.recv }

// Send queues ops for publication, blocking while the queue is full.
func (c *Client) Send(ctx context.Context, ops []document.Op) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- Batch{Origin: c.origin, Ops: ops}:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues ops without blocking. It reports false when the queue is
// full or the client has stopped.
func (c *Client) TrySend(ops []document.Op) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- Batch{Origin: c.origin, Ops: ops}:
		return true
	default:
		debug.Log("remote: send queue full, dropping %d ops", len(ops))
		return false
	}
}

// Run connects and serves sessions until ctx is done. Connection failures
// are retried after ReconnectTimeout.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	// readLoop is the only sender and returns before session does.
	defer close(c.recv)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		debug.Log("remote: session with %s ended: %v", c.url, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.settings.ReconnectTimeout):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.connected.Store(true)
	defer c.connected.Store(false)
	debug.Log("remote: connected to %s as %s", c.url, c.origin)

	// Unblocks ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	writeErr := make(chan error, 1)
	go func() {
		defer cancel()
		writeErr <- c.writeLoop(ctx, ws)
	}()

	err = c.readLoop(ctx, ws)
	cancel()
	if werr := <-writeErr; err == nil {
		err = werr
	}
	return err
}

func (c *Client) writeLoop(ctx context.Context, ws *websocket.Conn) error {
	ping := time.NewTicker(c.settings.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-c.send:
			data, err := json.Marshal(batch)
			if err != nil {
				debug.Log("remote: dropping unencodable batch: %v", err)
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ping.C:
			deadline := time.Now().Add(c.settings.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn) error {
	extend := func() { ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout)) }
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		extend()
		if kind != websocket.TextMessage {
			continue
		}
		var batch Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			debug.Log("remote: ignoring malformed batch: %v", err)
			continue
		}
		if batch.Origin == c.origin || len(batch.Ops) == 0 {
			continue
		}
		select {
		case c.recv <- batch:
		case <-ctx.Done():
			return nil
		}
	}
}

// Apply executes a received batch on the document. It must run on the
// goroutine that owns doc.
func Apply(doc *document.Document, b Batch) error {
	metrics.RemoteOps.Add(int64(len(b.Ops)))
	if err := doc.ApplyAll(b.Ops); err != nil {
		return fmt.Errorf("batch from %s: %w", b.Origin, err)
	}
	return nil
}
