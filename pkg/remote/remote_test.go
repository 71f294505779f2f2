package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.PingInterval = 50 * time.Millisecond
	s.ReconnectTimeout = 20 * time.Millisecond
	return s
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startClient(t *testing.T, ctx context.Context, url string) *Client {
	t.Helper()
	c := NewClient(url, testSettings())
	go c.Run(ctx)
	waitFor(t, "connection", c.Connected)
	return c
}

func receive(t *testing.T, c *Client) Batch {
	t.Helper()
	select {
	case b := <-c.Incoming():
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a batch")
	}
	return Batch{}
}

func TestForwardedEditsReachPeer(t *testing.T) {
	hub := NewHub(time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startClient(t, ctx, wsURL(srv))
	b := startClient(t, ctx, wsURL(srv))
	waitFor(t, "both peers", func() bool { return hub.Peers() == 2 })

	initial := document.Object{{Key: "name", Value: "x"}, {Key: "tags", Value: []any{"a"}}}
	local := NewForwarder(document.MustNew(initial), a)
	peerDoc := document.MustNew(initial)
	peerTree := tree.New(peerDoc)

	if err := local.Set(modelpath.New("count"), 3); err != nil {
		t.Fatal(err)
	}
	if err := local.Rename(modelpath.New("name"), "title"); err != nil {
		t.Fatal(err)
	}
	if err := local.Insert(modelpath.New("tags"), 1, "b"); err != nil {
		t.Fatal(err)
	}

	for applied := 0; applied < 3; {
		batch := receive(t, b)
		if batch.Origin != a.Origin() {
			t.Errorf("expected origin %s, got %s", a.Origin(), batch.Origin)
		}
		if err := Apply(peerDoc, batch); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		applied += len(batch.Ops)
	}

	for _, p := range []modelpath.Path{
		modelpath.New("count"),
		modelpath.New("title"),
		modelpath.New("tags", 1),
	} {
		if _, err := peerTree.NodeAtPath(p); err != nil {
			t.Errorf("expected peer tree to mirror %s, got %v", p, err)
		}
	}
	if _, err := peerTree.NodeAtPath(modelpath.New("name")); err == nil {
		t.Error("expected the old key gone on the peer")
	}
}

func TestSenderDoesNotReceiveOwnBatch(t *testing.T) {
	hub := NewHub(time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startClient(t, ctx, wsURL(srv))
	b := startClient(t, ctx, wsURL(srv))
	waitFor(t, "both peers", func() bool { return hub.Peers() == 2 })

	if err := a.Send(ctx, []document.Op{document.NewOp(document.OpRemove, modelpath.New("x"))}); err != nil {
		t.Fatal(err)
	}
	receive(t, b)

	select {
	case got := <-a.Incoming():
		t.Errorf("expected no echo to the sender, got %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFailedEditIsNotPublished(t *testing.T) {
	c := NewClient("ws://unused", testSettings())
	f := NewForwarder(document.MustNew(document.Object{}), c)

	if err := f.Remove(modelpath.New("missing")); err == nil {
		t.Fatal("expected removing a missing key to fail")
	}
	if n := len(c.send); n != 0 {
		t.Errorf("expected nothing queued, got %d", n)
	}
	if err := f.Set(modelpath.New("k"), "v"); err != nil {
		t.Fatal(err)
	}
	if n := len(c.send); n != 1 {
		t.Errorf("expected one queued batch, got %d", n)
	}
}

func TestClientReconnects(t *testing.T) {
	hub := NewHub(time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := startClient(t, ctx, wsURL(srv))

	waitFor(t, "peer", func() bool { return hub.Peers() == 1 })
	hub.Disconnect()
	if hub.Peers() != 0 {
		t.Fatalf("expected no peers after Disconnect, got %d", hub.Peers())
	}
	waitFor(t, "reconnect", func() bool { return hub.Peers() == 1 && c.Connected() })
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient("ws://127.0.0.1:1/none", testSettings())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expected Run to return after cancel")
	}
	if err := c.Send(context.Background(), nil); err != ErrClosed {
		t.Errorf("expected ErrClosed after Run returned, got %v", err)
	}
	select {
	case _, ok := <-c.Incoming():
		if ok {
			t.Error("expected no batch after Run returned")
		}
	case <-time.After(time.Second):
		t.Error("expected Incoming closed after Run returned")
	}
}
