package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sorenh/cobuf/astring"
	"github.com/sorenh/cobuf/buffer"
	"github.com/sorenh/cobuf/ident"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestPeersConverge(t *testing.T) {
	serverPeer := New(Opts{Name: "serve"})
	serverBuf := buffer.New("shared.txt")
	serverBuf.AddCollaborator(serverPeer)

	srv := httptest.NewServer(serverPeer.Handler())
	defer srv.Close()

	clientPeer := New(Opts{Name: "dial"})
	clientBuf := buffer.New("shared.txt")
	clientBuf.AddCollaborator(clientPeer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go clientPeer.Dial(ctx, wsURL(srv.URL))

	serverBuf.PushChanges(astring.MakeInsert(ident.NewAllocatorAt(1), ident.Begin, ident.End, "from server "))
	waitFor(t, "server edit on client", func() bool {
		return strings.Contains(clientBuf.ContentSnapshot().Render(), "from server")
	})

	clientBuf.PushChanges(astring.MakeInsert(ident.NewAllocatorAt(2), ident.Begin, ident.End, "from client "))
	waitFor(t, "client edit on server", func() bool {
		return strings.Contains(serverBuf.ContentSnapshot().Render(), "from client")
	})

	waitFor(t, "convergence", func() bool {
		return astring.Equal(serverBuf.ContentSnapshot(), clientBuf.ContentSnapshot())
	})

	cancel()
	serverBuf.Close()
	clientBuf.Close()
}

func TestRelayBetweenClients(t *testing.T) {
	hubPeer := New(Opts{Name: "hub"})
	hubBuf := buffer.New("shared.txt")
	hubBuf.AddCollaborator(hubPeer)

	srv := httptest.NewServer(hubPeer.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bufs []*buffer.Buffer
	for _, name := range []string{"a", "b"} {
		p := New(Opts{Name: name})
		b := buffer.New("shared.txt")
		b.AddCollaborator(p)
		go p.Dial(ctx, wsURL(srv.URL))
		bufs = append(bufs, b)
	}

	bufs[0].PushChanges(astring.MakeInsert(ident.NewAllocatorAt(10), ident.Begin, ident.End, "relayed"))

	// The hub must forward one client's edits to the other.
	waitFor(t, "relay", func() bool {
		return bufs[1].ContentSnapshot().Render() == "relayed"
	})

	cancel()
	hubBuf.Close()
	for _, b := range bufs {
		b.Close()
	}
}

func TestCatchUpOnConnect(t *testing.T) {
	serverPeer := New(Opts{Name: "serve"})
	serverBuf := buffer.New("shared.txt")
	serverBuf.AddCollaborator(serverPeer)

	// Edited before anyone connects; a later client must still see it.
	serverBuf.PushChanges(astring.MakeInsert(ident.NewAllocatorAt(1), ident.Begin, ident.End, "existing"))

	srv := httptest.NewServer(serverPeer.Handler())
	defer srv.Close()

	clientPeer := New(Opts{Name: "dial"})
	clientBuf := buffer.New("shared.txt")
	clientBuf.AddCollaborator(clientPeer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go clientPeer.Dial(ctx, wsURL(srv.URL))

	waitFor(t, "catch-up", func() bool {
		return clientBuf.ContentSnapshot().Render() == "existing"
	})

	cancel()
	serverBuf.Close()
	clientBuf.Close()
}

func TestRejectsBadHandshake(t *testing.T) {
	p := New(Opts{Name: "serve"})
	b := buffer.New("shared.txt")
	b.AddCollaborator(p)
	defer b.Close()

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sock, _, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sock.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, sock, helloPacket{Type: packetHello, Version: "999"}); err != nil {
		t.Fatal(err)
	}

	var anything map[string]any
	err = wsjson.Read(ctx, sock, &anything)
	if err == nil {
		t.Fatalf("expected close after bad version, was %v", anything)
	}
	if websocket.CloseStatus(err) == -1 {
		t.Errorf("expected a close status, was %v", err)
	}
}
