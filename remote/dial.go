package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	cobuftime "github.com/sorenh/cobuf/time"
)

const (
	DefaultReconnectMin = 500 * time.Millisecond
	DefaultReconnectMax = 30 * time.Second
)

// Dial connects to a serving peer and keeps the connection up,
// reconnecting with jittered backoff, until the context ends. It
// blocks; run it as its own goroutine.
func (p *Peer) Dial(ctx context.Context, url string) {
	backoff := cobuftime.Backoff{
		Initial: DefaultReconnectMin,
		Max:     DefaultReconnectMax,
		Jitter:  0.2,
	}

	for ctx.Err() == nil {
		err := p.dialOnce(ctx, url, &backoff)
		if ctx.Err() != nil {
			return
		}
		remoteLog("connection to %s ended: %v", url, err)

		t := time.NewTimer(backoff.Next())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (p *Peer) dialOnce(ctx context.Context, url string, backoff *cobuftime.Backoff) error {
	sock, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer sock.Close(websocket.StatusNormalClosure, "")
	sock.SetReadLimit(int64(p.opts.MaxPacketSize))

	hello := helloPacket{Type: packetHello, Version: protocolVersion}
	if err := wsjson.Write(ctx, sock, hello); err != nil {
		return err
	}

	var welcome welcomePacket
	if err := wsjson.Read(ctx, sock, &welcome); err != nil {
		return err
	}
	if welcome.Type != packetWelcome {
		return fmt.Errorf("%w: expected welcome, was %q", ErrBadHandshake, welcome.Type)
	}

	backoff.Reset()
	remoteLog("connected to %s", url)
	return p.runConn(ctx, sock)
}
