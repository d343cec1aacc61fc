package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Handler returns an http.Handler that upgrades requests to websocket
// connections speaking the peer protocol. This always sets
// InsecureSkipVerify; wrap it with something that checks the origin.
func (p *Peer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return // websocket.Accept already writes an error response if it fails.
		}
		sock.SetReadLimit(int64(p.opts.MaxPacketSize))

		// Don't use the http.Request context, see websocket.Accept comment.
		ctx, cancel := context.WithCancelCause(context.Background())

		context.AfterFunc(ctx, func() {
			err := context.Cause(ctx)

			var closeError websocket.CloseError
			if errors.As(err, &closeError) {
				sock.Close(closeError.Code, closeError.Reason)
			} else if err != nil && !errors.Is(err, context.Canceled) {
				sock.Close(websocket.StatusInternalError, "")
			} else {
				sock.Close(websocket.StatusNormalClosure, "")
			}
		})

		cancel(p.serve(ctx, sock))
	})
}

func (p *Peer) serve(ctx context.Context, sock *websocket.Conn) error {
	var hello helloPacket
	if err := wsjson.Read(ctx, sock, &hello); err != nil {
		return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "failed to read hello"}
	}
	if hello.Type != packetHello || hello.Version != protocolVersion {
		return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "invalid hello or version"}
	}

	welcome := welcomePacket{
		Type:          packetWelcome,
		MaxPacketSize: p.opts.MaxPacketSize,
		RateLimit:     p.opts.RateLimit,
		RateBurst:     p.opts.RateBurst,
	}
	if err := wsjson.Write(ctx, sock, welcome); err != nil {
		return err
	}

	remoteLog("serving connection")
	return p.runConn(ctx, sock)
}
