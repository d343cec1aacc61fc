// Package remote bridges a buffer to a co-editor over a websocket,
// exchanging command sets as JSON packets. One Peer serves any number
// of inbound connections and may also dial out; a new connection is
// first caught up with the document, then sees every command the peer
// learns of except its own contributions.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sorenh/cobuf/astring"
	"github.com/sorenh/cobuf/buffer"
	"github.com/sorenh/cobuf/ident"
	"github.com/sorenh/cobuf/queue"
)

const (
	// DefaultMaxPacketSize is the maximum size of a JSON packet we accept.
	DefaultMaxPacketSize = 32768

	// DefaultInMessageBuffer allows for this many received command sets to wait for the buffer;
	// once it is full, reading from the connections pauses.
	DefaultInMessageBuffer = 128

	// DefaultRateLimit is the number of messages per second we allow.
	DefaultRateLimit = 100

	// DefaultRateBurst is the maximum burst of messages we allow.
	DefaultRateBurst = 100

	// maxCommandsPerPacket splits large command sets (a whole-file load,
	// a catch-up) across packets that stay under the far side's read
	// limit.
	maxCommandsPerPacket = 128
)

var (
	ErrBadHandshake = errors.New("peer did not complete handshake")
	ErrBadPacket    = errors.New("unknown packet type")
)

var (
	remoteLogs = false
)

// EnableLogs turns on logs for some things in this package.
// Just for debugging.
func EnableLogs() {
	remoteLogs = true
}

func remoteLog(format string, args ...any) {
	if remoteLogs {
		log.Printf("remote: "+format, args...)
	}
}

// Opts configures a Peer.
type Opts struct {
	// Name is the collaborator name. Defaults to "remote" if empty.
	Name string

	// MaxPacketSize is the maximum size of a JSON packet we accept.
	// Defaults to DefaultMaxPacketSize if zero.
	MaxPacketSize int

	// InMessageBuffer allows for this many received command sets to wait for the buffer;
	// once it is full, reading from the connections pauses.
	// Defaults to DefaultInMessageBuffer if zero.
	InMessageBuffer int

	// RateLimit is the number of messages per second we allow.
	// Defaults to DefaultRateLimit if zero.
	RateLimit int

	// RateBurst is the maximum burst of messages we allow.
	// Defaults to DefaultRateBurst if zero.
	RateBurst int
}

func (o *Opts) setDefaults() {
	if o.Name == "" {
		o.Name = "remote"
	}
	if o.MaxPacketSize == 0 {
		o.MaxPacketSize = DefaultMaxPacketSize
	}
	if o.InMessageBuffer == 0 {
		o.InMessageBuffer = DefaultInMessageBuffer
	}
	if o.RateLimit == 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.RateBurst == 0 {
		o.RateBurst = DefaultRateBurst
	}
}

// Peer is a command-stream collaborator carried over websockets. It
// keeps its own mirror of the document so a freshly established
// connection can be caught up, and a known-ID set so a command is
// forwarded at most once no matter how many paths deliver it.
type Peer struct {
	buffer.Base
	opts Opts

	out queue.Queue[astring.CommandSet]
	in  chan astring.CommandSet

	mu     sync.Mutex
	known  map[ident.ID]struct{}
	mirror astring.AnnotatedString
}

// New builds a Peer. Register it with a buffer, then attach transport
// with Handler (serving) or Dial (connecting); both may be used.
func New(opts Opts) *Peer {
	opts.setDefaults()
	return &Peer{
		Base: buffer.Base{
			CollabName: opts.Name,
			FromIdle:   10 * time.Millisecond,
			FromStart:  100 * time.Millisecond,
		},
		opts:   opts,
		out:    queue.New[astring.CommandSet](),
		in:     make(chan astring.CommandSet, opts.InMessageBuffer),
		known:  make(map[ident.ID]struct{}),
		mirror: astring.New(),
	}
}

// admit filters a command set down to the commands this peer has not
// handled yet, folding those into the mirror. Duplicates delivered
// along a second path come back empty, which is what stops forwarding
// loops in cyclic peer topologies.
func (p *Peer) admit(cmds astring.CommandSet) astring.CommandSet {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make(astring.CommandSet, 0, len(cmds))
	for _, cmd := range cmds {
		if _, ok := p.known[cmd.ID]; ok {
			continue
		}
		p.known[cmd.ID] = struct{}{}
		fresh = append(fresh, cmd)
	}
	if len(fresh) != 0 {
		p.mirror = p.mirror.Integrate(fresh)
	}
	return fresh
}

// catchUp derives the command set that brings an empty replica level
// with the mirror.
func (p *Peer) catchUp() astring.CommandSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mirror.Commands()
}

// Push fans the buffer's command stream out to every connection.
// Sets the peer itself delivered come back here too; admit drops them.
func (p *Peer) Push(cmds astring.CommandSet) error {
	if fresh := p.admit(cmds); len(fresh) != 0 {
		p.out.Push(fresh)
	}
	return nil
}

// Pull hands received command sets to the buffer.
func (p *Peer) Pull(ctx context.Context) (astring.CommandSet, error) {
	select {
	case cmds := <-p.in:
		return cmds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// conn is one live websocket. seen tracks command IDs this connection
// delivered to us, so their relay through the peer's outbound queue is
// not sent back to it.
type conn struct {
	mu   sync.Mutex
	seen map[ident.ID]struct{}
}

func (c *conn) record(cmds astring.CommandSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range cmds {
		c.seen[cmd.ID] = struct{}{}
	}
}

// filter drops commands this connection already knows about.
func (c *conn) filter(cmds astring.CommandSet) astring.CommandSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(astring.CommandSet, 0, len(cmds))
	for _, cmd := range cmds {
		if _, ok := c.seen[cmd.ID]; ok {
			delete(c.seen, cmd.ID)
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// writeCommands sends a command set, split into size-bounded packets.
// Command order within a set always integrates as a prefix, so the far
// side can apply each packet as it arrives.
func writeCommands(ctx context.Context, sock *websocket.Conn, cmds astring.CommandSet) error {
	for len(cmds) > 0 {
		n := min(len(cmds), maxCommandsPerPacket)
		pkt := commandsPacket{Type: packetCommands, Commands: cmds[:n]}
		if err := wsjson.Write(ctx, sock, pkt); err != nil {
			return err
		}
		cmds = cmds[n:]
	}
	return nil
}

// runConn services an established, handshaken connection until the
// context ends or the socket fails.
func (p *Peer) runConn(ctx context.Context, sock *websocket.Conn) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cn := &conn{seen: make(map[ident.ID]struct{})}
	limiter := rate.NewLimiter(rate.Limit(p.opts.RateLimit), p.opts.RateBurst)

	// Join before snapshotting the mirror so nothing slips between the
	// catch-up and the live stream; the far side drops any overlap.
	sub := p.out.Join(ctx)
	if cu := p.catchUp(); len(cu) != 0 {
		if err := writeCommands(ctx, sock, cu); err != nil {
			return err
		}
	}

	go func() {
		for cmds := range sub.Iter() {
			cmds = cn.filter(cmds)
			if len(cmds) == 0 {
				continue
			}
			if err := writeCommands(ctx, sock, cmds); err != nil {
				cancel(err)
				return
			}
		}
	}()

	for {
		typ, raw, err := sock.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			return websocket.CloseError{Code: websocket.StatusUnsupportedData, Reason: "unexpected message type"}
		}
		if !limiter.Allow() {
			return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "rate limit exceeded"}
		}

		switch gjson.GetBytes(raw, "type").String() {
		case packetCommands:
			var pkt commandsPacket
			if err := json.Unmarshal(raw, &pkt); err != nil {
				return fmt.Errorf("%w: %w", ErrBadPacket, err)
			}
			fresh := p.admit(pkt.Commands)
			if len(fresh) == 0 {
				continue
			}
			// Relay to the other connections directly; the seen set
			// keeps the originator from getting its own commands back.
			cn.record(fresh)
			p.out.Push(fresh)
			select {
			case p.in <- fresh:
			case <-ctx.Done():
				return context.Cause(ctx)
			}

		default:
			return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "unknown packet type"}
		}
	}
}
