package remote

import (
	"github.com/sorenh/cobuf/astring"
)

// Wire protocol: JSON text frames. The client opens with hello, the
// server answers with welcome carrying its limits, then both sides
// exchange commands packets until the socket closes.
const (
	packetHello    = "hello"
	packetWelcome  = "welcome"
	packetCommands = "commands"

	protocolVersion = "1"
)

type helloPacket struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

type welcomePacket struct {
	Type          string `json:"type"`
	MaxPacketSize int    `json:"max_packet_size"`
	RateLimit     int    `json:"rate_limit"`
	RateBurst     int    `json:"rate_burst"`
}

type commandsPacket struct {
	Type     string             `json:"type"`
	Commands astring.CommandSet `json:"commands"`
}
