package chat

import "time"

// Security/performance limits for the websocket gateway.
const (
	// Max bytes per inbound websocket frame. The push protocol is
	// server-to-client only, so inbound frames are small or garbage.
	maxFrameBytes = 4 << 10 // 4 KiB

	// Heartbeat defaults (overridable by env in gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)
