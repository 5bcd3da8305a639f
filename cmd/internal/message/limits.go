package message

const (
	// Max message text length (runes).
	maxMessageChars = 4000

	// Max accepted image payload (the client sends a data URL or asset URL).
	maxImageBytes = 8 << 20 // 8 MiB

	// Bound for the in-memory store to avoid unbounded growth in dev.
	memMaxMessagesPerPair = 10_000
)
