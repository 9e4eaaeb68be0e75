package domain

const (
	MaxReplyLength   = 4000
	TruncationMarker = "\n\n[truncated]"

	// MaxTextLength is the longest user text accepted before any collaborator is called.
	MaxTextLength = 8000

	// MaxCaptionLength is Telegram's limit for media captions.
	MaxCaptionLength = 1024
)

// ChatExchange is one stateless system+user round trip to the chat completion collaborator.
type ChatExchange struct {
	SystemPrompt string
	UserContent  string
	Temperature  float32
}
