package domain

// ChatAction values understood by Telegram's sendChatAction.
type ChatAction string

const (
	ChatActionTyping      ChatAction = "typing"
	ChatActionRecordVoice ChatAction = "record_voice"
)
