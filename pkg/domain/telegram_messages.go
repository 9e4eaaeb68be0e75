package domain

// Texts shown to Telegram users.
const (
	MessageGreeting          = "Hi! Send me a text or a voice message."
	MessageBlocked           = "Your access is temporarily blocked."
	MessageCooldownFormat    = "Please wait %ds before sending again."
	MessageInvalidInput      = "Message is empty or too long."
	MessageNotAllowed        = "This message is not allowed."
	MessageStrikeBlocked     = "You are temporarily blocked because of repeated violations."
	MessageChatFailed        = "Sorry, there was a problem processing your request."
	MessageRecognitionFailed = "Could not recognize the voice message. Please try again as text."
	MessageVoiceNotAllowed   = "The content of this voice message is not allowed."
	MessageVoiceFailed       = "Something went wrong while processing the voice message."
	MessageUnauthorized      = "User %d is not authorized to use this bot."
)
