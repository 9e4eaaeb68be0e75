package domain

// Response is everything a pipeline wants delivered to a chat. When Err is set the
// response sink logs it before delivering Text and Audio.
type Response struct {
	ChatID int64
	Text   string
	Audio  *Audio
	Err    error
}

type Audio struct {
	Name    string
	Data    []byte
	Caption string
}
