package domain

// UserID identifies a Telegram user and keys all per-user admission state.
type UserID = int64

type Admission struct {
	Allowed     bool
	Blocked     bool
	WaitSeconds int
}

type Strike struct {
	Count     int64
	Escalated bool
}

const ModerationReasonKeyword = "keyword"

type Verdict struct {
	Blocked bool
	Reason  string
}
