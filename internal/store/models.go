package store

import "time"

type Verdict string

const (
	VerdictHelpful    Verdict = "Helpful"
	VerdictNotHelpful Verdict = "Not Helpful"
)

// ChatLogEntry is the durable copy of one question/answer exchange.
type ChatLogEntry struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
}

// FeedbackEvent records a verdict on the latest answer a user saw.
type FeedbackEvent struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Verdict   Verdict   `json:"verdict"`
}
