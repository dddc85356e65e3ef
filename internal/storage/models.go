package storage

import "time"

// Failure is an ingestion event that exhausted its delivery attempts.
type Failure struct {
	ID         int64      `json:"id"`
	MessageID  string     `json:"message_id"`
	EventType  string     `json:"event_type"`
	NoteID     int64      `json:"note_id"`
	UserID     int64      `json:"user_id"`
	Body       []byte     `json:"-"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}

// Replayed reports whether the failure has been republished.
func (f *Failure) Replayed() bool {
	return f.ReplayedAt != nil
}
