package guidance

import "time"

// Session is the guidance state owned by a single Coordinator. Only the
// coordinator's loop goroutine mutates it.
//
// Listening implies Active. Active may be true with Listening false while
// an answer is being spoken.
type Session struct {
	ID          string
	Active      bool
	Listening   bool
	LastObjects []DetectedObject
	StatusText  string
	ActivatedAt time.Time
}

// Snapshot is an immutable copy of a Session for readers outside the loop.
type Snapshot struct {
	ID          string           `json:"id,omitempty"`
	Active      bool             `json:"active"`
	Listening   bool             `json:"listening"`
	Objects     []DetectedObject `json:"objects"`
	StatusText  string           `json:"status"`
	ActivatedAt time.Time        `json:"activated_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (s *Session) snapshot() Snapshot {
	objs := make([]DetectedObject, len(s.LastObjects))
	copy(objs, s.LastObjects)
	return Snapshot{
		ID:          s.ID,
		Active:      s.Active,
		Listening:   s.Listening,
		Objects:     objs,
		StatusText:  s.StatusText,
		ActivatedAt: s.ActivatedAt,
		UpdatedAt:   time.Now(),
	}
}
