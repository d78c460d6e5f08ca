package domain

import "time"

// Session identifies one conversation timeline. Superseded sessions are
// archived, never deleted.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Anniversary is a dated milestone the character declared and should recall.
type Anniversary struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // birthday, first_meet, custom...
	Name      string    `json:"name"`
	MonthDay  string    `json:"monthDay"` // MM-DD
	Year      int       `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
