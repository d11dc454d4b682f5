package models

import "time"

type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"uid"`
	Title     string    `json:"title"`
	SubTitle  *string   `json:"sub_title,omitempty"`
	Routing   *string   `json:"routing,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is a stored upload, deduplicated by content hash.
type Image struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"content_type"`
	Hash        string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
