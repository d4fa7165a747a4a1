package model

import "time"

// Link is one entry in a user's public link list. SortOrder is meaningful
// only relative to other links owned by the same user; gaps are allowed.
type Link struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url"`
	Title     *string   `json:"title"`
	Active    bool      `json:"active"`
	SortOrder int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkPatch is a partial update to a link. Nil fields are left unchanged.
// Order and owner are absent; clients cannot mutate them here.
type LinkPatch struct {
	URL    *string `json:"url"`
	Title  *string `json:"title"`
	Active *bool   `json:"active"`
}
