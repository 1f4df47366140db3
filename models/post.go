package models

import "time"

type Post struct {
	ID             string    `json:"id"`
	ImageURLs      []string  `json:"imageUrls"`
	ImagePublicIDs []string  `json:"-"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy,omitempty"`
}

type PostPage struct {
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
}

// TagCategories maps a category name to its member tags in discovery order.
type TagCategories map[string][]string
