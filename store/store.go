// Package store persists gallery posts and user accounts.
//
// Every backend implements the same PostStore and UserStore contracts, so the
// flat JSON file, the SQL databases and the document databases can be swapped
// through configuration without touching the services.
package store

import (
	"context"
	"errors"
	"strings"

	"komugigallery.com/gallery/models"
)

// ErrNotFound is returned when no record matches the requested identity.
// Identifiers that are malformed for a backend are reported the same way.
var ErrNotFound = errors.New("store: not found")

// PostQuery selects posts ordered by creation time, newest first.
type PostQuery struct {
	// Tag keeps posts having at least one tag that contains Tag,
	// compared case-insensitively. Empty matches everything.
	Tag   string
	Skip  int
	Limit int
}

type PostStore interface {
	// Insert stores p and assigns p.ID.
	Insert(ctx context.Context, p *models.Post) error
	Find(ctx context.Context, q PostQuery) ([]models.Post, error)
	Count(ctx context.Context, tag string) (int, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	// UpdateTags replaces the whole tag list of one post.
	UpdateTags(ctx context.Context, id string, tags []string) error
	Delete(ctx context.Context, id string) error
	// TagSets returns the tag list of every post, oldest post first.
	TagSets(ctx context.Context) ([][]string, error)
}

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// SaveUser inserts or replaces the user with the same username.
	SaveUser(ctx context.Context, u *models.User) error
}

// MatchTag reports whether any of tags contains filter, ignoring case.
func MatchTag(tags []string, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// page applies skip/limit to an already ordered slice.
func page(posts []models.Post, skip, limit int) []models.Post {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(posts) {
		return []models.Post{}
	}
	posts = posts[skip:]
	if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}
	return posts
}

func copyStrings(src []string) []string {
	if src == nil {
		return []string{}
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}
