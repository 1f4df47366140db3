// Package media uploads image bytes to a hosting backend and removes them again.
package media

import (
	"context"
	"path"
	"strings"
)

// File is one uploaded image held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Object is a stored image: a durable URL plus the identifier the backend
// needs to delete it.
type Object struct {
	URL      string
	PublicID string
}

type Store interface {
	Upload(ctx context.Context, f File) (Object, error)
	Delete(ctx context.Context, publicID string) error
	// PublicIDFromURL recovers the deletion identifier from a URL this store
	// produced. It is used for records that never stored identifiers.
	PublicIDFromURL(url string) string
}

// safeName keeps the base of a client-supplied file name usable as a path segment.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "." || name == "/" || strings.Trim(name, "._") == "" {
		return "image"
	}
	return name
}

// extension returns the lower-cased extension of name including the dot.
func extension(name string) string {
	return strings.ToLower(path.Ext(safeName(name)))
}
