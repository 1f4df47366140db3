package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore writes images into a directory served by the HTTP server under URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

func (s *LocalStore) Upload(ctx context.Context, f File) (Object, error) {
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], safeName(f.Name))
	if err := os.WriteFile(filepath.Join(s.Dir, name), f.Data, 0644); err != nil {
		return Object{}, fmt.Errorf("write %s: %w", name, err)
	}
	return Object{URL: s.URLPrefix + name, PublicID: name}, nil
}

func (s *LocalStore) Delete(ctx context.Context, publicID string) error {
	name := filepath.Base(publicID)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid public id %q", publicID)
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) PublicIDFromURL(url string) string {
	return path.Base(strings.TrimPrefix(url, s.URLPrefix))
}
