package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"komugigallery.com/gallery/models"
)

// FileStore keeps posts and users in two JSON files. Each mutation rewrites
// the whole file; there is no journal and no protection against a second
// process writing the same file.
type FileStore struct {
	mu        sync.Mutex
	postsPath string
	usersPath string
}

type postRecord struct {
	ID             recordID  `json:"id"`
	ImageURLs      []string  `json:"imageUrls"`
	ImagePublicIDs []string  `json:"imagePublicIds,omitempty"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy,omitempty"`
}

// recordID holds a post id. Files written by the first version of the
// gallery carry numeric millisecond ids; they are read as their decimal form.
type recordID string

func (id *recordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = recordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %s", data)
	}
	*id = recordID(n.String())
	return nil
}

type userRecord struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	IsAdmin      bool   `json:"isAdmin"`
}

func NewFileStore(postsPath, usersPath string) *FileStore {
	return &FileStore{postsPath: postsPath, usersPath: usersPath}
}

func (s *FileStore) Insert(ctx context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []postRecord
	if err := readJSON(s.postsPath, &records); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	records = append(records, postRecord{
		ID:             recordID(p.ID),
		ImageURLs:      p.ImageURLs,
		ImagePublicIDs: p.ImagePublicIDs,
		Tags:           copyStrings(p.Tags),
		CreatedAt:      p.CreatedAt.UTC(),
		CreatedBy:      p.CreatedBy,
	})
	return writeJSON(s.postsPath, records)
}

func (s *FileStore) Find(ctx context.Context, q PostQuery) ([]models.Post, error) {
	posts, err := s.matching(q.Tag)
	if err != nil {
		return nil, err
	}
	return page(posts, q.Skip, q.Limit), nil
}

func (s *FileStore) Count(ctx context.Context, tag string) (int, error) {
	posts, err := s.matching(tag)
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

// matching returns the posts passing the tag filter, newest first.
func (s *FileStore) matching(tag string) ([]models.Post, error) {
	s.mu.Lock()
	var records []postRecord
	err := readJSON(s.postsPath, &records)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(records))
	for _, r := range records {
		if MatchTag(r.Tags, tag) {
			posts = append(posts, r.toModel())
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *FileStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []postRecord
	if err := readJSON(s.postsPath, &records); err != nil {
		return nil, err
	}
	for _, r := range records {
		if string(r.ID) == id {
			p := r.toModel()
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []postRecord
	if err := readJSON(s.postsPath, &records); err != nil {
		return err
	}
	for i := range records {
		if string(records[i].ID) == id {
			records[i].Tags = copyStrings(tags)
			return writeJSON(s.postsPath, records)
		}
	}
	return ErrNotFound
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []postRecord
	if err := readJSON(s.postsPath, &records); err != nil {
		return err
	}
	for i := range records {
		if string(records[i].ID) == id {
			records = append(records[:i], records[i+1:]...)
			return writeJSON(s.postsPath, records)
		}
	}
	return ErrNotFound
}

func (s *FileStore) TagSets(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	var records []postRecord
	err := readJSON(s.postsPath, &records)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	sets := make([][]string, 0, len(records))
	for _, r := range records {
		sets = append(sets, copyStrings(r.Tags))
	}
	return sets, nil
}

func (s *FileStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []userRecord
	if err := readJSON(s.usersPath, &records); err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Username == username {
			return &models.User{
				ID:           r.ID,
				Username:     r.Username,
				PasswordHash: r.PasswordHash,
				IsAdmin:      r.IsAdmin,
			}, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []userRecord
	if err := readJSON(s.usersPath, &records); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	rec := userRecord{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash, IsAdmin: u.IsAdmin}

	replaced := false
	for i := range records {
		if records[i].Username == u.Username {
			rec.ID = records[i].ID
			u.ID = rec.ID
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return writeJSON(s.usersPath, records)
}

func (r postRecord) toModel() models.Post {
	return models.Post{
		ID:             string(r.ID),
		ImageURLs:      copyStrings(r.ImageURLs),
		ImagePublicIDs: r.ImagePublicIDs,
		Tags:           copyStrings(r.Tags),
		CreatedAt:      r.CreatedAt,
		CreatedBy:      r.CreatedBy,
	}
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Printf("[store.file] rename %s -> %s failed: %v", tmp, path, err)
		return err
	}
	return nil
}
