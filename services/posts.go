package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"komugigallery.com/gallery/media"
	"komugigallery.com/gallery/models"
	"komugigallery.com/gallery/store"
)

const (
	PageSize       = 10
	SearchLimit    = 10
	MaxUploadFiles = 10
)

// PostService orchestrates the persistence and media adapters for gallery posts.
type PostService struct {
	posts      store.PostStore
	media      media.Store
	categories *Categorizer
	now        func() time.Time
}

func NewPostService(posts store.PostStore, media media.Store, categories *Categorizer) *PostService {
	if categories == nil {
		categories = NewCategorizer(DefaultCategoryRules)
	}
	return &PostService{
		posts:      posts,
		media:      media,
		categories: categories,
		now:        time.Now,
	}
}

// Create uploads every file, then stores one post referencing them. Uploads
// run concurrently; the first failure aborts before the record is written and
// already uploaded media stay orphaned.
func (s *PostService) Create(ctx context.Context, tagsText string, files []media.File, creator *AuthContext) (*models.Post, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images selected", ErrValidation)
	}
	if len(files) > MaxUploadFiles {
		return nil, fmt.Errorf("%w: at most %d images per post", ErrValidation, MaxUploadFiles)
	}

	objects := make([]media.Object, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			obj, err := s.media.Upload(gctx, f)
			if err != nil {
				return fmt.Errorf("upload %q: %w", f.Name, err)
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	post := &models.Post{
		ImageURLs:      make([]string, len(objects)),
		ImagePublicIDs: make([]string, len(objects)),
		Tags:           ParseTags(tagsText),
		CreatedAt:      s.now().UTC(),
	}
	for i, obj := range objects {
		post.ImageURLs[i] = obj.URL
		post.ImagePublicIDs[i] = obj.PublicID
	}
	if creator != nil {
		post.CreatedBy = creator.ID
	}

	if err := s.posts.Insert(ctx, post); err != nil {
		return nil, fmt.Errorf("%w: insert post: %v", ErrUpstream, err)
	}
	log.Printf("[posts] created id=%s images=%d tags=%d", post.ID, len(post.ImageURLs), len(post.Tags))
	return post, nil
}

// List returns one page of posts, newest first. Pages below 1 are treated as 1.
func (s *PostService) List(ctx context.Context, page int, tag string) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	tag = strings.TrimSpace(tag)

	total, err := s.posts.Count(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: count posts: %v", ErrUpstream, err)
	}
	posts, err := s.posts.Find(ctx, store.PostQuery{
		Tag:   tag,
		Skip:  (page - 1) * PageSize,
		Limit: PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: find posts: %v", ErrUpstream, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	return &models.PostPage{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  (total + PageSize - 1) / PageSize,
	}, nil
}

// Search returns up to SearchLimit posts with a tag containing keyword.
func (s *PostService) Search(ctx context.Context, keyword string) ([]models.Post, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrValidation)
	}
	posts, err := s.posts.Find(ctx, store.PostQuery{Tag: keyword, Limit: SearchLimit})
	if err != nil {
		return nil, fmt.Errorf("%w: search posts: %v", ErrUpstream, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Tags lists every distinct tag in use, in discovery order.
func (s *PostService) Tags(ctx context.Context) ([]string, error) {
	sets, err := s.posts.TagSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load tags: %v", ErrUpstream, err)
	}
	return distinctTags(sets), nil
}

// Categories classifies the distinct tag vocabulary.
func (s *PostService) Categories(ctx context.Context) (models.TagCategories, error) {
	tags, err := s.Tags(ctx)
	if err != nil {
		return nil, err
	}
	return s.categories.Categorize(tags), nil
}

// UpdateTags replaces the tag list of post id with the normalized tags.
func (s *PostService) UpdateTags(ctx context.Context, id string, tags []string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	err := s.posts.UpdateTags(ctx, id, NormalizeTags(tags))
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: update tags: %v", ErrUpstream, err)
	}
	return nil
}

// Delete removes post id on behalf of requester. Media deletes are attempted
// concurrently and their failures only logged; the record is deleted regardless.
func (s *PostService) Delete(ctx context.Context, id string, requester *AuthContext) error {
	if requester == nil {
		return fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}

	post, err := s.posts.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: find post: %v", ErrUpstream, err)
	}
	if !CanDelete(post, requester) {
		return fmt.Errorf("%w: not allowed to delete post %s", ErrForbidden, id)
	}

	var wg sync.WaitGroup
	for _, publicID := range s.publicIDs(post) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.media.Delete(ctx, publicID); err != nil {
				log.Printf("[posts] media delete failed post=%s publicID=%s: %v", id, publicID, err)
			}
		}()
	}
	wg.Wait()

	err = s.posts.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: delete post: %v", ErrUpstream, err)
	}
	log.Printf("[posts] deleted id=%s by=%s", id, requester.Username)
	return nil
}

// publicIDs returns the stored media identifiers, or derives them from the
// URLs when the record has none or they are not index-aligned.
func (s *PostService) publicIDs(p *models.Post) []string {
	if len(p.ImagePublicIDs) == len(p.ImageURLs) && len(p.ImagePublicIDs) > 0 {
		return p.ImagePublicIDs
	}
	ids := make([]string, 0, len(p.ImageURLs))
	for _, u := range p.ImageURLs {
		if id := s.media.PublicIDFromURL(u); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
