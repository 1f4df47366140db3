package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"komugigallery.com/gallery/media"
	"komugigallery.com/gallery/models"
	"komugigallery.com/gallery/store"
)

type fakeMedia struct {
	mu         sync.Mutex
	next       int
	uploaded   []string
	deleted    []string
	failUpload string
	failDelete bool
}

func (m *fakeMedia) Upload(ctx context.Context, f media.File) (media.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Name == m.failUpload {
		return media.Object{}, errors.New("host unavailable")
	}
	m.next++
	id := fmt.Sprintf("img-%d", m.next)
	m.uploaded = append(m.uploaded, id)
	return media.Object{URL: "https://media.test/gallery/" + id + ".jpg", PublicID: id}, nil
}

func (m *fakeMedia) Delete(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, publicID)
	if m.failDelete {
		return errors.New("delete refused")
	}
	return nil
}

func (m *fakeMedia) PublicIDFromURL(url string) string {
	base := path.Base(url)
	return base[:len(base)-len(path.Ext(base))]
}

func (m *fakeMedia) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.deleted...)
	sort.Strings(out)
	return out
}

func newTestPostService(t *testing.T) (*PostService, *store.FileStore, *fakeMedia) {
	t.Helper()
	dir := t.TempDir()
	fs := store.NewFileStore(filepath.Join(dir, "data.json"), filepath.Join(dir, "users.json"))
	fm := &fakeMedia{}
	svc := NewPostService(fs, fm, nil)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, fs, fm
}

func images(n int) []media.File {
	files := make([]media.File, n)
	for i := range files {
		files[i] = media.File{Name: fmt.Sprintf("p%d.jpg", i), ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}
	}
	return files
}

func TestCreateStoresOneURLPerImage(t *testing.T) {
	svc, _, fm := newTestPostService(t)
	owner := &AuthContext{ID: "u1", Username: "komugi"}

	post, err := svc.Create(context.Background(), " akiz, 2021/07 ,akiz,", images(3), owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if post.ID == "" {
		t.Fatal("post id not assigned")
	}
	if len(post.ImageURLs) != 3 || len(post.ImagePublicIDs) != 3 {
		t.Fatalf("got %d urls / %d ids, want 3", len(post.ImageURLs), len(post.ImagePublicIDs))
	}
	if want := []string{"akiz", "2021/07"}; !reflect.DeepEqual(post.Tags, want) {
		t.Fatalf("tags = %v, want %v", post.Tags, want)
	}
	if post.CreatedBy != "u1" {
		t.Fatalf("createdBy = %q", post.CreatedBy)
	}
	if len(fm.uploaded) != 3 {
		t.Fatalf("uploaded %d images, want 3", len(fm.uploaded))
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "a", nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("no files: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(ctx, "a", images(MaxUploadFiles+1), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("too many files: err = %v, want ErrValidation", err)
	}
}

func TestCreateUploadFailureWritesNothing(t *testing.T) {
	svc, fs, fm := newTestPostService(t)
	fm.failUpload = "p1.jpg"

	_, err := svc.Create(context.Background(), "a", images(3), nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	n, err := fs.Count(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("stored %d posts after failed upload", n)
	}
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 23; i++ {
		p, err := svc.Create(ctx, fmt.Sprintf("n%d", i), images(1), nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	seen := make(map[string]bool)
	sizes := []int{10, 10, 3}
	for i, size := range sizes {
		pg, err := svc.List(ctx, i+1, "")
		if err != nil {
			t.Fatal(err)
		}
		if pg.CurrentPage != i+1 || pg.TotalPages != 3 {
			t.Fatalf("page %d: current=%d total=%d", i+1, pg.CurrentPage, pg.TotalPages)
		}
		if len(pg.Posts) != size {
			t.Fatalf("page %d: %d posts, want %d", i+1, len(pg.Posts), size)
		}
		for _, p := range pg.Posts {
			if seen[p.ID] {
				t.Fatalf("post %s on more than one page", p.ID)
			}
			seen[p.ID] = true
		}
	}
	if len(seen) != 23 {
		t.Fatalf("saw %d posts, want 23", len(seen))
	}

	first, _ := svc.List(ctx, 1, "")
	if first.Posts[0].ID != ids[22] {
		t.Fatalf("newest post not first")
	}

	beyond, err := svc.List(ctx, 4, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(beyond.Posts) != 0 || beyond.Posts == nil || beyond.TotalPages != 3 {
		t.Fatalf("page 4 = %+v", beyond)
	}

	clamped, _ := svc.List(ctx, 0, "")
	if clamped.CurrentPage != 1 || len(clamped.Posts) != 10 {
		t.Fatalf("page 0 = current %d, %d posts", clamped.CurrentPage, len(clamped.Posts))
	}
}

func TestListEmptyGallery(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	pg, err := svc.List(context.Background(), 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if pg.TotalPages != 0 || pg.Posts == nil || len(pg.Posts) != 0 {
		t.Fatalf("empty gallery = %+v", pg)
	}
}

func TestListAndSearchByTag(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()
	for _, tags := range []string{"akiz,izumi", "hiar", "Akiyoshi", "misc"} {
		if _, err := svc.Create(ctx, tags, images(1), nil); err != nil {
			t.Fatal(err)
		}
	}

	pg, err := svc.List(ctx, 1, "AKI")
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.Posts) != 2 || pg.TotalPages != 1 {
		t.Fatalf("filter AKI: %d posts, %d pages", len(pg.Posts), pg.TotalPages)
	}

	found, err := svc.Search(ctx, "HIA")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Tags[0] != "hiar" {
		t.Fatalf("search HIA = %+v", found)
	}

	if _, err := svc.Search(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty keyword: err = %v", err)
	}
}

func TestSearchLimit(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()
	for i := 0; i < SearchLimit+5; i++ {
		if _, err := svc.Create(ctx, "same", images(1), nil); err != nil {
			t.Fatal(err)
		}
	}
	found, err := svc.Search(ctx, "same")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != SearchLimit {
		t.Fatalf("search returned %d posts, want %d", len(found), SearchLimit)
	}
}

func TestUpdateTags(t *testing.T) {
	svc, fs, _ := newTestPostService(t)
	ctx := context.Background()
	post, err := svc.Create(ctx, "old", images(1), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateTags(ctx, post.ID, []string{" new ", "", "2020/01", "new"}); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	got, err := fs.FindByID(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"new", "2020/01"}; !reflect.DeepEqual(got.Tags, want) {
		t.Fatalf("tags = %v, want %v", got.Tags, want)
	}

	if err := svc.UpdateTags(ctx, "missing", []string{"x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing post: err = %v", err)
	}
	if err := svc.UpdateTags(ctx, "", []string{"x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty id: err = %v", err)
	}
}

func TestTagsAndCategories(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()
	for _, tags := range []string{"akiz,2021/07", "izumi,akiz", "sketch"} {
		if _, err := svc.Create(ctx, tags, images(1), nil); err != nil {
			t.Fatal(err)
		}
	}

	tags, err := svc.Tags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"akiz", "2021/07", "izumi", "sketch"}; !reflect.DeepEqual(tags, want) {
		t.Fatalf("Tags = %v, want %v", tags, want)
	}

	cats, err := svc.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.TagCategories{
		"CP":          {"akiz"},
		"Character":   {"izumi"},
		CategoryDate:  {"2021/07"},
		CategoryOther: {"sketch"},
	}
	if !reflect.DeepEqual(cats, want) {
		t.Fatalf("Categories = %v, want %v", cats, want)
	}
}

func TestDeleteAuthorization(t *testing.T) {
	ctx := context.Background()
	owner := &AuthContext{ID: "owner", Username: "owner"}
	other := &AuthContext{ID: "other", Username: "other"}
	admin := &AuthContext{ID: "root", Username: "root", IsAdmin: true}

	t.Run("anonymous", func(t *testing.T) {
		svc, fs, fm := newTestPostService(t)
		post, _ := svc.Create(ctx, "a", images(1), owner)
		if err := svc.Delete(ctx, post.ID, nil); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
		if _, err := fs.FindByID(ctx, post.ID); err != nil {
			t.Fatalf("post gone: %v", err)
		}
		if len(fm.deletedIDs()) != 0 {
			t.Fatal("media deleted")
		}
	})

	t.Run("non-owner", func(t *testing.T) {
		svc, fs, fm := newTestPostService(t)
		post, _ := svc.Create(ctx, "a", images(2), owner)
		if err := svc.Delete(ctx, post.ID, other); !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
		if _, err := fs.FindByID(ctx, post.ID); err != nil {
			t.Fatalf("post gone: %v", err)
		}
		if len(fm.deletedIDs()) != 0 {
			t.Fatal("media deleted")
		}
	})

	for name, who := range map[string]*AuthContext{"owner": owner, "admin": admin} {
		t.Run(name, func(t *testing.T) {
			svc, fs, fm := newTestPostService(t)
			post, _ := svc.Create(ctx, "a", images(2), owner)
			if err := svc.Delete(ctx, post.ID, who); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := fs.FindByID(ctx, post.ID); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("post still present: %v", err)
			}
			if got := fm.deletedIDs(); !reflect.DeepEqual(got, []string{"img-1", "img-2"}) {
				t.Fatalf("deleted media = %v", got)
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		svc, _, _ := newTestPostService(t)
		if err := svc.Delete(ctx, "nope", admin); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteMediaFailureStillRemovesRecord(t *testing.T) {
	ctx := context.Background()
	svc, fs, fm := newTestPostService(t)
	post, _ := svc.Create(ctx, "a", images(2), nil)
	fm.failDelete = true

	if err := svc.Delete(ctx, post.ID, &AuthContext{IsAdmin: true}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.FindByID(ctx, post.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("post still present: %v", err)
	}
	if len(fm.deletedIDs()) != 2 {
		t.Fatalf("attempted %d media deletes, want 2", len(fm.deletedIDs()))
	}
}

func TestDeleteDerivesPublicIDsFromURLs(t *testing.T) {
	ctx := context.Background()
	svc, fs, fm := newTestPostService(t)

	legacy := &models.Post{
		ImageURLs: []string{"https://media.test/gallery/one.jpg", "https://media.test/gallery/two.png"},
		Tags:      []string{"old"},
		CreatedAt: time.Now(),
	}
	if err := fs.Insert(ctx, legacy); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, legacy.ID, &AuthContext{IsAdmin: true}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := fm.deletedIDs(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Fatalf("deleted media = %v", got)
	}
}
