package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"komugigallery.com/gallery/models"
)

// FirestoreStore keeps posts in the "posts" collection and accounts in "users".
//
// Firestore has no substring operator, so tag-filtered queries walk the
// ordered collection and filter in process.
type FirestoreStore struct {
	Client *firestore.Client
}

type firestorePost struct {
	ImageURLs      []string  `firestore:"imageUrls"`
	ImagePublicIDs []string  `firestore:"imagePublicIds,omitempty"`
	Tags           []string  `firestore:"tags"`
	CreatedAt      time.Time `firestore:"createdAt"`
	CreatedBy      string    `firestore:"createdBy,omitempty"`
}

type firestoreUser struct {
	Username     string `firestore:"username"`
	PasswordHash string `firestore:"passwordHash"`
	IsAdmin      bool   `firestore:"isAdmin"`
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{Client: client}
}

func (s *FirestoreStore) posts() *firestore.CollectionRef {
	return s.Client.Collection("posts")
}

func (s *FirestoreStore) users() *firestore.CollectionRef {
	return s.Client.Collection("users")
}

// doc returns nil for ids Firestore cannot address.
func (s *FirestoreStore) doc(id string) *firestore.DocumentRef {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return nil
	}
	return s.posts().Doc(id)
}

func (s *FirestoreStore) Insert(ctx context.Context, p *models.Post) error {
	ref := s.posts().NewDoc()
	_, err := ref.Set(ctx, firestorePost{
		ImageURLs:      p.ImageURLs,
		ImagePublicIDs: p.ImagePublicIDs,
		Tags:           copyStrings(p.Tags),
		CreatedAt:      p.CreatedAt.UTC(),
		CreatedBy:      p.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = ref.ID
	return nil
}

func (s *FirestoreStore) Find(ctx context.Context, q PostQuery) ([]models.Post, error) {
	if q.Tag == "" {
		query := s.posts().OrderBy("createdAt", firestore.Desc)
		if q.Skip > 0 {
			query = query.Offset(q.Skip)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
		return s.collect(ctx, query, "")
	}

	posts, err := s.collect(ctx, s.posts().OrderBy("createdAt", firestore.Desc), q.Tag)
	if err != nil {
		return nil, err
	}
	return page(posts, q.Skip, q.Limit), nil
}

func (s *FirestoreStore) Count(ctx context.Context, tag string) (int, error) {
	if tag != "" {
		posts, err := s.collect(ctx, s.posts().Select("tags"), tag)
		if err != nil {
			return 0, err
		}
		return len(posts), nil
	}

	res, err := s.posts().NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.New("count posts: unexpected aggregation result")
	}
	return int(v.GetIntegerValue()), nil
}

// collect drains query, keeping documents whose tags match tag.
func (s *FirestoreStore) collect(ctx context.Context, query firestore.Query, tag string) ([]models.Post, error) {
	it := query.Documents(ctx)
	defer it.Stop()

	posts := []models.Post{}
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query posts: %w", err)
		}
		var d firestorePost
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		if !MatchTag(d.Tags, tag) {
			continue
		}
		posts = append(posts, d.toModel(snap.Ref.ID))
	}
	return posts, nil
}

func (s *FirestoreStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	ref := s.doc(id)
	if ref == nil {
		return nil, ErrNotFound
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d firestorePost
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	p := d.toModel(snap.Ref.ID)
	return &p, nil
}

func (s *FirestoreStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	ref := s.doc(id)
	if ref == nil {
		return ErrNotFound
	}
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "tags", Value: copyStrings(tags)},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	ref := s.doc(id)
	if ref == nil {
		return ErrNotFound
	}
	_, err := ref.Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (s *FirestoreStore) TagSets(ctx context.Context) ([][]string, error) {
	it := s.posts().Select("tags", "createdAt").OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var sets [][]string
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query tags: %w", err)
		}
		var d firestorePost
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		sets = append(sets, copyStrings(d.Tags))
	}
	return sets, nil
}

func (s *FirestoreStore) findUser(ctx context.Context, username string) (*firestore.DocumentSnapshot, error) {
	it := s.users().Where("username", "==", username).Limit(1).Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	return snap, err
}

func (s *FirestoreStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	snap, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	var d firestoreUser
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return &models.User{
		ID:           snap.Ref.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
	}, nil
}

func (s *FirestoreStore) SaveUser(ctx context.Context, u *models.User) error {
	var ref *firestore.DocumentRef
	snap, err := s.findUser(ctx, u.Username)
	switch {
	case err == nil:
		ref = snap.Ref
	case errors.Is(err, ErrNotFound):
		ref = s.users().NewDoc()
	default:
		return err
	}

	if _, err := ref.Set(ctx, firestoreUser{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
	}); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	u.ID = ref.ID
	return nil
}

func (d firestorePost) toModel(id string) models.Post {
	return models.Post{
		ID:             id,
		ImageURLs:      copyStrings(d.ImageURLs),
		ImagePublicIDs: d.ImagePublicIDs,
		Tags:           copyStrings(d.Tags),
		CreatedAt:      d.CreatedAt.UTC(),
		CreatedBy:      d.CreatedBy,
	}
}
