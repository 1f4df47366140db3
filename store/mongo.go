package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"komugigallery.com/gallery/models"
)

// MongoStore keeps posts in the "images" collection and accounts in "users".
type MongoStore struct {
	posts *mongo.Collection
	users *mongo.Collection
}

type mongoPost struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ImageURLs      []string           `bson:"imageUrls"`
	ImagePublicIDs []string           `bson:"imagePublicIds,omitempty"`
	Tags           []string           `bson:"tags"`
	CreatedAt      time.Time          `bson:"createdAt"`
	CreatedBy      string             `bson:"createdBy,omitempty"`
}

type mongoUser struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`
	Password string             `bson:"password"`
	IsAdmin  bool               `bson:"isAdmin"`
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		posts: db.Collection("images"),
		users: db.Collection("users"),
	}
}

// tagFilter matches documents having a tag that contains tag, ignoring case.
func tagFilter(tag string) bson.M {
	if tag == "" {
		return bson.M{}
	}
	return bson.M{
		"tags": bson.M{
			"$elemMatch": bson.M{
				"$regex":   regexp.QuoteMeta(tag),
				"$options": "i",
			},
		},
	}
}

func (s *MongoStore) Insert(ctx context.Context, p *models.Post) error {
	doc := mongoPost{
		ImageURLs:      p.ImageURLs,
		ImagePublicIDs: p.ImagePublicIDs,
		Tags:           copyStrings(p.Tags),
		CreatedAt:      p.CreatedAt.UTC(),
		CreatedBy:      p.CreatedBy,
	}
	res, err := s.posts.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert post: unexpected id type %T", res.InsertedID)
	}
	p.ID = oid.Hex()
	return nil
}

func (s *MongoStore) Find(ctx context.Context, q PostQuery) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.posts.Find(ctx, tagFilter(q.Tag), opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	var docs []mongoPost
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.toModel())
	}
	return posts, nil
}

func (s *MongoStore) Count(ctx context.Context, tag string) (int, error) {
	n, err := s.posts.CountDocuments(ctx, tagFilter(tag))
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var d mongoPost
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := d.toModel()
	return &p, nil
}

func (s *MongoStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"tags": copyStrings(tags)}},
	)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) TagSets(ctx context.Context) ([][]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"tags": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	var docs []mongoPost
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	sets := make([][]string, 0, len(docs))
	for _, d := range docs {
		sets = append(sets, copyStrings(d.Tags))
	}
	return sets, nil
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var d mongoUser
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.Password,
		IsAdmin:      d.IsAdmin,
	}, nil
}

func (s *MongoStore) SaveUser(ctx context.Context, u *models.User) error {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var d mongoUser
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"username": u.Username},
		bson.M{"$set": bson.M{"password": u.PasswordHash, "isAdmin": u.IsAdmin}},
		opts,
	).Decode(&d)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	u.ID = d.ID.Hex()
	return nil
}

func (d mongoPost) toModel() models.Post {
	return models.Post{
		ID:             d.ID.Hex(),
		ImageURLs:      copyStrings(d.ImageURLs),
		ImagePublicIDs: d.ImagePublicIDs,
		Tags:           copyStrings(d.Tags),
		CreatedAt:      d.CreatedAt.UTC(),
		CreatedBy:      d.CreatedBy,
	}
}
