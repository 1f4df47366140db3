package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const defaultPublicBaseURL = "https://storage.googleapis.com"

// GCSStore keeps images in a Cloud Storage bucket. The bucket handle may come
// from a plain storage client or from Firebase Storage; objects are expected
// to be publicly readable through bucket IAM.
type GCSStore struct {
	Bucket        *storage.BucketHandle
	BucketName    string
	PublicBaseURL string
	Folder        string
}

func NewGCSStore(bucket *storage.BucketHandle, bucketName, publicBaseURL, folder string) *GCSStore {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = defaultPublicBaseURL
	}
	return &GCSStore{
		Bucket:        bucket,
		BucketName:    strings.TrimSpace(bucketName),
		PublicBaseURL: base,
		Folder:        strings.Trim(folder, "/"),
	}
}

func (s *GCSStore) Upload(ctx context.Context, f File) (Object, error) {
	if s == nil || s.Bucket == nil {
		return Object{}, errors.New("media.gcs: bucket is nil")
	}

	object := path.Join(s.Folder, uuid.NewString()+extension(f.Name))
	w := s.Bucket.Object(object).NewWriter(ctx)
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		w.ContentType = ct
	}
	w.Metadata = map[string]string{
		"uploadedAt":   time.Now().UTC().Format(time.RFC3339),
		"originalName": safeName(f.Name),
	}
	if _, err := w.Write(f.Data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("close %s: %w", object, err)
	}

	return Object{URL: s.objectURL(object), PublicID: object}, nil
}

func (s *GCSStore) Delete(ctx context.Context, publicID string) error {
	if s == nil || s.Bucket == nil {
		return errors.New("media.gcs: bucket is nil")
	}
	err := s.Bucket.Object(publicID).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSStore) PublicIDFromURL(rawURL string) string {
	prefix := s.PublicBaseURL + "/" + s.BucketName + "/"
	object := strings.TrimPrefix(rawURL, prefix)
	if unescaped, err := url.PathUnescape(object); err == nil {
		object = unescaped
	}
	return object
}

func (s *GCSStore) objectURL(object string) string {
	segments := strings.Split(object, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.PublicBaseURL + "/" + s.BucketName + "/" + strings.Join(segments, "/")
}
