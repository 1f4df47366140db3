package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore hosts images on Cloudinary under Folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	Folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &CloudinaryStore{cld: cld, Folder: folder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, f File) (Object, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(f.Data), uploader.UploadParams{
		Folder: s.Folder,
	})
	if err != nil {
		return Object{}, err
	}
	if resp.Error.Message != "" {
		return Object{}, errors.New(resp.Error.Message)
	}
	return Object{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if resp.Error.Message != "" {
		return errors.New(resp.Error.Message)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("destroy %s: %s", publicID, resp.Result)
	}
	return nil
}

// PublicIDFromURL takes the folder and file segments of a delivery URL and
// drops the extension: ".../upload/v123/komugigallery/abc.jpg" -> "komugigallery/abc".
func (s *CloudinaryStore) PublicIDFromURL(url string) string {
	return cloudinaryPublicID(url)
}

func cloudinaryPublicID(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	id := strings.Join(parts, "/")
	return strings.TrimSuffix(id, path.Ext(id))
}
