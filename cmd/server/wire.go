package main

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"komugigallery.com/gallery/config"
	"komugigallery.com/gallery/media"
	"komugigallery.com/gallery/services"
)

func openMedia(ctx context.Context, cfg *config.Config) (media.Store, func(), error) {
	noop := func() {}

	switch cfg.MediaBackend {
	case config.MediaLocal:
		s, err := media.NewLocalStore(cfg.UploadDir, "/uploads/")
		return s, noop, err

	case config.MediaGCS:
		var opts []option.ClientOption
		if cfg.GCPCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCPCredentials))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("storage.NewClient: %w", err)
		}
		log.Printf("[boot] GCS media bucket=%s", cfg.GCSBucket)
		s := media.NewGCSStore(client.Bucket(cfg.GCSBucket), cfg.GCSBucket, cfg.GCSPublicBaseURL, cfg.MediaFolder)
		return s, func() { client.Close() }, nil

	case config.MediaFirebase:
		app, err := services.NewFirebaseApp(ctx, cfg.FirebaseCredentials, cfg.FirebaseStorageBucket)
		if err != nil {
			return nil, noop, err
		}
		bucket, err := app.Bucket(ctx)
		if err != nil {
			return nil, noop, err
		}
		return media.NewGCSStore(bucket, cfg.FirebaseStorageBucket, cfg.GCSPublicBaseURL, cfg.MediaFolder), noop, nil

	case config.MediaCloudinary:
		s, err := media.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.MediaFolder)
		return s, noop, err
	}
	return nil, noop, fmt.Errorf("unknown media backend %q", cfg.MediaBackend)
}
