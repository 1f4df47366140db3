package services

import (
	"context"
	"fmt"
	"log"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// FirebaseApp wraps the Firebase app created once at startup.
type FirebaseApp struct {
	App           *firebase.App
	StorageBucket string
}

// NewFirebaseApp initializes Firebase. An empty credentialsPath falls back to
// Application Default Credentials.
func NewFirebaseApp(ctx context.Context, credentialsPath, storageBucket string) (*FirebaseApp, error) {
	log.Printf("[firebase] initializing app bucket=%s", storageBucket)

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: storageBucket}, opts...)
	if err != nil {
		log.Printf("[firebase][ERROR] failed to init app: %v", err)
		return nil, err
	}

	log.Println("[firebase] app initialized")
	return &FirebaseApp{App: app, StorageBucket: storageBucket}, nil
}

// Bucket returns the configured Firebase Storage bucket.
func (f *FirebaseApp) Bucket(ctx context.Context) (*gcs.BucketHandle, error) {
	client, err := f.App.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase storage bucket: %w", err)
	}
	return bucket, nil
}
