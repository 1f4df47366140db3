// Package config reads runtime settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreFile      = "file"
	StorePostgres  = "postgres"
	StorePgx       = "pgx"
	StoreSQLite    = "sqlite3"
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"

	MediaLocal      = "local"
	MediaGCS        = "gcs"
	MediaFirebase   = "firebase"
	MediaCloudinary = "cloudinary"

	// DeleteAuthRole requires a bearer token of the owner or an admin.
	DeleteAuthRole = "role"
	// DeleteAuthPassword requires the shared ADMIN_PASSWORD.
	DeleteAuthPassword = "password"
)

type Config struct {
	Port string

	StoreBackend string
	DataFile     string
	UsersFile    string
	DatabaseURL  string

	MongoURI    string
	MongoDBName string

	FirestoreProjectID       string
	FirestoreCredentialsFile string

	MediaBackend          string
	UploadDir             string
	MediaFolder           string
	GCSBucket             string
	GCSPublicBaseURL      string
	GCPCredentials        string
	FirebaseCredentials   string
	FirebaseStorageBucket string
	CloudinaryCloudName   string
	CloudinaryAPIKey      string
	CloudinaryAPISecret   string

	JWTSecret     string
	JWTSecretName string
	DeleteAuth    string
	AdminPassword string

	TagCategoriesFile string
	PublicDir         string
	CORSOrigins       []string
}

// Load reads .env when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] WARN: could not load .env: %v", err)
	}

	return &Config{
		Port: getenvDefault("PORT", "3000"),

		StoreBackend: strings.ToLower(getenvDefault("STORE_BACKEND", StoreFile)),
		DataFile:     getenvDefault("DATA_FILE", "data.json"),
		UsersFile:    getenvDefault("USERS_FILE", "users.json"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		MongoURI:    os.Getenv("MONGODB_URI"),
		MongoDBName: getenvDefault("MONGODB_DB_NAME", "komugigallery"),

		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),

		MediaBackend:          strings.ToLower(getenvDefault("MEDIA_BACKEND", MediaLocal)),
		UploadDir:             getenvDefault("UPLOAD_DIR", "uploads"),
		MediaFolder:           getenvDefault("MEDIA_FOLDER", "komugigallery"),
		GCSBucket:             os.Getenv("GCS_BUCKET"),
		GCSPublicBaseURL:      os.Getenv("GCS_PUBLIC_BASE_URL"),
		GCPCredentials:        os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirebaseCredentials:   os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseStorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),
		CloudinaryCloudName:   os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:      os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:   os.Getenv("CLOUDINARY_API_SECRET"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTSecretName: os.Getenv("JWT_SECRET_NAME"),
		DeleteAuth:    strings.ToLower(getenvDefault("DELETE_AUTH", DeleteAuthRole)),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		TagCategoriesFile: os.Getenv("TAG_CATEGORIES_FILE"),
		PublicDir:         getenvDefault("PUBLIC_DIR", "public"),
		CORSOrigins:       splitList(getenvDefault("CORS_ORIGINS", "*")),
	}
}

// Validate checks that the selected backends have what they need. The token
// secret is checked after Secret Manager resolution, see RequireJWTSecret.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreFile:
	case StorePostgres, StorePgx, StoreSQLite:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=%s", c.StoreBackend))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for STORE_BACKEND=mongo"))
		}
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required for STORE_BACKEND=firestore"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.MediaBackend {
	case MediaLocal:
	case MediaGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for MEDIA_BACKEND=gcs"))
		}
	case MediaFirebase:
		if c.FirebaseStorageBucket == "" {
			errs = append(errs, errors.New("FIREBASE_STORAGE_BUCKET is required for MEDIA_BACKEND=firebase"))
		}
	case MediaCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for MEDIA_BACKEND=cloudinary"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_BACKEND %q", c.MediaBackend))
	}

	switch c.DeleteAuth {
	case DeleteAuthRole:
	case DeleteAuthPassword:
		if c.AdminPassword == "" {
			errs = append(errs, errors.New("ADMIN_PASSWORD is required for DELETE_AUTH=password"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DELETE_AUTH %q", c.DeleteAuth))
	}

	return errors.Join(errs...)
}

func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET (or JWT_SECRET_NAME) is required")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
