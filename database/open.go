package database

import (
	"context"
	"fmt"
	"log"

	"komugigallery.com/gallery/config"
	"komugigallery.com/gallery/store"
)

// Stores holds the persistence adapters selected by STORE_BACKEND. Every
// backend serves both posts and users.
type Stores struct {
	Posts  store.PostStore
	Users  store.UserStore
	closer func()
}

func (s *Stores) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		fs := store.NewFileStore(cfg.DataFile, cfg.UsersFile)
		return &Stores{Posts: fs, Users: fs}, nil

	case config.StorePostgres, config.StorePgx, config.StoreSQLite:
		db, err := ConnectDB(cfg.StoreBackend, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := store.NewSQLStore(db)
		return &Stores{Posts: s, Users: s, closer: func() { db.Close() }}, nil

	case config.StoreMongo:
		client, db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		s := store.NewMongoStore(db)
		return &Stores{Posts: s, Users: s, closer: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("[db] mongo disconnect: %v", err)
			}
		}}, nil

	case config.StoreFirestore:
		client, err := ConnectFirestore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, err
		}
		s := store.NewFirestoreStore(client)
		return &Stores{Posts: s, Users: s, closer: func() { client.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
