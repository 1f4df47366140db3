package main

import (
	"context"
	"flag"
	"log"
	"os"

	"komugigallery.com/gallery/config"
	"komugigallery.com/gallery/database"
	"komugigallery.com/gallery/services"
)

func main() {
	username := flag.String("username", "admin", "account to create or update")
	password := flag.String("password", "", "password for the account (defaults to $ADMIN_PASSWORD)")
	rotate := flag.Bool("rotate", false, "replace the password when the account already exists")
	promote := flag.String("promote", "", "grant admin to an existing account and exit")
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("InitAdmin: invalid configuration: %v", err)
	}

	stores, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("InitAdmin: persistence init failed:", err)
	}
	defer stores.Close()

	auth := services.NewAuthService(stores.Users, nil, "")

	if *promote != "" {
		if err := auth.SetAdmin(ctx, *promote, true); err != nil {
			log.Fatalf("InitAdmin: promote %s: %v", *promote, err)
		}
		log.Printf("InitAdmin: %s is now an admin", *promote)
		return
	}

	pw := *password
	if pw == "" {
		pw = os.Getenv("ADMIN_PASSWORD")
	}
	if pw == "" {
		log.Fatal("InitAdmin: -password or ADMIN_PASSWORD is required")
	}

	written, err := auth.BootstrapAdmin(ctx, *username, pw, *rotate)
	if err != nil {
		log.Fatalf("InitAdmin: %v", err)
	}
	switch {
	case !written:
		log.Printf("InitAdmin: %s already exists, nothing to do (use -rotate to reset the password)", *username)
	case *rotate:
		log.Printf("InitAdmin: saved admin %s with the new password", *username)
	default:
		log.Printf("InitAdmin: created admin %s", *username)
	}
}
