package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"komugigallery.com/gallery/config"
	"komugigallery.com/gallery/database"
	"komugigallery.com/gallery/handlers"
	"komugigallery.com/gallery/routes"
	"komugigallery.com/gallery/services"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[boot] invalid configuration: %v", err)
	}
	if err := cfg.ResolveSecrets(ctx); err != nil {
		log.Fatalf("[boot] resolve secrets: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("[boot] %v", err)
	}

	rules, err := config.LoadCategoryRules(cfg.TagCategoriesFile)
	if err != nil {
		log.Fatalf("[boot] load tag categories: %v", err)
	}

	stores, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[boot] persistence init failed: %v", err)
	}
	defer stores.Close()

	mediaStore, closeMedia, err := openMedia(ctx, cfg)
	if err != nil {
		log.Fatalf("[boot] media init failed: %v", err)
	}
	defer closeMedia()

	authService := services.NewAuthService(stores.Users, []byte(cfg.JWTSecret), cfg.AdminPassword)
	postService := services.NewPostService(stores.Posts, mediaStore, services.NewCategorizer(rules))

	router := mux.NewRouter()
	router.Use(handlers.Recover, handlers.LogRequests, handlers.Authenticate(authService))
	routes.CreateAuthRoutes(authService, router)
	routes.CreatePostRoutes(postService, authService, cfg.DeleteAuth, router)

	uploadDir := ""
	if cfg.MediaBackend == config.MediaLocal {
		uploadDir = cfg.UploadDir
	}
	routes.CreateStaticRoutes(uploadDir, cfg.PublicDir, router)

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:         600,
	})(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("[boot] store=%s media=%s deleteAuth=%s", cfg.StoreBackend, cfg.MediaBackend, cfg.DeleteAuth)
	log.Printf("[boot] listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[boot] server error: %v", err)
	}
	<-idleConnsClosed
}
