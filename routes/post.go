package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"komugigallery.com/gallery/config"
	"komugigallery.com/gallery/handlers"
	"komugigallery.com/gallery/services"
)

// CreatePostRoutes registers the gallery API. Exactly one delete strategy is
// mounted, chosen by deleteAuth.
func CreatePostRoutes(svc *services.PostService, auth *services.AuthService, deleteAuth string, router *mux.Router) *mux.Router {
	router.HandleFunc("/upload", handlers.UploadPost(svc)).Methods("POST")
	router.HandleFunc("/gallery-data", handlers.GetGalleryData(svc)).Methods("GET")
	router.HandleFunc("/tags", handlers.GetTags(svc)).Methods("GET")
	router.HandleFunc("/search", handlers.SearchPosts(svc)).Methods("GET")
	router.HandleFunc("/update-tags", handlers.UpdateTags(svc)).Methods("POST")
	router.HandleFunc("/tag-categories", handlers.GetTagCategories(svc)).Methods("GET")

	switch deleteAuth {
	case config.DeleteAuthPassword:
		router.HandleFunc("/delete-post", handlers.DeletePostWithPassword(svc, auth)).Methods("POST")
		router.HandleFunc("/delete/{id}", handlers.DeletePostWithPassword(svc, auth)).Methods("DELETE")
	default:
		deletePost := handlers.RequireAuth(auth, handlers.DeletePost(svc))
		router.Handle("/delete/{id}", deletePost).Methods("DELETE")
		router.Handle("/posts/{id}", deletePost).Methods("DELETE")
	}

	return router
}

// CreateStaticRoutes serves local media and the browser client. It must be
// registered after the API routes.
func CreateStaticRoutes(uploadDir, publicDir string, router *mux.Router) *mux.Router {
	if uploadDir != "" {
		router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(publicDir)))

	return router
}
