package routes

import (
	"github.com/gorilla/mux"
	"komugigallery.com/gallery/handlers"
	"komugigallery.com/gallery/services"
)

func CreateAuthRoutes(auth *services.AuthService, router *mux.Router) *mux.Router {
	router.HandleFunc("/login", handlers.Login(auth)).Methods("POST")
	router.HandleFunc("/auth/login", handlers.Login(auth)).Methods("POST")

	return router
}
