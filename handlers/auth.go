package handlers

import (
	"fmt"
	"net/http"

	"komugigallery.com/gallery/services"
)

func Login(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req, map[string]*string{"username": &req.Username, "password": &req.Password}); err != nil {
			writeError(w, err, "Login", "")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, fmt.Errorf("%w: username and password are required", services.ErrValidation), "Login", "")
			return
		}

		token, err := auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err, "Login", "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
