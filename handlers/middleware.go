package handlers

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"komugigallery.com/gallery/services"
)

// Authenticate attaches the caller of a valid bearer token to the request
// context. Requests without a token, or with an invalid one, pass through
// anonymously; RequireAuth rejects them where identity matters.
func Authenticate(auth *services.AuthService) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if ok {
				if ac, err := auth.Authenticate(token); err == nil {
					r = r.WithContext(services.ContextWithAuth(r.Context(), ac))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth answers 401 unless the request carries a valid bearer token.
func RequireAuth(auth *services.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if services.AuthFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeError(w, fmt.Errorf("%w: missing bearer token", services.ErrUnauthorized), "RequireAuth", "")
			return
		}
		ac, err := auth.Authenticate(token)
		if err != nil {
			writeError(w, err, "RequireAuth", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(services.ContextWithAuth(r.Context(), ac)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[recover] PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
