package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"komugigallery.com/gallery/media"
	"komugigallery.com/gallery/services"
)

const maxUploadMemory = 32 << 20

// maxUploadBytes caps a whole upload request body.
var maxUploadBytes int64 = 200 << 20

func UploadPost(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				})
				return
			}
			writeError(w, fmt.Errorf("%w: invalid multipart form", services.ErrValidation), "UploadPost", "")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var headers []*multipart.FileHeader
		headers = append(headers, r.MultipartForm.File["images"]...)
		headers = append(headers, r.MultipartForm.File["images[]"]...)

		files := make([]media.File, 0, len(headers))
		for _, fh := range headers {
			f, err := readFile(fh)
			if err != nil {
				writeError(w, fmt.Errorf("%w: unreadable file %q", services.ErrValidation, fh.Filename), "UploadPost", "")
				return
			}
			files = append(files, f)
		}

		post, err := svc.Create(r.Context(), r.FormValue("tags"), files, services.AuthFromContext(r.Context()))
		if err != nil {
			writeError(w, err, "UploadPost", "Upload failed")
			return
		}

		if wantsHTML(r) {
			http.Redirect(w, r, "/gallery.html", http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":   true,
			"imageUrls": post.ImageURLs,
			"post":      post,
		})
	}
}

func GetGalleryData(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := parsePage(q.Get("page"))

		result, err := svc.List(r.Context(), page, q.Get("tag"))
		if err != nil {
			writeError(w, err, "GetGalleryData", "Failed to fetch gallery data")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func GetTags(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := svc.Tags(r.Context())
		if err != nil {
			writeError(w, err, "GetTags", "Failed to fetch tags")
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func SearchPosts(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := svc.Search(r.Context(), r.URL.Query().Get("tag"))
		if err != nil {
			writeError(w, err, "SearchPosts", "Search failed")
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func UpdateTags(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tags, err := decodeTagUpdate(r)
		if err != nil {
			writeError(w, err, "UpdateTags", "")
			return
		}

		if err := svc.UpdateTags(r.Context(), id, tags); err != nil {
			writeError(w, err, "UpdateTags", "Failed to update tags")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func GetTagCategories(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.Categories(r.Context())
		if err != nil {
			writeError(w, err, "GetTagCategories", "Failed to fetch tag categories")
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

// DeletePost deletes as the bearer-token caller. Mount it behind RequireAuth.
func DeletePost(svc *services.PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := svc.Delete(r.Context(), id, services.AuthFromContext(r.Context())); err != nil {
			writeError(w, err, "DeletePost", "Failed to delete post")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// DeletePostWithPassword deletes after checking the shared admin password.
func DeletePostWithPassword(svc *services.PostService, auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID       string `json:"id"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req, map[string]*string{"id": &req.ID, "password": &req.Password}); err != nil {
			writeError(w, err, "DeletePostWithPassword", "")
			return
		}
		if id := mux.Vars(r)["id"]; id != "" {
			req.ID = id
		}
		if strings.TrimSpace(req.ID) == "" {
			writeError(w, fmt.Errorf("%w: id is required", services.ErrValidation), "DeletePostWithPassword", "")
			return
		}

		requester, err := auth.CheckSharedPassword(req.Password)
		if err != nil {
			writeError(w, err, "DeletePostWithPassword", "")
			return
		}
		if err := svc.Delete(r.Context(), req.ID, requester); err != nil {
			writeError(w, err, "DeletePostWithPassword", "Failed to delete post")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func readFile(fh *multipart.FileHeader) (media.File, error) {
	f, err := fh.Open()
	if err != nil {
		return media.File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return media.File{}, err
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// parsePage returns 1 for missing, malformed or non-positive values.
func parsePage(s string) int {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// wantsHTML is true for plain browser form posts.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// decodeTagUpdate reads {id, tags} where tags is either a comma-separated
// string or an array of strings. A list that normalizes to no tags is
// rejected like a missing one.
func decodeTagUpdate(r *http.Request) (string, []string, error) {
	missing := fmt.Errorf("%w: id and tags are required", services.ErrValidation)

	var (
		id   string
		tags []string
	)
	if !isJSON(r) {
		id = strings.TrimSpace(r.FormValue("id"))
		tags = services.ParseTags(r.FormValue("tags"))
	} else {
		var req struct {
			ID   json.RawMessage `json:"id"`
			Tags json.RawMessage `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, fmt.Errorf("%w: invalid request body", services.ErrValidation)
		}
		id = rawID(req.ID)

		var text string
		var list []string
		switch {
		case len(req.Tags) == 0 || string(req.Tags) == "null":
		case json.Unmarshal(req.Tags, &text) == nil:
			tags = services.ParseTags(text)
		case json.Unmarshal(req.Tags, &list) == nil:
			tags = services.NormalizeTags(list)
		default:
			return "", nil, fmt.Errorf("%w: tags must be a string or an array of strings", services.ErrValidation)
		}
	}

	if id == "" || len(tags) == 0 {
		return "", nil, missing
	}
	return id, tags, nil
}

// rawID accepts ids sent as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeBody fills v from a JSON body, or the given fields from a form body.
func decodeBody(r *http.Request, v any, formFields map[string]*string) error {
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: invalid request body", services.ErrValidation)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: invalid form body", services.ErrValidation)
	}
	for name, dst := range formFields {
		*dst = r.PostFormValue(name)
	}
	return nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
