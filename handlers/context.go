// Package handlers is the HTTP layer. Each handler decodes the request,
// calls one service and writes the standard envelope with pkg.JSON or
// pkg.Error.
package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/pkg/ratelimit"
	"github.com/devchat/devchat/services"
)

type contextKey string

// UserContextKey holds the signed-in *models.User, set by the auth
// middleware.
const UserContextKey contextKey = "user"

// decodeBody reads the JSON body into v and answers 400 when it is not
// valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// tooManyRequests answers 429 with Retry-After. message gets the wait
// appended, e.g. "please wait 15 seconds".
func tooManyRequests(w http.ResponseWriter, wait time.Duration, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(ratelimit.Seconds(wait)))
	pkg.ErrorWithMessage(w, http.StatusTooManyRequests, message+" "+ratelimit.FormatWait(wait))
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return nil, false
	}
	return user, true
}

// readImage pulls the "file" field out of a multipart form. The caller
// closes the returned file.
func readImage(w http.ResponseWriter, r *http.Request, maxSize int64) (*services.ImageUpload, multipart.File, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, nil, fmt.Errorf("%w: expected multipart/form-data", pkg.ErrBadRequest)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to parse multipart form", pkg.ErrBadRequest)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: file field is required", pkg.ErrBadRequest)
	}

	return &services.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, file, nil
}
