package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
)

// FilesRoute is the URL prefix uploaded files are served under.
const FilesRoute = "/api/files/"

// ImageUpload is an image received from a multipart form.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadService stores images on disk and returns their download URL.
type UploadService interface {
	// SaveChatImage stores an image for target and returns its URL. The
	// caller sends the URL as an image message.
	SaveChatImage(ctx context.Context, userID string, target models.MessageTarget, img *ImageUpload) (string, error)
	// SaveAvatar overwrites the user's avatar file. The returned URL carries
	// a version parameter so clients refetch it.
	SaveAvatar(ctx context.Context, userID string, img *ImageUpload) (string, error)
}

type uploadService struct {
	guard     accessGuard
	uploadDir string
	publicURL string
	maxSize   int64
}

func NewUploadService(
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	uploadDir string,
	publicURL string,
	maxSize int64,
) UploadService {
	return &uploadService{
		guard:     accessGuard{channelRepo: channelRepo, userRepo: userRepo},
		uploadDir: uploadDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		maxSize:   maxSize,
	}
}

// allowedImageTypes maps accepted MIME types to the extension files are
// stored with.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

func (s *uploadService) SaveChatImage(ctx context.Context, userID string, target models.MessageTarget, img *ImageUpload) (string, error) {
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return "", err
	}

	body, ext, err := s.checkImage(img)
	if err != nil {
		return "", err
	}

	dir := "chat/public"
	if target.Scope == models.ScopePrivate {
		dir = path.Join("chat/private", target.Key)
	}
	rel := path.Join(dir, uuid.NewString()+ext)

	if err := s.write(rel, body); err != nil {
		return "", err
	}

	log.Printf("[upload] chat image stored: %s by %s", rel, userID)
	return s.publicURL + FilesRoute + rel, nil
}

func (s *uploadService) SaveAvatar(ctx context.Context, userID string, img *ImageUpload) (string, error) {
	body, _, err := s.checkImage(img)
	if err != nil {
		return "", err
	}

	rel := path.Join("avatars/users", userID)
	if err := s.write(rel, body); err != nil {
		return "", err
	}

	version := strconv.FormatInt(time.Now().UnixNano(), 10)
	return s.publicURL + FilesRoute + rel + "?v=" + version, nil
}

// checkImage accepts JPEG and PNG only. The extension, the declared type
// and the sniffed content must all agree.
func (s *uploadService) checkImage(img *ImageUpload) (io.Reader, string, error) {
	if img == nil || img.Body == nil {
		return nil, "", fmt.Errorf("%w: no file uploaded", pkg.ErrBadRequest)
	}
	if img.Size > s.maxSize {
		return nil, "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(sanitizeFilename(img.Filename))))
	byExt = baseMIME(byExt)
	ext, ok := allowedImageTypes[byExt]
	if !ok {
		return nil, "", fmt.Errorf("%w: only jpeg and png images are allowed", pkg.ErrBadRequest)
	}

	// Form encoders that do not know the type send application/octet-stream.
	declared := baseMIME(img.ContentType)
	if declared != "" && declared != "application/octet-stream" && declared != byExt {
		return nil, "", fmt.Errorf("%w: file type does not match its extension", pkg.ErrBadRequest)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(img.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if baseMIME(http.DetectContentType(head)) != byExt {
		return nil, "", fmt.Errorf("%w: file content is not a %s image", pkg.ErrBadRequest, strings.TrimPrefix(ext, "."))
	}

	return io.MultiReader(bytes.NewReader(head), img.Body), ext, nil
}

// write stores body at rel below uploadDir. The file is written to a
// temporary name first and renamed, so readers never see a partial file.
func (s *uploadService) write(rel string, body io.Reader) error {
	dest := filepath.Join(s.uploadDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(body, s.maxSize+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(tmpName)
		return fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func baseMIME(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// sanitizeFilename keeps only the last path element of a client-supplied
// name.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '\\' || r == '\x00' {
			return '/'
		}
		return r
	}, name)
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "unnamed"
	}
	return name
}
