package media

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"friendbook/models"
)

// PublicPrefix is the URL prefix every stored file is addressed by.
const PublicPrefix = "/uploads/"

var ErrNotExist = errors.New("media: object does not exist")

// Policy constrains one upload field.
type Policy struct {
	Prefix   string
	MaxFiles int
	MaxSize  int64
	Allowed  []string
}

var (
	ProfilePolicy = Policy{Prefix: "profile-", MaxFiles: 1, MaxSize: 5 << 20, Allowed: []string{"image/"}}
	PostPolicy    = Policy{Prefix: "post-", MaxFiles: 5, MaxSize: 10 << 20, Allowed: []string{"image/", "video/"}}
)

func (p Policy) allows(contentType string) bool {
	for _, prefix := range p.Allowed {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// RejectError is returned for uploads that break a Policy.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

// Object is an opened stored file.
type Object struct {
	io.ReadSeekCloser
	ContentType string
	ModTime     time.Time
}

// Storage is a flat namespace of named files.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (*Object, error)
	Remove(ctx context.Context, name string) error
}

// Upload is a validated file ready to be stored.
type Upload struct {
	Header      *multipart.FileHeader
	ContentType string
}

// Stored describes a saved upload.
type Stored struct {
	Path        string
	ContentType string
}

// Service validates uploads against a Policy and writes them to Storage.
type Service struct {
	storage Storage
	logger  *zap.Logger
}

func NewService(storage Storage, logger *zap.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Validate checks count, size and type of every file without writing anything.
func (s *Service) Validate(files []*multipart.FileHeader, p Policy) ([]Upload, error) {
	if len(files) > p.MaxFiles {
		return nil, &RejectError{Reason: fmt.Sprintf("too many files: at most %d allowed", p.MaxFiles)}
	}

	uploads := make([]Upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > p.MaxSize {
			return nil, &RejectError{Reason: fmt.Sprintf("%s exceeds the %dMB limit", fh.Filename, p.MaxSize>>20)}
		}
		ct, err := contentType(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		if !p.allows(ct) {
			return nil, &RejectError{Reason: fmt.Sprintf("unsupported file type %q", ct)}
		}
		if ext := strings.ToLower(filepath.Ext(fh.Filename)); !extensionMatches(ext, ct) {
			return nil, &RejectError{Reason: fmt.Sprintf("file extension %q does not match type %q", ext, ct)}
		}
		uploads = append(uploads, Upload{Header: fh, ContentType: ct})
	}
	return uploads, nil
}

// Save writes validated uploads. If any write fails the files already
// written are removed.
func (s *Service) Save(ctx context.Context, uploads []Upload, p Policy) ([]Stored, error) {
	stored := make([]Stored, 0, len(uploads))
	for _, u := range uploads {
		name := p.Prefix + uuid.NewString() + strings.ToLower(filepath.Ext(u.Header.Filename))
		if err := s.saveOne(ctx, name, u); err != nil {
			s.RemoveAll(ctx, Paths(stored))
			return nil, fmt.Errorf("save %s: %w", u.Header.Filename, err)
		}
		stored = append(stored, Stored{Path: PublicPrefix + name, ContentType: u.ContentType})
	}
	return stored, nil
}

func (s *Service) saveOne(ctx context.Context, name string, u Upload) error {
	f, err := u.Header.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	return s.storage.Save(ctx, name, f, u.Header.Size, u.ContentType)
}

// Ingest validates then saves.
func (s *Service) Ingest(ctx context.Context, files []*multipart.FileHeader, p Policy) ([]Stored, error) {
	uploads, err := s.Validate(files, p)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, uploads, p)
}

// Remove deletes the file behind a public path.
func (s *Service) Remove(ctx context.Context, publicPath string) error {
	name, ok := NameOf(publicPath)
	if !ok {
		return fmt.Errorf("not a media path: %q", publicPath)
	}
	return s.storage.Remove(ctx, name)
}

// RemoveAll deletes every path, logging and skipping failures.
func (s *Service) RemoveAll(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.Remove(ctx, p); err != nil && !errors.Is(err, ErrNotExist) {
			s.logger.Warn("media cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *Service) Open(ctx context.Context, name string) (*Object, error) {
	if !validName(name) {
		return nil, ErrNotExist
	}
	return s.storage.Open(ctx, name)
}

// NameOf extracts the stored name from a public path such as
// "/uploads/post-1234.png". Anything that is not a single path element under
// PublicPrefix is rejected.
func NameOf(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if !validName(name) {
		return "", false
	}
	return name, true
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && path.Clean(name) == name
}

// Paths returns the public paths of stored files.
func Paths(stored []Stored) []string {
	paths := make([]string, 0, len(stored))
	for _, s := range stored {
		paths = append(paths, s.Path)
	}
	return paths
}

// KindOf classifies a content type.
func KindOf(contentType string) models.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	default:
		return models.MediaNone
	}
}

// KindOfSet applies the first file's kind to the whole set.
func KindOfSet(stored []Stored) models.MediaKind {
	if len(stored) == 0 {
		return models.MediaNone
	}
	return KindOf(stored[0].ContentType)
}

// extensionMatches reports whether a stored name ending in ext would be
// served as the same kind of media as contentType. Extensions the platform
// does not know are accepted; they are served by sniffed content.
func extensionMatches(ext, contentType string) bool {
	if ext == "" {
		return true
	}
	extType := mime.TypeByExtension(ext)
	if extType == "" {
		return true
	}
	if mt, _, err := mime.ParseMediaType(extType); err == nil {
		extType = mt
	}
	return KindOf(extType) != models.MediaNone && KindOf(extType) == KindOf(contentType)
}

// ServeType is the Content-Type a stored object is served with. Anything
// that is not an image or a video is downgraded so browsers never render it.
func ServeType(contentType string) string {
	if KindOf(contentType) == models.MediaNone {
		return "application/octet-stream"
	}
	return contentType
}

//go:embed assets/user-photo.jpg
var defaultAvatar []byte

// SeedDefaults stores the placeholder profile picture when the backend does
// not have it yet.
func (s *Service) SeedDefaults(ctx context.Context) error {
	name, ok := NameOf(models.DefaultProfilePicture)
	if !ok {
		return fmt.Errorf("default picture %q is not a media path", models.DefaultProfilePicture)
	}

	obj, err := s.storage.Open(ctx, name)
	if err == nil {
		return obj.Close()
	}
	if !errors.Is(err, ErrNotExist) {
		return err
	}

	if err := s.storage.Save(ctx, name, bytes.NewReader(defaultAvatar), int64(len(defaultAvatar)), "image/jpeg"); err != nil {
		return fmt.Errorf("seed %s: %w", name, err)
	}
	s.logger.Info("seeded default profile picture", zap.String("name", name))
	return nil
}

// contentType trusts the part header unless it is missing or generic, in
// which case the content is sniffed.
func contentType(fh *multipart.FileHeader) (string, error) {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			return mt, nil
		}
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	mt, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return detected.String(), nil
	}
	return mt, nil
}
