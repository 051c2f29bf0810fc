package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrMediaNotFound is returned when no stored file has the requested name.
	ErrMediaNotFound = errors.New("media file not found")
	// ErrInvalidName is returned for names that cannot address a file inside the store.
	ErrInvalidName = errors.New("invalid media file name")
)

// MediaStore holds uploaded audio files addressed by their client-supplied name.
// Saving under an existing name replaces the previous file.
type MediaStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) error
	Open(ctx context.Context, name string) (*Media, error)
	List(ctx context.Context) ([]MediaInfo, error)
}

// Media is an open stored file. Callers must Close it.
type Media struct {
	io.ReadSeekCloser
	MediaInfo
}

// MediaInfo describes a stored file.
type MediaInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// validateName rejects names that are empty or would leave the store's namespace.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".weba": "audio/webm",
}

// ContentType guesses the MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
