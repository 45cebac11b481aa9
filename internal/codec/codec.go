// Package codec turns local files into transport-ready attachments and turns
// received byte payloads back into displayable resources.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultMimeType is used when a file's type cannot be determined.
const DefaultMimeType = "application/octet-stream"

// ErrTooLarge is wrapped in a ReadError when a file exceeds the size limit.
var ErrTooLarge = errors.New("file exceeds the size limit")

// ReadError reports a local file that could not be read.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("could not read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// PendingAttachment is a local file selected for sending but not sent yet.
type PendingAttachment struct {
	Data        []byte
	DisplayName string
	MimeType    string
	Size        int
	Preview     Handle
}

// Resource is a displayable byte sequence.
type Resource struct {
	Data        []byte
	MimeType    string
	Size        int
	Fingerprint string
}

// NewResource wraps data without copying it.
func NewResource(data []byte, mimeType string) *Resource {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return &Resource{
		Data:        data,
		MimeType:    mimeType,
		Size:        len(data),
		Fingerprint: Fingerprint(data),
	}
}

// Fingerprint returns a short BLAKE2b digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// Encode reads r to the end. A limit <= 0 disables the size check.
func Encode(ctx context.Context, r io.Reader, displayName, mimeType string, limit int64) (*PendingAttachment, error) {
	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &ReadError{Name: displayName, Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &ReadError{Name: displayName, Err: ErrTooLarge}
	}
	if mimeType == "" {
		mimeType = DetectMimeType(displayName, data)
	}
	return &PendingAttachment{
		Data:        data,
		DisplayName: displayName,
		MimeType:    mimeType,
		Size:        len(data),
	}, nil
}

// EncodeFile reads the file at path into a PendingAttachment.
func EncodeFile(ctx context.Context, path string, limit int64) (*PendingAttachment, error) {
	name := filepath.Base(path)
	file, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	if info.IsDir() {
		return nil, &ReadError{Name: name, Err: errors.New("is a directory")}
	}
	if limit > 0 && info.Size() > limit {
		return nil, &ReadError{Name: name, Err: ErrTooLarge}
	}
	return Encode(ctx, file, name, "", limit)
}

// mediaTypes covers media extensions missing from Go's builtin table, so
// detection does not depend on the host's mime.types.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".heic": "image/heic",
	".bmp":  "image/bmp",
	".txt":  "text/plain; charset=utf-8",
}

// DetectMimeType guesses a MIME type from the file extension, then from content.
func DetectMimeType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if len(data) == 0 {
		return DefaultMimeType
	}
	return http.DetectContentType(data)
}

// MediaKind groups MIME types by how they are presented.
type MediaKind int

const (
	KindOther MediaKind = iota
	KindImage
	KindVideo
	KindAudio
	KindDocument
)

// KindOf classifies a MIME type.
func KindOf(mimeType string) MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.Contains(mimeType, "pdf"):
		return KindDocument
	default:
		return KindOther
	}
}

// CanPreview reports whether a preview resource is materialized for the type.
func CanPreview(mimeType string) bool {
	k := KindOf(mimeType)
	return k == KindImage || k == KindVideo
}

// ctxReader aborts a read once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
