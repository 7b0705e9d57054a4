package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxImageBytes caps attachments before base64 inflation.
const DefaultMaxImageBytes = 8 << 20

// ErrImageRead aborts a submission whose attachment could not be read.
var ErrImageRead = errors.New("session: image could not be read")

// Attachment is a photo picked for an event.
type Attachment struct {
	Name     string
	Reader   io.Reader
	MaxBytes int64
}

// ReadImage reads the whole attachment and returns it as a data URI. It
// completes before the caller touches the store; any failure wraps
// ErrImageRead.
func ReadImage(ctx context.Context, a Attachment) (string, error) {
	if a.Reader == nil {
		return "", fmt.Errorf("%w: no data", ErrImageRead)
	}
	limit := a.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}

	raw, err := io.ReadAll(io.LimitReader(a.Reader, limit+1))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrImageRead, a.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRead, err)
	}
	if int64(len(raw)) > limit {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrImageRead, a.Name, limit)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrImageRead, a.Name)
	}

	mime := http.DetectContentType(raw)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s is %s, not an image", ErrImageRead, a.Name, mime)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
