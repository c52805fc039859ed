// Package media turns inline image payloads into object-storage URLs.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURL is returned when an image payload looks like a data URL but cannot be decoded.
var ErrInvalidDataURL = errors.New("invalid data url")

// Uploader stores an image payload and returns the URL clients should render.
type Uploader interface {
	Upload(ctx context.Context, ownerID, dataURL string) (string, error)
}

// IsDataURL reports whether s is an inline "data:" payload rather than a URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURL splits a base64 data URL into its content type and bytes.
// Only image/* payloads are accepted.
func DecodeDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	contentType, encoding, ok := strings.Cut(header, ";")
	if !ok || encoding != "base64" || !strings.HasPrefix(contentType, "image/") {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	return contentType, data, nil
}
