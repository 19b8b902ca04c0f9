package ingest

import (
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/starford/insighthink/internal/apperr"
)

// MaxAssetSize is the largest accepted asset, in bytes.
const MaxAssetSize = 5 << 20

// AllowedTypes lists the accepted asset MIME types.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/jpg"}

// sniffLen is how much content http.DetectContentType looks at.
const sniffLen = 512

// ValidateAsset checks, in order, the declared MIME type against
// AllowedTypes, the size against MaxAssetSize, and finally that the content
// really is the declared image type.
func ValidateAsset(f *File) error {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(f.ContentType, ";")[0]))
	if !slices.Contains(AllowedTypes, declared) {
		return apperr.Validation("%s: unsupported file type %q (allowed: %s)",
			f.Field, f.ContentType, strings.Join(AllowedTypes, ", "))
	}
	if f.Size > MaxAssetSize {
		return apperr.Validation("%s: file too large: %d bytes (max 5 MiB)", f.Field, f.Size)
	}

	rc, err := f.Open()
	if err != nil {
		return apperr.Decode("cannot read uploaded file", err)
	}
	defer rc.Close()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return apperr.Decode("cannot read uploaded file", err)
	}
	detected := strings.Split(http.DetectContentType(head[:n]), ";")[0]
	if canonicalType(detected) != canonicalType(declared) {
		return apperr.Validation("%s: content does not match declared type %s (detected: %s)",
			f.Field, declared, detected)
	}
	return nil
}

func canonicalType(t string) string {
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}
