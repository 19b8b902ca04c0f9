package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/insighthink/internal/apperr"
)

func TestValidateAsset(t *testing.T) {
	jpeg := []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF\x00")
	webp := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")

	tests := []struct {
		name    string
		file    *File
		wantErr bool
		msg     string
	}{
		{"png", NewFile("coverImage", "a.png", "image/png", pngHeader), false, ""},
		{"jpeg", NewFile("coverImage", "a.jpg", "image/jpeg", jpeg), false, ""},
		{"jpg alias", NewFile("coverImage", "a.jpg", "image/jpg", jpeg), false, ""},
		{"webp", NewFile("coverImage", "a.webp", "image/webp", webp), false, ""},
		{"gif rejected", NewFile("coverImage", "a.gif", "image/gif", []byte("GIF89a")), true, "image/jpeg, image/png, image/webp, image/jpg"},
		{"pdf rejected", NewFile("coverImage", "a.pdf", "application/pdf", []byte("%PDF-")), true, "unsupported file type"},
		{"mismatched content", NewFile("coverImage", "a.png", "image/png", []byte("<html></html>")), true, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAsset(tt.file)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestValidateAssetSizeLimit(t *testing.T) {
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxAssetSize)...)
	err := ValidateAsset(NewFile("coverImage", "big.png", "image/png", data))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "5 MiB")

	exact := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxAssetSize-len(pngHeader))...)
	assert.NoError(t, ValidateAsset(NewFile("coverImage", "ok.png", "image/png", exact)))
}

func TestValidateAssetChecksTypeBeforeSize(t *testing.T) {
	f := &File{Field: "coverImage", ContentType: "image/gif", Size: MaxAssetSize * 2}
	err := ValidateAsset(f)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "unsupported file type")
}
