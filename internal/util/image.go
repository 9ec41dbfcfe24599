package util

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EncodeImageFile reads the file at path and returns it as an inline
// "data:<mime>;base64,<payload>" URL. The MIME type is detected from the
// file content; anything that is not an image is rejected.
func EncodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return EncodeImage(data)
}

// EncodeImage is EncodeImageFile for in-memory content.
func EncodeImage(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("unsupported image type %q", mime.String())
	}
	mediaType, _, _ := strings.Cut(mime.String(), ";")
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
