// Package imageinfo sniffs the MIME type and pixel dimensions of image bytes.
package imageinfo

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info describes decoded image metadata. Width and Height are zero when the
// header could not be decoded.
type Info struct {
	ContentType string
	Format      string
	Width       int
	Height      int
}

// Sniff inspects data and reports its content type and, when a registered
// decoder recognises the header, its dimensions.
func Sniff(data []byte) Info {
	info := Info{ContentType: DetectContentType(data)}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return info
	}
	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height
	if !IsImage(info.ContentType) {
		info.ContentType = "image/" + format
	}
	return info
}

// DetectContentType wraps http.DetectContentType, stripping parameters.
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// IsImage reports whether a MIME type is image-typed.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// Subtype returns the part after the slash, upper-cased for display
// ("image/png" -> "PNG"). It returns "" when there is no subtype.
func Subtype(contentType string) string {
	_, sub, ok := strings.Cut(contentType, "/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(sub, ';'); i >= 0 {
		sub = sub[:i]
	}
	return strings.ToUpper(strings.TrimSpace(sub))
}
