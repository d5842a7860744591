package workflow

import (
	"fmt"

	"github.com/adverant/nexus/textscan/internal/imageinfo"
)

// File is a candidate for selection: anything with a name, a declared MIME
// type and content. An empty ContentType is sniffed from Data.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// SelectedImage is the currently chosen image. PreviewRef is bound to Data
// and is released when the image is replaced or cleared.
type SelectedImage struct {
	Name        string
	ContentType string
	Size        int64
	Width       int
	Height      int
	PreviewRef  string

	data []byte
}

// ImageView is the byte-free description of a SelectedImage used for rendering.
type ImageView struct {
	Name        string
	ContentType string
	Size        int64
	Width       int
	Height      int
	PreviewRef  string
}

// Subtype is the upper-cased MIME subtype, e.g. "PNG".
func (v ImageView) Subtype() string {
	return imageinfo.Subtype(v.ContentType)
}

// SizeKB formats the size with one decimal, e.g. "2.0 KB".
func (v ImageView) SizeKB() string {
	return fmt.Sprintf("%.1f KB", float64(v.Size)/1024)
}

func (img *SelectedImage) view() *ImageView {
	return &ImageView{
		Name:        img.Name,
		ContentType: img.ContentType,
		Size:        img.Size,
		Width:       img.Width,
		Height:      img.Height,
		PreviewRef:  img.PreviewRef,
	}
}

// resolveContentType returns the declared type, or the sniffed one when the
// candidate did not declare any.
func (f File) resolveContentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if len(f.Data) == 0 {
		return ""
	}
	return imageinfo.Sniff(f.Data).ContentType
}
