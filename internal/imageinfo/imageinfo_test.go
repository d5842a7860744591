package imageinfo

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniffPNG(t *testing.T) {
	info := Sniff(encodePNG(t, 40, 12))
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 12, info.Height)
}

func TestSniffBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))))

	info := Sniff(buf.Bytes())
	assert.Equal(t, "image/bmp", info.ContentType)
	assert.Equal(t, 7, info.Width)
}

func TestSniffNonImage(t *testing.T) {
	info := Sniff([]byte("%PDF-1.7\n%âãÏÓ"))
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Zero(t, info.Width)
	assert.False(t, IsImage(info.ContentType))
}

func TestSubtype(t *testing.T) {
	assert.Equal(t, "PNG", Subtype("image/png"))
	assert.Equal(t, "SVG+XML", Subtype("image/svg+xml; charset=utf-8"))
	assert.Equal(t, "", Subtype("garbage"))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/jpeg"))
	assert.True(t, IsImage("Image/PNG"))
	assert.False(t, IsImage("application/pdf"))
	assert.False(t, IsImage(""))
}
