package util

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniffMIME(t *testing.T) {
	p := tinyPNG(t)
	assert.Equal(t, "image/png", SniffMIME(p))
	assert.True(t, IsImage(p))
	assert.Equal(t, "PNG", SniffMimeForOCR(p))

	assert.Equal(t, "JPEG", SniffMimeForOCR([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}))
	assert.Equal(t, "PDF", SniffMimeForOCR([]byte("%PDF-1.7\n")))
	assert.Equal(t, "", SniffMimeForOCR([]byte("hello")))
	assert.False(t, IsImage([]byte("hello")))
}

func TestMakeDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQID", MakeDataURL("image/png", []byte{1, 2, 3}))
}

func TestStripReasoning(t *testing.T) {
	in := "<think>\nthe user wants stock advice\n</think>\n\nStok devir hızınızı ölçün."
	assert.Equal(t, "Stok devir hızınızı ölçün.", StripReasoning(in))
	assert.Equal(t, "plain", StripReasoning("  plain "))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "Tarih: 01/02/2024", StripCodeFences("```text\nTarih: 01/02/2024\n```"))
	assert.Equal(t, "x", StripCodeFences("```\nx\n```"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ğü…", Truncate("ğüş", 2))
}
